package live

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/rxbind/pkg/datasource"
	"github.com/vango-dev/rxbind/pkg/metrics"
)

// message covers both frame and error messages.
type message struct {
	Type              string `json:"type"`
	Session           string `json:"session"`
	Seq               uint64 `json:"seq"`
	Version           uint64 `json:"version"`
	Running           bool   `json:"running"`
	RunningObservable bool   `json:"running_observable"`
	Count             int    `json:"count"`
	Items             []int  `json:"items"`
	Action            string `json:"action"`
	Error             *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	srv := NewServer(Config{
		Factory: datasource.NewFactory(datasource.WithConfig(datasource.Config{
			BatchSize: 5, Min: 0, Max: 100, Period: 2 * time.Millisecond,
		})),
		Throttle: 5 * time.Millisecond,
		Metrics:  m,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts, m
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads messages until match accepts one.
func next(t *testing.T, conn *websocket.Conn, match func(message) bool) message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg message
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func gauge(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func send(t *testing.T, conn *websocket.Conn, action string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Request{Action: action}))
}

func TestFirstFrame(t *testing.T) {
	srv, ts, m := newTestServer(t)
	conn := dial(t, ts)

	msg := next(t, conn, func(message) bool { return true })
	assert.Equal(t, TypeFrame, msg.Type)
	assert.Equal(t, uint64(1), msg.Seq)
	assert.NotEmpty(t, msg.Session)
	assert.Zero(t, msg.Count)
	assert.NotNil(t, msg.Items)
	assert.Equal(t, Version(nil), msg.Version)

	assert.Equal(t, 1, srv.SessionCount())
	assert.Equal(t, float64(1), gauge(t, m, "rxbind_live_sessions"))
}

func TestIntervalMode(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)
	next(t, conn, func(msg message) bool { return msg.Type == TypeFrame })

	send(t, conn, ActionStartInterval)
	msg := next(t, conn, func(msg message) bool {
		return msg.Type == TypeFrame && msg.RunningObservable && msg.Count > 0
	})
	assert.Equal(t, 5, msg.Count)
	assert.Equal(t, Version(msg.Items), msg.Version)
	for _, v := range msg.Items {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 100)
	}

	send(t, conn, ActionCancelInterval)
	next(t, conn, func(msg message) bool {
		return msg.Type == TypeFrame && !msg.RunningObservable && msg.Count == 0
	})
}

func TestTriggeredMode(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)
	next(t, conn, func(msg message) bool { return msg.Type == TypeFrame })

	send(t, conn, ActionStart)
	next(t, conn, func(msg message) bool {
		return msg.Type == TypeFrame && msg.Running && msg.Count == 5
	})

	send(t, conn, ActionCancel)
	next(t, conn, func(msg message) bool {
		return msg.Type == TypeFrame && !msg.Running && msg.Count == 0
	})
}

func TestUnknownAction(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, "explode")
	msg := next(t, conn, func(msg message) bool { return msg.Type == TypeError })
	require.NotNil(t, msg.Error)
	assert.Equal(t, "R042", msg.Error.Code)
	assert.Equal(t, "explode", msg.Action)
	assert.Contains(t, msg.Error.Detail, "explode")
}

func TestMalformedMessage(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg := next(t, conn, func(msg message) bool { return msg.Type == TypeError })
	require.NotNil(t, msg.Error)
	assert.Equal(t, "R042", msg.Error.Code)
}

func TestDisconnectClosesSession(t *testing.T) {
	srv, ts, m := newTestServer(t)
	conn := dial(t, ts)
	next(t, conn, func(msg message) bool { return msg.Type == TypeFrame })
	send(t, conn, ActionStartInterval)

	require.Equal(t, 1, srv.SessionCount())
	sess := srv.Sessions()[0]
	conn.Close()

	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, 3*time.Second, 5*time.Millisecond)
	renders := sess.Renders()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, renders, sess.Renders(), "no renders after close")
	assert.Equal(t, float64(0), gauge(t, m, "rxbind_live_sessions"))
}

func TestHealth(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Zero(t, h.Sessions)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)
	next(t, conn, func(msg message) bool { return msg.Type == TypeFrame })

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rxbind_live_sessions 1")
	assert.Contains(t, string(body), "rxbind_renders_total")
}

func TestConfigDefaultsBoundBursts(t *testing.T) {
	assert.Equal(t, DefaultMaxWait, DefaultConfig().MaxWait)
	assert.Equal(t, DefaultMaxWait, Config{}.withDefaults().MaxWait)
	assert.Negative(t, Config{MaxWait: -1}.withDefaults().MaxWait)
}

func TestVersionTracksContents(t *testing.T) {
	assert.Equal(t, Version([]int{1, 2}), Version([]int{1, 2}))
	assert.NotEqual(t, Version([]int{1, 2}), Version([]int{2, 1}))
}
