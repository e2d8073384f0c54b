package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/rxbind/internal/errors"
	"github.com/vango-dev/rxbind/pkg/binding"
	"github.com/vango-dev/rxbind/pkg/dispatch"
	"github.com/vango-dev/rxbind/pkg/reactive"
	"github.com/vango-dev/rxbind/pkg/surface"
	"github.com/vango-dev/rxbind/pkg/viewmodel"
)

// Session is one connected client: a view-model, the binding rendering it
// and the dispatch loop every write to the connection runs on.
type Session struct {
	ID string

	server  *Server
	conn    *websocket.Conn
	loop    *dispatch.Loop
	vm      *viewmodel.ViewModel
	binding *binding.Binding[*viewmodel.ViewModel]
	logger  *slog.Logger

	// seq is only touched on the loop.
	seq uint64

	closeOnce sync.Once
}

func newSession(srv *Server, conn *websocket.Conn) *Session {
	cfg := srv.config
	id := ulid.Make().String()
	logger := cfg.Logger.With("session_id", id)

	s := &Session{
		ID:     id,
		server: srv,
		conn:   conn,
		logger: logger,
	}
	s.loop = dispatch.NewLoop(
		dispatch.WithQueueSize(cfg.QueueSize),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(cfg.Metrics))

	vmOpts := []viewmodel.Option{
		viewmodel.WithLogger(logger),
		viewmodel.WithMetrics(cfg.Metrics),
		viewmodel.WithInterval(cfg.Interval),
	}
	if cfg.Tracer != nil {
		vmOpts = append(vmOpts, viewmodel.WithTracer(cfg.Tracer))
	}
	s.vm = viewmodel.New(cfg.Factory, vmOpts...)

	s.binding = binding.New[*viewmodel.ViewModel](s,
		binding.WithThrottle(cfg.Throttle),
		binding.WithMaxWait(cfg.MaxWait),
		binding.WithLogger(logger),
		binding.WithMetrics(cfg.Metrics))
	s.binding.OnFirstPaint(func() {
		s.binding.AddSource(s.vm.Numbers().Changed())
	})
	s.binding.WhenActivated(func(c *reactive.Cleanups) {
		c.AddDisposable(s.vm.Faults().Subscribe(reactive.OnNext(func(err error) {
			s.sendError("", errors.Classify(err, "R010"))
		})))
	})
	return s
}

// Dispatch implements binding.Surface.
func (s *Session) Dispatch(fn func()) {
	s.loop.Dispatch(fn)
}

// Render implements binding.Surface. It writes one frame.
func (s *Session) Render() error {
	s.seq++
	snap := surface.Take(s.vm, s.binding.Renders())
	err := s.write(Frame{
		Type:     TypeFrame,
		Session:  s.ID,
		Seq:      s.seq,
		Version:  Version(snap.Items),
		Snapshot: snap,
	})
	if err != nil {
		return errors.New("R020").WithDetailf("frame %d", s.seq).Wrap(err)
	}
	if s.seq == 1 {
		s.binding.FirstPaintComplete()
	}
	return nil
}

// write must run on the loop.
func (s *Session) write(v any) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Session) sendError(action string, rx *errors.RxError) {
	s.logger.Warn("session error", "action", action, "code", rx.Code, "error", rx)
	s.loop.Dispatch(func() {
		err := s.write(ErrorFrame{
			Type:    TypeError,
			Session: s.ID,
			Action:  action,
			Error:   rx,
		})
		if err != nil {
			s.logger.Debug("error frame write failed", "error", err)
		}
	})
}

// handle runs one client action.
func (s *Session) handle(action string) error {
	switch action {
	case ActionStart:
		return s.vm.Start()
	case ActionCancel:
		return s.vm.Cancel()
	case ActionStartInterval:
		return s.vm.StartObservable()
	case ActionCancelInterval:
		return s.vm.CancelObservable()
	default:
		return errors.New("R042").WithDetailf("unknown action %q", action)
	}
}

// readLoop reads client actions until the connection fails, then closes
// the session.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError("", errors.New("R042").WithDetail("malformed message: "+err.Error()))
			continue
		}
		if err := s.handle(req.Action); err != nil {
			s.sendError(req.Action, errors.Classify(err, "R010"))
		}
	}
}

// start activates the binding; the first frame follows one throttle window
// later.
func (s *Session) start() {
	s.binding.SetViewModel(s.vm)
	s.logger.Info("session opened")
}

// Close tears the session down: the binding first so no render follows,
// then the view-model, the loop and the connection. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.binding.Dispose()
		s.vm.Dispose()
		s.loop.Close()
		s.conn.Close()
		s.server.remove(s)
		s.logger.Info("session closed", "renders", s.binding.Renders())
	})
}

// Renders returns the number of frames rendered.
func (s *Session) Renders() uint64 {
	return s.binding.Renders()
}

// Running reports the triggered-mode flag.
func (s *Session) Running() bool {
	return s.vm.Running()
}

var _ binding.Surface = (*Session)(nil)
