// Package term renders view-model snapshots as text tables.
package term

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vango-dev/rxbind/pkg/dispatch"
	"github.com/vango-dev/rxbind/pkg/surface"
)

// DefaultMaxItems is how many values a frame lists before truncating.
const DefaultMaxItems = 8

// Option configures a Surface.
type Option func(*Surface)

// WithMaxItems sets how many values a frame lists.
func WithMaxItems(n int) Option {
	return func(s *Surface) {
		s.maxItems = n
	}
}

// WithTitle sets the table title.
func WithTitle(title string) Option {
	return func(s *Surface) {
		s.title = title
	}
}

// WithRenderHook is called with the duration of every render.
func WithRenderHook(fn func(time.Duration)) Option {
	return func(s *Surface) {
		s.onRender = fn
	}
}

// WithFirstPaint is called once, after the first render is written.
func WithFirstPaint(fn func()) Option {
	return func(s *Surface) {
		s.onFirstPaint = fn
	}
}

// WithStyle sets the go-pretty table style.
func WithStyle(style table.Style) Option {
	return func(s *Surface) {
		s.style = style
	}
}

// Surface writes one table per render to an io.Writer. Renders run on a
// dispatch loop.
type Surface struct {
	out      io.Writer
	loop     *dispatch.Loop
	state    func() surface.Snapshot
	maxItems int
	title    string
	style    table.Style
	onRender func(time.Duration)

	onFirstPaint func()

	mu     sync.Mutex
	frames uint64
}

// New creates a Surface drawing state() to out.
func New(out io.Writer, loop *dispatch.Loop, state func() surface.Snapshot, opts ...Option) *Surface {
	s := &Surface{
		out:      out,
		loop:     loop,
		state:    state,
		maxItems: DefaultMaxItems,
		title:    "rxbind",
		style:    table.StyleLight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch queues fn on the surface's loop.
func (s *Surface) Dispatch(fn func()) {
	s.loop.Dispatch(fn)
}

// Render writes the current snapshot.
func (s *Surface) Render() error {
	start := time.Now()

	s.mu.Lock()
	s.frames++
	frame := s.frames
	s.mu.Unlock()

	out := Table(s.state(), s.maxItems, s.title, s.style)
	_, err := fmt.Fprintf(s.out, "frame %s\n%s\n", humanize.Comma(int64(frame)), out)

	if s.onRender != nil {
		s.onRender(time.Since(start))
	}
	if err == nil && frame == 1 && s.onFirstPaint != nil {
		s.onFirstPaint()
	}
	return err
}

// Frames returns how many renders have been written.
func (s *Surface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Table formats snap. At most maxItems values are listed.
func Table(snap surface.Snapshot, maxItems int, title string, style table.Style) string {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetStyle(style)
	tbl.AppendHeader(table.Row{"field", "value"})
	tbl.AppendRows([]table.Row{
		{"running", flag(snap.Running)},
		{"running observable", flag(snap.RunningObservable)},
		{"count", humanize.Comma(int64(snap.Count))},
		{"batches", humanize.Comma(int64(snap.NumbersChanged))},
		{"renders", humanize.Comma(int64(snap.Renders))},
		{"items", formatItems(snap.Items, maxItems)},
	})
	return tbl.Render()
}

func flag(on bool) string {
	if on {
		return "yes"
	}
	return "no"
}

func formatItems(items []int, maxItems int) string {
	if len(items) == 0 {
		return "-"
	}
	shown := items
	if maxItems >= 0 && len(items) > maxItems {
		shown = items[:maxItems]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = humanize.Comma(int64(v))
	}
	out := strings.Join(parts, " ")
	if rest := len(items) - len(shown); rest > 0 {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("... (+%d more)", rest)
	}
	return out
}
