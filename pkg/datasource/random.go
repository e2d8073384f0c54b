package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/vango-dev/rxbind/pkg/changeset"
	"github.com/vango-dev/rxbind/pkg/observable"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// Config controls what a Random source generates.
type Config struct {
	// BatchSize is the number of values per refill (default: 20).
	BatchSize int

	// Min is the inclusive lower bound of generated values (default: -10000).
	Min int

	// Max is the exclusive upper bound of generated values (default: 10000).
	Max int

	// Period is the default interval-mode cadence (default: 10ms).
	Period time.Duration
}

// DefaultConfig returns the default generator settings.
func DefaultConfig() Config {
	return Config{
		BatchSize: 20,
		Min:       -10000,
		Max:       10000,
		Period:    10 * time.Millisecond,
	}
}

// Validate reports settings that cannot generate data.
func (c Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("datasource: batch size %d is negative", c.BatchSize)
	}
	if c.Max <= c.Min {
		return fmt.Errorf("datasource: empty range [%d, %d)", c.Min, c.Max)
	}
	if c.Period <= 0 {
		return fmt.Errorf("datasource: period %s must be positive", c.Period)
	}
	return nil
}

// RandFactory creates the generator used by one Generate or GenerateEvery
// invocation.
type RandFactory func() *rand.Rand

// NewPCG returns a RandFactory seeding each generator independently.
func NewPCG() RandFactory {
	return func() *rand.Rand {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Option configures a Random source.
type Option func(*Random)

// WithConfig sets the generator settings.
func WithConfig(c Config) Option {
	return func(r *Random) {
		r.config = c
	}
}

// WithRandFactory sets how per-invocation generators are created.
func WithRandFactory(f RandFactory) Option {
	return func(r *Random) {
		r.newRand = f
	}
}

// WithLogger sets the logger for interval-mode failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Random) {
		r.logger = logger
	}
}

// Random fills its list with pseudo-random integers.
type Random struct {
	config  Config
	newRand RandFactory
	logger  *slog.Logger
	list    *observable.List[int]

	// intervals tracks live GenerateEvery handles for Dispose.
	mu        sync.Mutex
	intervals map[*interval]struct{}
}

var _ Source = (*Random)(nil)

// NewRandom creates a Random source with an empty list.
func NewRandom(opts ...Option) *Random {
	r := &Random{
		config:    DefaultConfig(),
		newRand:   NewPCG(),
		logger:    slog.Default(),
		list:      observable.NewList[int](),
		intervals: make(map[*interval]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "datasource")
	return r
}

// NewFactory returns a Factory producing Random sources with opts.
func NewFactory(opts ...Option) Factory {
	return func() Source {
		return NewRandom(opts...)
	}
}

// Config returns the generator settings.
func (r *Random) Config() Config {
	return r.config
}

// Changes implements Source.
func (r *Random) Changes() reactive.Stream[changeset.ChangeSet[int]] {
	return r.list.Connect()
}

// Items returns the current contents.
func (r *Random) Items() []int {
	return r.list.Items()
}

// refill replaces the list contents with one fresh batch as a single
// {Clear, Add...} ChangeSet.
func (r *Random) refill(rng *rand.Rand) error {
	span := r.config.Max - r.config.Min
	return r.list.Edit(func(e *observable.Editor[int]) {
		e.Clear()
		for i := 0; i < r.config.BatchSize; i++ {
			e.Add(r.config.Min + rng.IntN(span))
		}
	})
}

// Generate implements Source. Cancellation is observed before every batch,
// so at most one batch is committed after ctx is canceled.
func (r *Random) Generate(ctx context.Context) error {
	rng := r.newRand()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.refill(rng); err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		runtime.Gosched()
	}
}

// interval is one running GenerateEvery ticker.
type interval struct {
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// GenerateEvery implements Source. A non-positive period uses the
// configured default. Disposing the handle stops the ticker and waits for
// an in-flight refill to finish.
func (r *Random) GenerateEvery(period time.Duration) reactive.Disposable {
	if period <= 0 {
		period = r.config.Period
	}

	iv := &interval{
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	r.mu.Lock()
	r.intervals[iv] = struct{}{}
	r.mu.Unlock()

	rng := r.newRand()

	go func() {
		defer close(iv.exited)

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := r.refill(rng); err != nil {
					if errors.Is(err, observable.ErrDisposed) {
						return
					}
					r.logger.Warn("interval refill failed", "error", err)
				}
			case <-iv.done:
				return
			}
		}
	}()

	return reactive.NewDisposable(func() {
		r.stop(iv)
	})
}

func (r *Random) stop(iv *interval) {
	iv.once.Do(func() { close(iv.done) })
	<-iv.exited

	r.mu.Lock()
	delete(r.intervals, iv)
	r.mu.Unlock()
}

// Clear implements Source.
func (r *Random) Clear() error {
	return r.list.Clear()
}

// Dispose stops every running interval and disposes the list.
func (r *Random) Dispose() {
	r.mu.Lock()
	running := make([]*interval, 0, len(r.intervals))
	for iv := range r.intervals {
		running = append(running, iv)
	}
	r.mu.Unlock()

	for _, iv := range running {
		r.stop(iv)
	}
	r.list.Dispose()
}
