package display

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gogpu/scanout"
)

// ErrLoopStopped is returned when work is posted to a loop that has
// stopped.
var ErrLoopStopped = errors.New("display: loop stopped")

// DefaultRefreshRate is the refresh rate of a loop without WithRefreshRate.
const DefaultRefreshRate = 60

// Loop serializes session events and refresh ticks on one goroutine
// locked to its OS thread, which is where rendering contexts live.
type Loop struct {
	sessions []*scanout.Session
	rate     int
	work     chan func()
	onError  func(*scanout.Session, error)
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	frames  uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithRefreshRate sets the number of refresh ticks per second.
func WithRefreshRate(hz int) LoopOption {
	return func(l *Loop) {
		if hz > 0 {
			l.rate = hz
		}
	}
}

// WithQueueSize sets how many posted functions may wait before Post
// blocks.
func WithQueueSize(n int) LoopOption {
	return func(l *Loop) {
		if n >= 0 {
			l.work = make(chan func(), n)
		}
	}
}

// WithRefreshErrorHandler sets the function called when a refresh fails.
// By default failures are logged.
func WithRefreshErrorHandler(fn func(*scanout.Session, error)) LoopOption {
	return func(l *Loop) {
		l.onError = fn
	}
}

// NewLoop creates a loop refreshing the given sessions.
func NewLoop(sessions []*scanout.Session, opts ...LoopOption) *Loop {
	l := &Loop{
		sessions: sessions,
		rate:     DefaultRefreshRate,
		work:     make(chan func(), 64),
		log:      scanout.Logger(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.onError == nil {
		l.onError = func(s *scanout.Session, err error) {
			l.log.Warn("display: refresh failed", "device", s.Device().Name(), "err", err)
		}
	}
	return l
}

// Run processes posted work and refresh ticks until ctx is done. It must
// be called once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("display: loop already running")
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(time.Second / time.Duration(l.rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case fn := <-l.work:
			fn()
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick refreshes every session once. Outside Run it must only be called
// from the goroutine that owns the sessions.
func (l *Loop) Tick() {
	for _, s := range l.sessions {
		if err := s.Refresh(); err != nil {
			l.onError(s, err)
		}
	}
	l.mu.Lock()
	l.frames++
	l.mu.Unlock()
}

// Frames returns the number of completed refresh ticks.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.work <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Do runs fn on the loop goroutine and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := l.Post(func() { result <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopStopped
		}
	}
}

// drain runs work that was queued before the loop stopped.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.work:
			fn()
		default:
			return
		}
	}
}
