package forms

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSubmissionPending is returned when Submit is called while a request is in flight.
	ErrSubmissionPending = errors.New("submission already pending")
	// ErrUnknownField is returned by UpdateField for names the draft does not have.
	ErrUnknownField = errors.New("unknown form field")
)

// machine holds one draft and its submit state. All fields are guarded by mu;
// the relay call itself runs unlocked.
type machine[D any] struct {
	mu      sync.Mutex
	draft   D
	status  Status
	pending bool

	clock      Clock
	resetAfter time.Duration
	timer      Timer
	closed     bool
	// seq identifies the latest submit; an auto-clear only applies to its own seq.
	seq uint64

	send      func(ctx context.Context, draft D) error
	onSuccess func()
}

func (m *machine[D]) update(fn func(d *D) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&m.draft)
}

func (m *machine[D]) submit(ctx context.Context) error {
	return m.submitWith(ctx, nil)
}

// submitWith applies prepare to the draft and submits it under a single
// pending check. While a submit is in flight the draft is left untouched.
// If prepare fails nothing changes.
func (m *machine[D]) submitWith(ctx context.Context, prepare func(d *D) error) error {
	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return ErrSubmissionPending
	}
	if prepare != nil {
		d := m.draft
		if err := prepare(&d); err != nil {
			m.mu.Unlock()
			return err
		}
		m.draft = d
	}
	m.stopTimerLocked()
	m.seq++
	seq := m.seq
	m.pending = true
	m.status = StatusPending
	draft := m.draft
	m.mu.Unlock()

	err := m.send(ctx, draft)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = false
	if err != nil {
		m.status = StatusFailure
	} else {
		m.status = StatusSuccess
		var zero D
		m.draft = zero
		if m.onSuccess != nil {
			m.onSuccess()
		}
	}
	if !m.closed {
		m.timer = m.clock.AfterFunc(m.resetAfter, func() { m.clearStatus(seq) })
	}
	return err
}

func (m *machine[D]) clearStatus(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq || m.pending {
		return
	}
	m.status = StatusIdle
	m.timer = nil
}

func (m *machine[D]) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// stop cancels the auto-clear for good. A submit still in flight resolves
// its status but schedules nothing.
func (m *machine[D]) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimerLocked()
}

func (m *machine[D]) snapshot() (D, Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft, m.status, m.pending
}

type options struct {
	clock      Clock
	resetAfter time.Duration
}

// Option tunes a form at construction.
type Option func(*options)

// WithClock replaces the clock used for the status auto-clear.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithResetAfter overrides how long success or failure stays on screen.
func WithResetAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.resetAfter = d
		}
	}
}

func buildOptions(defaultReset time.Duration, opts []Option) options {
	o := options{clock: SystemClock(), resetAfter: defaultReset}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
