// Package tracker follows one submission from creation to its final verdict.
//
// The tracker is a small state machine:
//
//	IDLE -> CREATING -> POLLING -> TERMINAL
//	           |           |
//	  |        +-> FAILED  +-> CANCELLED (explicit Stop)
//	  +------------------------> CANCELLED (Stop before Submit)
//
// TERMINAL, FAILED and CANCELLED are absorbing. Stop is final: a stopped
// tracker never creates another submission. Every poll request is stamped
// with the generation that issued it, and its response is applied only while
// that generation is current and the tracker is still POLLING. Responses that
// arrive late, out of order or after Stop are dropped.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/contest-client/internal/models"
	"github.com/terra-clan/contest-client/internal/schedule"
)

// PollInterval is how often a pending submission is re-fetched
const PollInterval = 2 * time.Second

// ErrStopped is returned by Submit when Stop was called before or while the submission was being created
var ErrStopped = errors.New("tracker stopped")

// State of the tracker
type State string

const (
	StateIdle      State = "IDLE"
	StateCreating  State = "CREATING"
	StatePolling   State = "POLLING"
	StateTerminal  State = "TERMINAL"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Absorbing reports whether no further transition can leave this state
func (s State) Absorbing() bool {
	return s == StateTerminal || s == StateFailed || s == StateCancelled
}

// Judge is the part of the judge API the tracker needs
type Judge interface {
	CreateSubmission(ctx context.Context, req models.SubmitRequest) (*models.Submission, error)
	GetSubmission(ctx context.Context, submissionID int64) (*models.Submission, error)
}

// View is a consistent copy of the tracker state
type View struct {
	State      State              `json:"state"`
	Submission *models.Submission `json:"submission,omitempty"`
	Error      string             `json:"error,omitempty"`
	Polling    bool               `json:"polling"`
	// Seq increases with every transition; consumers can drop views older than one already seen
	Seq uint64 `json:"seq"`
}

// Tracker owns the polling loop of a single submission
type Tracker struct {
	judge    Judge
	base     context.Context
	interval time.Duration

	mu         sync.Mutex
	state      State
	submission *models.Submission
	err        error
	gen        uint64
	seq        uint64
	stopped    bool
	poll       *schedule.Handle
	settled    chan struct{}
	listeners  []func(View)
}

// Option configures a Tracker
type Option func(*Tracker)

// WithContext sets the parent context of the polling loop
func WithContext(ctx context.Context) Option {
	return func(t *Tracker) {
		t.base = ctx
	}
}

// WithInterval overrides PollInterval. Used by tests.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// New creates an idle tracker
func New(judge Judge, opts ...Option) *Tracker {
	t := &Tracker{
		judge:    judge,
		base:     context.Background(),
		interval: PollInterval,
		state:    StateIdle,
		settled:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// OnChange registers a listener called after every transition.
// Listeners run outside the tracker lock and must not block for long.
func (t *Tracker) OnChange(fn func(View)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Submit creates the submission and starts polling it.
// Empty or whitespace-only code is rejected without contacting the judge.
// Creation failures are returned immediately and leave the tracker FAILED.
// After Stop it returns ErrStopped without contacting the judge.
func (t *Tracker) Submit(ctx context.Context, req models.SubmitRequest) (*models.Submission, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, models.NewValidationError("code", "please write some code before submitting")
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil, ErrStopped
	}
	prev := t.poll
	t.poll = nil
	if t.state == StateCreating || t.state == StatePolling {
		close(t.settled)
	}
	t.gen++
	gen := t.gen
	t.state = StateCreating
	t.submission = nil
	t.err = nil
	t.settled = make(chan struct{})
	view := t.transition()
	t.mu.Unlock()

	prev.Cancel()
	t.notify(view)

	slog.Info("creating submission",
		"contest_id", req.ContestID,
		"problem_id", req.ProblemID,
		"language", req.Language,
	)

	sub, err := t.judge.CreateSubmission(ctx, req)
	if err == nil && sub == nil {
		err = errors.New("judge returned no submission")
	}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		slog.Info("submission created after tracker was stopped", "error", err)
		return nil, ErrStopped
	}

	if err != nil {
		t.state = StateFailed
		t.err = err
		close(t.settled)
		view := t.transition()
		t.mu.Unlock()

		slog.Error("failed to create submission", "error", err)
		t.notify(view)
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	t.submission = sub.Clone()
	if sub.Status.IsTerminal() {
		t.state = StateTerminal
		close(t.settled)
	} else {
		t.state = StatePolling
		t.poll = schedule.Every(t.base, t.interval, t.pollFunc(gen, sub.ID))
	}
	view = t.transition()
	t.mu.Unlock()

	slog.Info("submission created", "id", sub.ID, "status", sub.Status)
	t.notify(view)
	return sub.Clone(), nil
}

// pollFunc returns the tick handler for one generation
func (t *Tracker) pollFunc(gen uint64, id int64) func(ctx context.Context) {
	return func(ctx context.Context) {
		if !t.current(gen) {
			return
		}

		sub, err := t.judge.GetSubmission(ctx, id)
		if err != nil {
			if t.current(gen) {
				slog.Warn("error polling submission status", "id", id, "error", err)
			}
			return
		}

		t.apply(gen, sub)
	}
}

// current reports whether gen still owns a polling tracker
func (t *Tracker) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen && t.state == StatePolling
}

// apply replaces the tracked snapshot with a poll response.
// It returns false when the response was discarded.
func (t *Tracker) apply(gen uint64, sub *models.Submission) bool {
	t.mu.Lock()
	if gen != t.gen || t.state != StatePolling || sub == nil || t.submission == nil || sub.ID != t.submission.ID {
		state := t.state
		t.mu.Unlock()
		slog.Debug("discarding stale poll response", "state", state)
		return false
	}

	t.submission = sub.Clone()

	var done *schedule.Handle
	if sub.Status.IsTerminal() {
		t.state = StateTerminal
		done = t.poll
		t.poll = nil
		close(t.settled)
	}
	view := t.transition()
	t.mu.Unlock()

	if done != nil {
		done.Cancel()
		slog.Info("submission judged", "id", sub.ID, "status", sub.Status, "score", sub.Score)
	}

	t.notify(view)
	return true
}

// Stop cancels polling and any later Submit. Any response still in flight is discarded.
// Idempotent; a tracker that already reached a verdict keeps it.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.gen++
	t.stopped = true
	h := t.poll
	t.poll = nil

	var view View
	changed := false
	switch t.state {
	case StateIdle, StateCreating, StatePolling:
		t.state = StateCancelled
		close(t.settled)
		view = t.transition()
		changed = true
	}
	t.mu.Unlock()

	h.Cancel()
	if changed {
		t.notify(view)
	}
}

// Snapshot returns the current view
func (t *Tracker) Snapshot() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

// Polling reports whether a poll loop is active
func (t *Tracker) Polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateCreating || t.state == StatePolling
}

// Wait blocks until the tracker reaches an absorbing state or ctx is done
func (t *Tracker) Wait(ctx context.Context) (View, error) {
	t.mu.Lock()
	settled := t.settled
	t.mu.Unlock()

	select {
	case <-settled:
		return t.Snapshot(), nil
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	}
}

// transition bumps the sequence number; callers hold t.mu
func (t *Tracker) transition() View {
	t.seq++
	return t.viewLocked()
}

func (t *Tracker) viewLocked() View {
	v := View{
		State:      t.state,
		Submission: t.submission.Clone(),
		Polling:    t.state == StateCreating || t.state == StatePolling,
		Seq:        t.seq,
	}
	if t.err != nil {
		v.Error = t.err.Error()
	}
	return v
}

func (t *Tracker) notify(v View) {
	t.mu.Lock()
	listeners := make([]func(View), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
