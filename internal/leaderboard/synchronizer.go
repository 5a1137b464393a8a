package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/contest-client/internal/models"
	"github.com/terra-clan/contest-client/internal/schedule"
)

// RefreshInterval is how often the standings are re-fetched
const RefreshInterval = 20 * time.Second

// ErrInactive is returned by Refresh when the synchronizer is not running,
// and by Start once it has been stopped
var ErrInactive = errors.New("leaderboard synchronizer is not active")

// Fetcher is the part of the judge API the synchronizer needs
type Fetcher interface {
	GetLeaderboard(ctx context.Context, contestID int64) (*models.LeaderboardResponse, error)
}

// View is a consistent copy of the displayed standings
type View struct {
	ContestID     int64                     `json:"contestId"`
	Entries       []models.LeaderboardEntry `json:"entries"`
	LastUpdated   time.Time                 `json:"lastUpdated"`
	LastRefreshed time.Time                 `json:"lastRefreshed"`
	Loading       bool                      `json:"loading"`
	Error         string                    `json:"error,omitempty"`
	Seq           uint64                    `json:"seq"`
}

// Entry returns the row of a participant, if ranked
func (v View) Entry(userID int64) (models.LeaderboardEntry, bool) {
	for _, e := range v.Entries {
		if e.UserID == userID {
			return e, true
		}
	}
	return models.LeaderboardEntry{}, false
}

// Synchronizer keeps the standings of one contest fresh.
// Each successful fetch replaces the whole entry list; nothing is merged.
type Synchronizer struct {
	fetcher   Fetcher
	contestID int64
	interval  time.Duration

	mu            sync.Mutex
	entries       []models.LeaderboardEntry
	lastUpdated   time.Time
	lastRefreshed time.Time
	loading       bool
	err           error
	gen           uint64
	issued        uint64
	applied       uint64
	seq           uint64
	stopped       bool
	ticker        *schedule.Handle
	listeners     []func(View)
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithInterval overrides RefreshInterval. Used by tests.
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New creates an inactive synchronizer for a contest
func New(fetcher Fetcher, contestID int64, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		fetcher:   fetcher,
		contestID: contestID,
		interval:  RefreshInterval,
		loading:   true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnChange registers a listener called after every applied change
func (s *Synchronizer) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start fetches the standings immediately and then every interval until Stop or ctx is done.
// Only the error of this first fetch is returned and shown; later failures keep the previous data.
// A stopped synchronizer cannot be started again.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrInactive
	}
	if s.ticker != nil && !s.ticker.Stopped() {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.loading = true
	s.ticker = schedule.Every(ctx, s.interval, func(ctx context.Context) {
		s.fetch(ctx, gen, false)
	})
	s.mu.Unlock()

	slog.Info("leaderboard synchronizer started", "contest_id", s.contestID, "interval", s.interval)

	return s.fetch(ctx, gen, true)
}

// Refresh fetches on demand through the same path as the periodic loop.
// The loop keeps its original schedule.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.ticker == nil || s.ticker.Stopped() {
		s.mu.Unlock()
		return ErrInactive
	}
	gen := s.gen
	s.mu.Unlock()

	return s.fetch(ctx, gen, false)
}

// Stop cancels the loop for good. Fetches still in flight are discarded. Idempotent.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.gen++
	s.stopped = true
	h := s.ticker
	s.ticker = nil
	s.mu.Unlock()

	if h != nil {
		h.Cancel()
		slog.Info("leaderboard synchronizer stopped", "contest_id", s.contestID)
	}
}

// Active reports whether the loop is running
func (s *Synchronizer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil && !s.ticker.Stopped()
}

// Snapshot returns the current view
func (s *Synchronizer) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// fetch loads the standings and applies them if they are still wanted.
// Responses are applied in the order their requests were issued.
func (s *Synchronizer) fetch(ctx context.Context, gen uint64, initial bool) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrInactive
	}
	s.issued++
	req := s.issued
	s.mu.Unlock()

	resp, err := s.fetcher.GetLeaderboard(ctx, s.contestID)
	if err == nil && resp == nil {
		err = errors.New("judge returned no leaderboard")
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		slog.Debug("discarding leaderboard response after stop", "contest_id", s.contestID)
		return ErrInactive
	}

	if err != nil {
		if !initial {
			s.mu.Unlock()
			slog.Warn("error refreshing leaderboard", "contest_id", s.contestID, "error", err)
			return err
		}
		s.loading = false
		s.err = err
		view := s.transition()
		s.mu.Unlock()

		slog.Error("error loading leaderboard", "contest_id", s.contestID, "error", err)
		s.notify(view)
		return err
	}

	if req < s.applied {
		s.mu.Unlock()
		slog.Debug("discarding out of order leaderboard response", "contest_id", s.contestID)
		return nil
	}

	entries := make([]models.LeaderboardEntry, len(resp.Entries))
	copy(entries, resp.Entries)

	s.applied = req
	s.entries = entries
	s.lastUpdated = resp.LastUpdated.Time
	s.lastRefreshed = time.Now()
	s.loading = false
	s.err = nil
	view := s.transition()
	s.mu.Unlock()

	slog.Debug("leaderboard refreshed", "contest_id", s.contestID, "entries", len(entries))
	s.notify(view)
	return nil
}

// transition bumps the sequence number; callers hold s.mu
func (s *Synchronizer) transition() View {
	s.seq++
	return s.viewLocked()
}

func (s *Synchronizer) viewLocked() View {
	entries := make([]models.LeaderboardEntry, len(s.entries))
	copy(entries, s.entries)

	v := View{
		ContestID:     s.contestID,
		Entries:       entries,
		LastUpdated:   s.lastUpdated,
		LastRefreshed: s.lastRefreshed,
		Loading:       s.loading,
		Seq:           s.seq,
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	return v
}

func (s *Synchronizer) notify(v View) {
	s.mu.Lock()
	listeners := make([]func(View), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
