package leaderboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/contest-client/internal/models"
)

const testInterval = 10 * time.Millisecond

type fetchResult struct {
	entries []models.LeaderboardEntry
	err     error
}

// fakeFetcher serves standings from a script; the last entry repeats forever
type fakeFetcher struct {
	mu      sync.Mutex
	script  []fetchResult
	calls   int
	release chan struct{}
}

func (f *fakeFetcher) GetLeaderboard(ctx context.Context, contestID int64) (*models.LeaderboardResponse, error) {
	f.mu.Lock()
	f.calls++
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	res := f.script[idx]
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	if res.err != nil {
		return nil, res.err
	}
	return &models.LeaderboardResponse{
		ContestID:   contestID,
		LastUpdated: models.NewTimestamp(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)),
		Entries:     res.entries,
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func entry(rank int, userID int64, name string, score int) models.LeaderboardEntry {
	return models.LeaderboardEntry{Rank: rank, UserID: userID, Username: name, TotalScore: score}
}

func TestSynchronizer_ReplacesEntries(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 200), entry(2, 2, "bob", 100)}},
		{entries: []models.LeaderboardEntry{entry(1, 2, "bob", 300)}},
	}}
	s := New(fetcher, 7, WithInterval(testInterval))
	defer s.Stop()

	views := make(chan View, 64)
	s.OnChange(func(v View) {
		select {
		case views <- v:
		default:
		}
	})

	require.NoError(t, s.Start(context.Background()))

	v := <-views
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	assert.Equal(t, int64(7), v.ContestID)
	require.Len(t, v.Entries, 2)
	assert.Equal(t, "alice", v.Entries[0].Username)
	assert.False(t, v.LastRefreshed.IsZero())

	// The next tick replaces the list as a whole, nothing is merged
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Entries) == 1
	}, time.Second, time.Millisecond)

	v = s.Snapshot()
	assert.Equal(t, "bob", v.Entries[0].Username)
	assert.Equal(t, 300, v.Entries[0].TotalScore)

	_, ok := v.Entry(1)
	assert.False(t, ok)
	bob, ok := v.Entry(2)
	require.True(t, ok)
	assert.Equal(t, 1, bob.Rank)
}

func TestSynchronizer_InitialErrorIsVisible(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: errors.New("judge down")},
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
	}}
	s := New(fetcher, 7, WithInterval(testInterval))
	defer s.Stop()

	views := make(chan View, 64)
	s.OnChange(func(v View) {
		select {
		case views <- v:
		default:
		}
	})

	err := s.Start(context.Background())
	require.Error(t, err)

	v := <-views
	assert.False(t, v.Loading)
	assert.Equal(t, "judge down", v.Error)
	assert.Empty(t, v.Entries)
	assert.True(t, s.Active())

	// The loop recovers on its own
	require.Eventually(t, func() bool {
		v := s.Snapshot()
		return len(v.Entries) == 1 && v.Error == ""
	}, time.Second, time.Millisecond)
}

func TestSynchronizer_RefreshFailureKeepsData(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
		{err: errors.New("judge down")},
	}}
	s := New(fetcher, 7, WithInterval(time.Hour))
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	before := s.Snapshot()

	err := s.Refresh(context.Background())
	require.Error(t, err)

	after := s.Snapshot()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.LastRefreshed, after.LastRefreshed)
	assert.Empty(t, after.Error)
}

func TestSynchronizer_RefreshUpdatesTimestamp(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
	}}
	s := New(fetcher, 7, WithInterval(time.Hour))
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	first := s.Snapshot().LastRefreshed

	time.Sleep(time.Millisecond)
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.Snapshot().LastRefreshed.After(first))
	assert.Equal(t, 2, fetcher.callCount())
}

func TestSynchronizer_RefreshInactive(t *testing.T) {
	s := New(&fakeFetcher{script: []fetchResult{{}}}, 7)
	assert.True(t, errors.Is(s.Refresh(context.Background()), ErrInactive))
	assert.True(t, s.Snapshot().Loading)
}

func TestSynchronizer_StopDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
	}}
	s := New(fetcher, 7, WithInterval(time.Hour))

	require.NoError(t, s.Start(context.Background()))

	fetcher.mu.Lock()
	fetcher.release = release
	fetcher.script = []fetchResult{{entries: []models.LeaderboardEntry{entry(1, 9, "mallory", 999)}}}
	fetcher.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.Refresh(context.Background())
	}()

	require.Eventually(t, func() bool { return fetcher.callCount() == 2 }, time.Second, time.Millisecond)

	s.Stop()
	s.Stop()
	close(release)

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrInactive))
	case <-time.After(time.Second):
		t.Fatal("refresh did not return")
	}

	v := s.Snapshot()
	require.Len(t, v.Entries, 1)
	assert.Equal(t, "alice", v.Entries[0].Username)
	assert.False(t, s.Active())
}

func TestSynchronizer_OnChange(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
	}}
	s := New(fetcher, 7, WithInterval(time.Hour))
	defer s.Stop()

	views := make(chan View, 4)
	s.OnChange(func(v View) { views <- v })

	require.NoError(t, s.Start(context.Background()))

	select {
	case v := <-views:
		assert.Len(t, v.Entries, 1)
		assert.Equal(t, uint64(1), v.Seq)
	case <-time.After(time.Second):
		t.Fatal("listener was not called")
	}
}

func TestSynchronizer_StopBeforeStartIsFinal(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
	}}
	s := New(fetcher, 7, WithInterval(testInterval))

	s.Stop()

	assert.True(t, errors.Is(s.Start(context.Background()), ErrInactive))
	assert.False(t, s.Active())

	time.Sleep(5 * testInterval)
	assert.Zero(t, fetcher.callCount())
	assert.True(t, errors.Is(s.Refresh(context.Background()), ErrInactive))
}

func TestSynchronizer_RestartAfterStop(t *testing.T) {
	fetcher := &fakeFetcher{script: []fetchResult{
		{entries: []models.LeaderboardEntry{entry(1, 1, "alice", 100)}},
	}}
	s := New(fetcher, 7, WithInterval(testInterval))

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	calls := fetcher.callCount()

	assert.True(t, errors.Is(s.Start(context.Background()), ErrInactive))
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, fetcher.callCount())
}
