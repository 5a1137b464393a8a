package tracker

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

const testInterval = 5 * time.Millisecond

type pollResult struct {
	status models.SubmissionStatus
	err    error
}

// fakeJudge answers polls from a script; the last entry repeats forever
type fakeJudge struct {
	mu          sync.Mutex
	createStat  models.SubmissionStatus
	createErr   error
	createCalls int
	script      []pollResult
	pollCalls   int
	returned    int
	release     chan struct{}
}

func (j *fakeJudge) CreateSubmission(ctx context.Context, req models.SubmitRequest) (*models.Submission, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.createCalls++
	if j.createErr != nil {
		return nil, j.createErr
	}
	status := j.createStat
	if status == "" {
		status = models.StatusPending
	}
	return &models.Submission{
		ID:        100,
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		ContestID: req.ContestID,
		Language:  req.Language,
		Status:    status,
	}, nil
}

func (j *fakeJudge) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	j.mu.Lock()
	j.pollCalls++
	n := j.pollCalls
	release := j.release
	var res pollResult
	if len(j.script) > 0 {
		idx := n - 1
		if idx >= len(j.script) {
			idx = len(j.script) - 1
		}
		res = j.script[idx]
	} else {
		res = pollResult{status: models.StatusRunning}
	}
	j.mu.Unlock()

	if release != nil {
		<-release
	}

	defer func() {
		j.mu.Lock()
		j.returned++
		j.mu.Unlock()
	}()

	if res.err != nil {
		return nil, res.err
	}
	return &models.Submission{ID: id, Status: res.status, Score: scoreFor(res.status)}, nil
}

func (j *fakeJudge) counts() (creates, polls, returned int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.createCalls, j.pollCalls, j.returned
}

func scoreFor(s models.SubmissionStatus) int {
	if s == models.StatusAccepted {
		return 100
	}
	return 0
}

func validRequest() models.SubmitRequest {
	return models.SubmitRequest{
		UserID:    1,
		ProblemID: 2,
		ContestID: 3,
		Code:      "print(1)",
		Language:  models.LanguagePython,
	}
}

func waitSettled(t *testing.T, tr *Tracker) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := tr.Wait(ctx)
	require.NoError(t, err)
	return v
}

func TestTracker_RejectsEmptyCode(t *testing.T) {
	testCases := []struct {
		name string
		code string
	}{
		{name: "empty", code: ""},
		{name: "whitespace", code: "  \n\t "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			judge := &fakeJudge{}
			tr := New(judge, WithInterval(testInterval))

			req := validRequest()
			req.Code = tc.code
			_, err := tr.Submit(context.Background(), req)

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "code", verr.Field)

			creates, _, _ := judge.counts()
			assert.Equal(t, 0, creates)
			assert.Equal(t, StateIdle, tr.Snapshot().State)
		})
	}
}

func TestTracker_PollsUntilTerminal(t *testing.T) {
	judge := &fakeJudge{script: []pollResult{
		{status: models.StatusRunning},
		{status: models.StatusAccepted},
		{status: models.StatusWrongAnswer},
	}}
	tr := New(judge, WithInterval(testInterval))

	var mu sync.Mutex
	var views []View
	tr.OnChange(func(v View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})

	sub, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sub.Status)

	v := waitSettled(t, tr)
	assert.Equal(t, StateTerminal, v.State)
	assert.Equal(t, models.StatusAccepted, v.Submission.Status)
	assert.Equal(t, 100, v.Submission.Score)
	assert.False(t, v.Polling)

	// Polling stopped: the scripted WRONG_ANSWER is never applied
	_, polls, _ := judge.counts()
	time.Sleep(10 * testInterval)
	_, pollsLater, _ := judge.counts()
	assert.Equal(t, polls, pollsLater)
	assert.Equal(t, models.StatusAccepted, tr.Snapshot().Submission.Status)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, views)
	for i := 1; i < len(views); i++ {
		assert.Greater(t, views[i].Seq, views[i-1].Seq)
	}
	assert.Equal(t, StateCreating, views[0].State)
	assert.Equal(t, StateTerminal, views[len(views)-1].State)
}

func TestTracker_TerminalOnCreate(t *testing.T) {
	judge := &fakeJudge{createStat: models.StatusCompilationError}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	v := tr.Snapshot()
	assert.Equal(t, StateTerminal, v.State)
	assert.Equal(t, models.StatusCompilationError, v.Submission.Status)

	time.Sleep(5 * testInterval)
	_, polls, _ := judge.counts()
	assert.Equal(t, 0, polls)
}

func TestTracker_CreateFailure(t *testing.T) {
	judge := &fakeJudge{createErr: errors.New("connection refused")}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	v := waitSettled(t, tr)
	assert.Equal(t, StateFailed, v.State)
	assert.Nil(t, v.Submission)
	assert.Equal(t, "connection refused", v.Error)
	assert.False(t, tr.Polling())

	creates, polls, _ := judge.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, polls)
}

func TestTracker_PollErrorsKeepPolling(t *testing.T) {
	judge := &fakeJudge{script: []pollResult{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{status: models.StatusTimeLimitExceeded},
	}}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	v := waitSettled(t, tr)
	assert.Equal(t, StateTerminal, v.State)
	assert.Equal(t, models.StatusTimeLimitExceeded, v.Submission.Status)
	assert.Empty(t, v.Error)
}

func TestTracker_StopDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	judge := &fakeJudge{
		script:  []pollResult{{status: models.StatusAccepted}},
		release: release,
	}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	// Wait for a poll to be in flight
	require.Eventually(t, func() bool {
		_, polls, _ := judge.counts()
		return polls >= 1
	}, time.Second, time.Millisecond)

	tr.Stop()
	assert.Equal(t, StateCancelled, tr.Snapshot().State)

	close(release)
	require.Eventually(t, func() bool {
		_, polls, returned := judge.counts()
		return returned == polls
	}, time.Second, time.Millisecond)

	v := tr.Snapshot()
	assert.Equal(t, StateCancelled, v.State)
	assert.Equal(t, models.StatusPending, v.Submission.Status)

	// Idempotent
	tr.Stop()
	assert.Equal(t, StateCancelled, tr.Snapshot().State)
}

func TestTracker_StopKeepsVerdict(t *testing.T) {
	judge := &fakeJudge{createStat: models.StatusAccepted}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	tr.Stop()
	assert.Equal(t, StateTerminal, tr.Snapshot().State)
}

func TestTracker_ApplyIgnoresStaleGeneration(t *testing.T) {
	judge := &fakeJudge{}
	tr := New(judge, WithInterval(time.Hour))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	tr.mu.Lock()
	gen := tr.gen
	tr.mu.Unlock()

	assert.False(t, tr.apply(gen-1, &models.Submission{ID: 100, Status: models.StatusAccepted}))
	assert.False(t, tr.apply(gen, &models.Submission{ID: 999, Status: models.StatusAccepted}))
	assert.True(t, tr.apply(gen, &models.Submission{ID: 100, Status: models.StatusRunning}))
	assert.True(t, tr.apply(gen, &models.Submission{ID: 100, Status: models.StatusWrongAnswer}))

	// Absorbing: nothing applies any more
	assert.False(t, tr.apply(gen, &models.Submission{ID: 100, Status: models.StatusAccepted}))
	assert.Equal(t, models.StatusWrongAnswer, tr.Snapshot().Submission.Status)
}

func TestTracker_ResubmitReplacesPolling(t *testing.T) {
	judge := &fakeJudge{}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan View, 1)
	go func() {
		v, _ := tr.Wait(ctx)
		done <- v
	}()

	// Give the waiter a chance to pick up the first settled channel
	time.Sleep(2 * testInterval)

	_, err = tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter on the replaced submission was not released")
	}

	assert.Equal(t, StatePolling, tr.Snapshot().State)
	tr.Stop()
}

func TestTracker_StopBeforeSubmitIsFinal(t *testing.T) {
	judge := &fakeJudge{}
	tr := New(judge, WithInterval(testInterval))

	views := make(chan View, 4)
	tr.OnChange(func(v View) { views <- v })

	tr.Stop()

	v := tr.Snapshot()
	assert.Equal(t, StateCancelled, v.State)
	assert.False(t, v.Polling)
	assert.Equal(t, StateCancelled, (<-views).State)

	_, err := tr.Submit(context.Background(), validRequest())
	assert.True(t, errors.Is(err, ErrStopped))

	time.Sleep(5 * testInterval)
	creates, polls, _ := judge.counts()
	assert.Zero(t, creates)
	assert.Zero(t, polls)
	assert.Equal(t, StateCancelled, tr.Snapshot().State)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = tr.Wait(ctx)
	assert.NoError(t, err)
}

func TestTracker_SubmitAfterVerdictAndStop(t *testing.T) {
	judge := &fakeJudge{createStat: models.StatusAccepted}
	tr := New(judge, WithInterval(testInterval))

	_, err := tr.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	tr.Stop()

	_, err = tr.Submit(context.Background(), validRequest())
	assert.True(t, errors.Is(err, ErrStopped))

	creates, _, _ := judge.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, StateTerminal, tr.Snapshot().State)
}
