// Package session ties the participant, the contest and the background
// submission and leaderboard loops together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/terra-clan/contest-client/internal/drafts"
	"github.com/terra-clan/contest-client/internal/leaderboard"
	"github.com/terra-clan/contest-client/internal/models"
	"github.com/terra-clan/contest-client/internal/storage"
	"github.com/terra-clan/contest-client/internal/tracker"
)

// Common errors
var (
	ErrNotJoined          = errors.New("not joined to a contest")
	ErrNoProblem          = errors.New("no problem selected")
	ErrNotConfirmed       = errors.New("submission was not confirmed")
	ErrSubmissionInFlight = errors.New("previous submission is still being judged")
)

// Persisted keys
const (
	keyUser      = "user"
	keyContestID = "contestId"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
)

// Event kinds
const (
	EventSubmission  = "submission"
	EventLeaderboard = "leaderboard"
	EventSession     = "session"
)

// Event is a change pushed to subscribers
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Judge is the part of the judge API the controller needs
type Judge interface {
	tracker.Judge
	leaderboard.Fetcher

	GetContest(ctx context.Context, contestID int64) (*models.Contest, error)
	JoinContest(ctx context.Context, contestID int64, req models.JoinRequest) (*models.User, error)
	GetProblem(ctx context.Context, contestID, problemID int64) (*models.ProblemDetail, error)
}

// ConfirmFunc is asked before a submission is sent. Returning false aborts it.
type ConfirmFunc func(req models.SubmitRequest) bool

// State is what the UI needs to render the contest page
type State struct {
	User      *models.User    `json:"user,omitempty"`
	ContestID int64           `json:"contestId,omitempty"`
	Contest   *models.Contest `json:"contest,omitempty"`
	ProblemID int64           `json:"problemId,omitempty"`
	Language  models.Language `json:"language"`
}

// Controller is the contest session of one participant
type Controller struct {
	judge  Judge
	store  storage.Store
	drafts *drafts.Cache

	base        context.Context
	trackerOpts []tracker.Option
	boardOpts   []leaderboard.Option

	mu        sync.Mutex
	user      *models.User
	contestID int64
	contest   *models.Contest
	problemID int64
	problem   *models.ProblemDetail
	language  models.Language
	tracker   *tracker.Tracker
	board     *leaderboard.Synchronizer

	subMu       sync.RWMutex
	subscribers map[uint64]func(Event)
	nextSub     uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithContext sets the parent context of the background loops
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.base = ctx
	}
}

// WithTrackerOptions passes options to every tracker the controller creates
func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(c *Controller) {
		c.trackerOpts = append(c.trackerOpts, opts...)
	}
}

// WithLeaderboardOptions passes options to the leaderboard synchronizer
func WithLeaderboardOptions(opts ...leaderboard.Option) Option {
	return func(c *Controller) {
		c.boardOpts = append(c.boardOpts, opts...)
	}
}

// New creates a controller with no participant
func New(judge Judge, store storage.Store, cache *drafts.Cache, opts ...Option) *Controller {
	c := &Controller{
		judge:       judge,
		store:       store,
		drafts:      cache,
		base:        context.Background(),
		language:    models.DefaultLanguage,
		subscribers: make(map[uint64]func(Event)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Join registers the participant in a contest and persists the identity.
// A new identity replaces the previous one.
func (c *Controller) Join(ctx context.Context, contestID int64, username, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateJoin(contestID, username, email); err != nil {
		return nil, err
	}

	req := models.JoinRequest{Username: username}
	if email != "" {
		req.Email = &email
	}

	user, err := c.judge.JoinContest(ctx, contestID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to join contest: %w", err)
	}

	c.persistIdentity(ctx, user, contestID)

	c.mu.Lock()
	prevTracker, prevBoard := c.tracker, c.board
	c.user = user
	c.contestID = contestID
	c.contest = nil
	c.problemID = 0
	c.problem = nil
	c.tracker = nil
	c.board = nil
	state := c.stateLocked()
	c.mu.Unlock()

	stopAll(prevTracker, prevBoard)

	slog.Info("joined contest", "contest_id", contestID, "user_id", user.ID, "username", user.Username)
	c.emit(Event{Kind: EventSession, Payload: state})
	return user, nil
}

func validateJoin(contestID int64, username, email string) error {
	if contestID <= 0 {
		return models.NewValidationError("contestId", "please fill in all required fields")
	}
	if username == "" {
		return models.NewValidationError("username", "please fill in all required fields")
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLen {
		return models.NewValidationError("username", fmt.Sprintf("username must be at least %d characters", minUsernameLen))
	} else if n > maxUsernameLen {
		return models.NewValidationError("username", fmt.Sprintf("username must be at most %d characters", maxUsernameLen))
	}
	if email != "" && !strings.Contains(email, "@") {
		return models.NewValidationError("email", "email address is not valid")
	}
	return nil
}

func (c *Controller) persistIdentity(ctx context.Context, user *models.User, contestID int64) {
	data, err := json.Marshal(user)
	if err != nil {
		slog.Warn("failed to encode identity", "error", err)
		return
	}
	if err := c.store.Set(ctx, keyUser, string(data)); err != nil {
		slog.Warn("failed to persist identity", "error", err)
	}
	if err := c.store.Set(ctx, keyContestID, strconv.FormatInt(contestID, 10)); err != nil {
		slog.Warn("failed to persist contest id", "error", err)
	}
}

// Restore loads the identity persisted by an earlier Join
func (c *Controller) Restore(ctx context.Context) (*models.User, int64, error) {
	raw, err := c.store.Get(ctx, keyUser)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to read identity", "error", err)
		}
		return nil, 0, ErrNotJoined
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		slog.Warn("ignoring malformed identity", "error", err)
		return nil, 0, ErrNotJoined
	}

	rawID, err := c.store.Get(ctx, keyContestID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to read contest id", "error", err)
		}
		return nil, 0, ErrNotJoined
	}
	contestID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || contestID <= 0 {
		slog.Warn("ignoring malformed contest id", "value", rawID)
		return nil, 0, ErrNotJoined
	}

	c.mu.Lock()
	c.user = &user
	c.contestID = contestID
	state := c.stateLocked()
	c.mu.Unlock()

	slog.Info("session restored", "contest_id", contestID, "user_id", user.ID)
	c.emit(Event{Kind: EventSession, Payload: state})
	return &user, contestID, nil
}

// Enter loads the contest, selects its first problem and starts the leaderboard.
// A failing first leaderboard load is shown on the board, not returned.
func (c *Controller) Enter(ctx context.Context) (*models.Contest, error) {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil, ErrNotJoined
	}
	contestID := c.contestID
	c.mu.Unlock()

	contest, err := c.judge.GetContest(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}

	board := leaderboard.New(c.judge, contestID, c.boardOpts...)
	board.OnChange(func(v leaderboard.View) {
		if c.currentBoard(board) {
			c.emit(Event{Kind: EventLeaderboard, Payload: v})
		}
	})

	c.mu.Lock()
	if c.user == nil || c.contestID != contestID {
		c.mu.Unlock()
		return nil, ErrNotJoined
	}
	prevBoard := c.board
	c.contest = contest
	c.board = board
	if !contest.HasProblem(c.problemID) {
		c.problemID = 0
		c.problem = nil
		if len(contest.Problems) > 0 {
			c.problemID = contest.Problems[0].ID
		}
	}
	state := c.stateLocked()
	c.mu.Unlock()

	stopAll(nil, prevBoard)

	slog.Info("entered contest", "contest_id", contestID, "problems", len(contest.Problems))
	c.emit(Event{Kind: EventSession, Payload: state})

	// A Leave or Join since the unlock has already stopped the board for good
	if err := board.Start(c.base); errors.Is(err, leaderboard.ErrInactive) {
		slog.Debug("contest left before the leaderboard started", "contest_id", contestID)
	} else if err != nil {
		slog.Warn("leaderboard unavailable", "contest_id", contestID, "error", err)
	}

	return contest, nil
}

// SelectProblem switches to another problem of the contest.
// The current submission and the leaderboard are left alone.
func (c *Controller) SelectProblem(problemID int64) error {
	c.mu.Lock()
	if c.contest == nil {
		c.mu.Unlock()
		return ErrNotJoined
	}
	if !c.contest.HasProblem(problemID) {
		c.mu.Unlock()
		return models.NewValidationError("problemId", "problem is not part of this contest")
	}
	if c.problemID != problemID {
		c.problemID = problemID
		c.problem = nil
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventSession, Payload: state})
	return nil
}

// Problem returns the statement of the selected problem
func (c *Controller) Problem(ctx context.Context) (*models.ProblemDetail, error) {
	c.mu.Lock()
	contestID, problemID, cached := c.contestID, c.problemID, c.problem
	c.mu.Unlock()

	if problemID == 0 {
		return nil, ErrNoProblem
	}
	if cached != nil {
		return cached, nil
	}

	problem, err := c.judge.GetProblem(ctx, contestID, problemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load problem: %w", err)
	}

	c.mu.Lock()
	if c.contestID == contestID && c.problemID == problemID {
		c.problem = problem
	}
	c.mu.Unlock()

	return problem, nil
}

// SetLanguage changes the editor language
func (c *Controller) SetLanguage(lang models.Language) error {
	if !lang.Valid() {
		return models.NewValidationError("language", fmt.Sprintf("unsupported language: %q", lang))
	}

	c.mu.Lock()
	c.language = lang
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventSession, Payload: state})
	return nil
}

// Language returns the editor language
func (c *Controller) Language() models.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// Draft returns the code for the current problem and language
func (c *Controller) Draft(ctx context.Context) (string, error) {
	contestID, problemID, lang, err := c.draftKey()
	if err != nil {
		return "", err
	}
	return c.drafts.Get(ctx, contestID, problemID, lang), nil
}

// SaveDraft records the code for the current problem and language
func (c *Controller) SaveDraft(ctx context.Context, code string) error {
	contestID, problemID, lang, err := c.draftKey()
	if err != nil {
		return err
	}
	c.drafts.Set(ctx, contestID, problemID, lang, code)
	return nil
}

func (c *Controller) draftKey() (int64, int64, models.Language, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.problemID == 0 {
		return 0, 0, "", ErrNoProblem
	}
	return c.contestID, c.problemID, c.language, nil
}

// Submit sends the current draft for judging and starts tracking it.
// confirm may be nil, which counts as confirmed.
func (c *Controller) Submit(ctx context.Context, confirm ConfirmFunc) (*models.Submission, error) {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil, ErrNotJoined
	}
	if c.problemID == 0 {
		c.mu.Unlock()
		return nil, ErrNoProblem
	}
	if inFlight(c.tracker) {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	req := models.SubmitRequest{
		UserID:    c.user.ID,
		ProblemID: c.problemID,
		ContestID: c.contestID,
		Language:  c.language,
	}
	c.mu.Unlock()

	req.Code = c.drafts.Get(ctx, req.ContestID, req.ProblemID, req.Language)
	if strings.TrimSpace(req.Code) == "" {
		return nil, models.NewValidationError("code", "please write some code before submitting")
	}

	if confirm != nil && !confirm(req) {
		return nil, ErrNotConfirmed
	}

	opts := append([]tracker.Option{tracker.WithContext(c.base)}, c.trackerOpts...)
	t := tracker.New(c.judge, opts...)
	t.OnChange(func(v tracker.View) {
		if c.currentTracker(t) {
			c.emit(Event{Kind: EventSubmission, Payload: v})
		}
	})

	c.mu.Lock()
	if c.user == nil || c.contestID != req.ContestID {
		c.mu.Unlock()
		return nil, ErrNotJoined
	}
	if inFlight(c.tracker) {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	prev := c.tracker
	c.tracker = t
	c.mu.Unlock()

	stopAll(prev, nil)

	return t.Submit(ctx, req)
}

// inFlight reports whether a tracker has not yet settled
func inFlight(t *tracker.Tracker) bool {
	if t == nil {
		return false
	}
	v := t.Snapshot()
	return v.State == tracker.StateIdle || v.Polling
}

// Submission returns the state of the current submission
func (c *Controller) Submission() (tracker.View, bool) {
	c.mu.Lock()
	t := c.tracker
	c.mu.Unlock()

	if t == nil {
		return tracker.View{State: tracker.StateIdle}, false
	}
	return t.Snapshot(), true
}

// WaitSubmission blocks until the current submission settles or ctx is done
func (c *Controller) WaitSubmission(ctx context.Context) (tracker.View, error) {
	c.mu.Lock()
	t := c.tracker
	c.mu.Unlock()

	if t == nil {
		return tracker.View{State: tracker.StateIdle}, nil
	}
	return t.Wait(ctx)
}

// DismissSubmission stops and forgets the current submission
func (c *Controller) DismissSubmission() {
	c.mu.Lock()
	t := c.tracker
	c.tracker = nil
	c.mu.Unlock()

	if t == nil {
		return
	}
	stopAll(t, nil)
	c.emit(Event{Kind: EventSubmission, Payload: tracker.View{State: tracker.StateIdle}})
}

// Leaderboard returns the current standings
func (c *Controller) Leaderboard() (leaderboard.View, error) {
	c.mu.Lock()
	board := c.board
	c.mu.Unlock()

	if board == nil {
		return leaderboard.View{}, ErrNotJoined
	}
	return board.Snapshot(), nil
}

// RefreshLeaderboard fetches the standings now
func (c *Controller) RefreshLeaderboard(ctx context.Context) error {
	c.mu.Lock()
	board := c.board
	c.mu.Unlock()

	if board == nil {
		return ErrNotJoined
	}
	return board.Refresh(ctx)
}

// State returns the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		ContestID: c.contestID,
		Contest:   c.contest,
		ProblemID: c.problemID,
		Language:  c.language,
	}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	return s
}

// Leave ends the session: background work stops and the persisted identity is removed
func (c *Controller) Leave(ctx context.Context) {
	c.mu.Lock()
	t, board := c.tracker, c.board
	contestID := c.contestID
	c.user = nil
	c.contestID = 0
	c.contest = nil
	c.problemID = 0
	c.problem = nil
	c.tracker = nil
	c.board = nil
	state := c.stateLocked()
	c.mu.Unlock()

	stopAll(t, board)

	for _, key := range []string{keyUser, keyContestID} {
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete persisted state", "key", key, "error", err)
		}
	}

	slog.Info("left contest", "contest_id", contestID)
	c.emit(Event{Kind: EventSession, Payload: state})
}

// Close stops background work but keeps the persisted identity
func (c *Controller) Close() {
	c.mu.Lock()
	t, board := c.tracker, c.board
	c.mu.Unlock()

	stopAll(t, board)
}

// Subscribe registers fn for every session event and returns a function that removes it.
// fn runs on the goroutine that caused the change and must not block.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) emit(e Event) {
	c.subMu.RLock()
	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

func (c *Controller) currentTracker(t *tracker.Tracker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker == t
}

func (c *Controller) currentBoard(b *leaderboard.Synchronizer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board == b
}

func stopAll(t *tracker.Tracker, board *leaderboard.Synchronizer) {
	if t != nil {
		t.Stop()
	}
	if board != nil {
		board.Stop()
	}
}
