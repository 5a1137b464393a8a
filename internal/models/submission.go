package models

import "fmt"

// SubmissionStatus represents the judge's verdict state for a submission
type SubmissionStatus string

const (
	StatusPending             SubmissionStatus = "PENDING"
	StatusRunning             SubmissionStatus = "RUNNING"
	StatusAccepted            SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer         SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded   SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError        SubmissionStatus = "RUNTIME_ERROR"
	StatusCompilationError    SubmissionStatus = "COMPILATION_ERROR"
	StatusSystemError         SubmissionStatus = "SYSTEM_ERROR"
)

// IsTerminal returns true if the status is a final verdict.
// Anything other than PENDING or RUNNING is terminal, unknown values included.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusPending, StatusRunning:
		return false
	}
	return true
}

// Text returns the human readable verdict
func (s SubmissionStatus) Text() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusAccepted:
		return "Accepted"
	case StatusWrongAnswer:
		return "Wrong Answer"
	case StatusTimeLimitExceeded:
		return "Time Limit Exceeded"
	case StatusMemoryLimitExceeded:
		return "Memory Limit Exceeded"
	case StatusRuntimeError:
		return "Runtime Error"
	case StatusCompilationError:
		return "Compilation Error"
	case StatusSystemError:
		return "System Error"
	default:
		return string(s)
	}
}

// Submission is the judge's snapshot of a submitted solution
type Submission struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"userId"`
	ProblemID       int64            `json:"problemId"`
	ContestID       int64            `json:"contestId"`
	Language        Language         `json:"language"`
	Status          SubmissionStatus `json:"status"`
	Result          *string          `json:"result,omitempty"`
	Score           int              `json:"score"`
	ExecutionTimeMs *int64           `json:"executionTimeMs,omitempty"`
	MemoryUsedMb    *int64           `json:"memoryUsedMb,omitempty"`
	ErrorMessage    *string          `json:"errorMessage,omitempty"`
	TestCasesPassed int              `json:"testCasesPassed"`
	TotalTestCases  int              `json:"totalTestCases"`
	SubmittedAt     Timestamp        `json:"submittedAt"`
	CompletedAt     *Timestamp       `json:"completedAt,omitempty"`
	TestCaseResults []TestCaseResult `json:"testCaseResults,omitempty"`
}

// TestCaseResult is the verdict for a single test case
type TestCaseResult struct {
	TestCaseNumber  int    `json:"testCaseNumber"`
	Passed          bool   `json:"passed"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Verdict         string `json:"verdict"`
}

// Clone returns a deep copy so callers never share the tracked snapshot
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	c := *s
	if s.TestCaseResults != nil {
		c.TestCaseResults = make([]TestCaseResult, len(s.TestCaseResults))
		copy(c.TestCaseResults, s.TestCaseResults)
	}
	return &c
}

// SubmitRequest is the body of a submission creation request
type SubmitRequest struct {
	UserID    int64    `json:"userId"`
	ProblemID int64    `json:"problemId"`
	ContestID int64    `json:"contestId"`
	Code      string   `json:"code"`
	Language  Language `json:"language"`
}

// FormatTime renders an execution time the way the status panel shows it
func FormatTime(ms *int64) string {
	if ms == nil || *ms == 0 {
		return "-"
	}
	if *ms < 1000 {
		return fmt.Sprintf("%dms", *ms)
	}
	return fmt.Sprintf("%.2fs", float64(*ms)/1000)
}

// FormatMemory renders a memory usage in megabytes
func FormatMemory(mb *int64) string {
	if mb == nil || *mb == 0 {
		return "-"
	}
	return fmt.Sprintf("%dMB", *mb)
}
