package models

// Difficulty of a problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Contest is a read-only snapshot fetched on contest entry
type Contest struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	StartTime   Timestamp        `json:"startTime"`
	EndTime     Timestamp        `json:"endTime"`
	IsActive    bool             `json:"isActive"`
	Problems    []ProblemSummary `json:"problems"`
}

// HasProblem reports whether the problem belongs to the contest
func (c *Contest) HasProblem(id int64) bool {
	for _, p := range c.Problems {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ProblemSummary is the problem list entry
type ProblemSummary struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimitMs   int64      `json:"timeLimitMs"`
	MemoryLimitMb int64      `json:"memoryLimitMb"`
}

// ProblemDetail is the full statement of a problem
type ProblemDetail struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Difficulty      Difficulty        `json:"difficulty"`
	TimeLimitMs     int64             `json:"timeLimitMs"`
	MemoryLimitMb   int64             `json:"memoryLimitMb"`
	SampleTestCases []TestCaseSummary `json:"sampleTestCases"`
}

// TestCaseSummary is a sample test case shown with the statement
type TestCaseSummary struct {
	ID             int64  `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}
