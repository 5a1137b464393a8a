package models

// LeaderboardEntry is one ranked participant. Ranks are computed by the judge.
type LeaderboardEntry struct {
	Rank               int        `json:"rank"`
	UserID             int64      `json:"userId"`
	Username           string     `json:"username"`
	TotalScore         int        `json:"totalScore"`
	ProblemsSolved     int        `json:"problemsSolved"`
	LastSubmissionTime *Timestamp `json:"lastSubmissionTime,omitempty"`
}

// LeaderboardResponse holds the standings of a contest ordered by rank
type LeaderboardResponse struct {
	ContestID   int64              `json:"contestId"`
	LastUpdated Timestamp          `json:"lastUpdated"`
	Entries     []LeaderboardEntry `json:"entries"`
}
