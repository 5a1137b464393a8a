package models

// User is the participant identity returned by a join
type User struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
}

// JoinRequest is the body of a contest join request
type JoinRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
}

// JoinResponse is what the judge returns for a join
type JoinResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}
