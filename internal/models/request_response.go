package models

// Request models
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type PromoteUserRequest struct {
	StudentID int64  `json:"student_id" binding:"required"`
	Role      string `json:"role" binding:"required,oneof=voter admin"`
}

type CreateElectionRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
}

// UpdateElectionRequest carries a partial update; nil fields are untouched.
type UpdateElectionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
}

type CreatePositionRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateCandidateRequest struct {
	Name       string `json:"name" binding:"required"`
	PositionID int64  `json:"position_id" binding:"required"`
	Manifesto  string `json:"manifesto"`
}

type CreateSessionRequest struct {
	ElectionID int64  `json:"election_id" binding:"required"`
	StartTime  string `json:"start_time" binding:"required"`
	EndTime    string `json:"end_time" binding:"required"`
	Status     string `json:"status"` // optional; computed from the window if absent
}

type CastVoteRequest struct {
	ElectionID  int64 `json:"election_id" binding:"required"`
	PositionID  int64 `json:"position_id" binding:"required"`
	CandidateID int64 `json:"candidate_id" binding:"required"`
}

// Response models
type MessageResponse struct {
	Message string `json:"message"`
}

type AuthResponse struct {
	Message   string `json:"message,omitempty"`
	StudentID int64  `json:"student_id"`
	Role      string `json:"role,omitempty"`
	Token     string `json:"access_token,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// ElectionResponse is an election with its derived status and formatted times
type ElectionResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type ElectionListResponse struct {
	Elections []ElectionResponse `json:"elections"`
}

type ElectionDetailResponse struct {
	Election   ElectionResponse `json:"election"`
	Positions  []Position       `json:"positions"`
	Candidates []Candidate      `json:"candidates"`
}

type SessionResponse struct {
	SessionID  int64  `json:"id"`
	ElectionID int64  `json:"election_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
}

type CreateElectionResponse struct {
	Message  string           `json:"message"`
	Election ElectionResponse `json:"election"`
	Session  SessionResponse  `json:"session"`
}

type CreateSessionResponse struct {
	Message string          `json:"message"`
	Session SessionResponse `json:"session"`
}

// CandidateResult is one row of a tally listing
type CandidateResult struct {
	CandidateID int64  `json:"candidate_id"`
	Name        string `json:"name"`
	ElectionID  int64  `json:"election_id"`
	PositionID  int64  `json:"position_id"`
	Votes       int64  `json:"votes"`
}

// PositionResult groups candidate tallies under the contested position
type PositionResult struct {
	Position   string           `json:"position"`
	Candidates []CandidateTally `json:"candidates"`
}

type CandidateTally struct {
	Name  string `json:"name"`
	Votes int64  `json:"votes"`
}

type ElectionResultsResponse struct {
	Results []PositionResult `json:"results"`
}

type VoterListResponse struct {
	Voters []EndUser `json:"voters"`
}

type AuditLogResponse struct {
	Entries []AuditEntry `json:"entries"`
}
