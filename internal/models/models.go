package models

import (
	"time"
)

// User roles
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// EndUser represents a registered account (voter or admin)
type EndUser struct {
	StudentID    int64     `db:"student_id" json:"student_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"` // bcrypt hash, not returned in JSON
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Election represents a named voting event with a time window. Its status
// (upcoming/active/completed) is derived from the window, never stored.
type Election struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	StartTime   time.Time `db:"start_time" json:"-"`
	EndTime     time.Time `db:"end_time" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// Position represents an office contested within an election
type Position struct {
	ID         int64  `db:"id" json:"id"`
	ElectionID int64  `db:"election_id" json:"election_id"`
	Name       string `db:"name" json:"name"`
}

// Candidate represents a contestant for one position, with a running tally
type Candidate struct {
	ID         int64  `db:"id" json:"id"`
	ElectionID int64  `db:"election_id" json:"election_id"`
	PositionID int64  `db:"position_id" json:"position_id"`
	Name       string `db:"name" json:"name"`
	Manifesto  string `db:"manifesto" json:"manifesto"`
	VoteCount  int64  `db:"vote_count" json:"vote_count"`
}

// VotingSession represents the time-bounded window during which votes may be
// cast for an election. At most one session per election is open at a time.
type VotingSession struct {
	SessionID  int64     `db:"session_id" json:"id"`
	ElectionID int64     `db:"election_id" json:"election_id"`
	StartTime  time.Time `db:"start_time" json:"-"`
	EndTime    time.Time `db:"end_time" json:"-"`
	Status     string    `db:"status" json:"status"`
}

// Vote is an immutable record tying one voter to one candidate for one
// position in one election. (student_id, election_id, position_id) is unique.
type Vote struct {
	ID          int64     `db:"id" json:"id"`
	StudentID   int64     `db:"student_id" json:"student_id"`
	ElectionID  int64     `db:"election_id" json:"election_id"`
	PositionID  int64     `db:"position_id" json:"position_id"`
	CandidateID int64     `db:"candidate_id" json:"candidate_id"`
	VoteTime    time.Time `db:"vote_time" json:"vote_time"`
}

// AuditEntry is an append-only record of a state-changing action
type AuditEntry struct {
	ID        string    `db:"id" json:"id"`
	ActorID   int64     `db:"actor_id" json:"actor_id"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  int64     `db:"entity_id" json:"entity_id"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
