package service

import "errors"

// Sentinel errors classifying every rejection the service can produce. The
// API layer maps them to HTTP statuses with errors.Is; anything unwrapped to
// one of these is an internal error.
var (
	// ErrValidation covers missing/malformed fields and referentially
	// inconsistent ids (candidate not on the given ballot, bad dates).
	ErrValidation = errors.New("invalid request")

	// ErrInvalidCredentials covers failed login attempts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden covers role mismatches.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers missing elections, positions, candidates and users.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken covers a registration with an already-registered email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrAlreadyVoted covers a second vote for the same (voter, election,
	// position) key.
	ErrAlreadyVoted = errors.New("already voted for this position")

	// ErrVotingNotConfigured is returned when an election has no voting
	// session at all.
	ErrVotingNotConfigured = errors.New("voting is not configured for this election")

	// ErrVotingNotOpen is returned when the election's session does not
	// permit voting right now.
	ErrVotingNotOpen = errors.New("voting is not open for this election")
)
