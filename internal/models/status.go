package models

import (
	"time"
)

// TimeLayout is the textual pattern for date fields in request and response
// bodies. Values are interpreted as UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Election statuses derived from the time window
const (
	ElectionUpcoming  = "upcoming"
	ElectionActive    = "active"
	ElectionCompleted = "completed"
)

// Voting session states
const (
	SessionScheduled = "scheduled"
	SessionOpen      = "open"
	SessionClosed    = "closed"
)

// ParseTime parses a request date in TimeLayout as a UTC instant
func ParseTime(value string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, value, time.UTC)
}

// FormatTime renders an instant in TimeLayout, in UTC
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DeriveElectionStatus computes an election's status from its window:
// before the window it is upcoming, inside it active, after it completed.
func DeriveElectionStatus(e *Election, now time.Time) string {
	if now.Before(e.StartTime) {
		return ElectionUpcoming
	}
	if now.After(e.EndTime) {
		return ElectionCompleted
	}
	return ElectionActive
}

// InWindow reports whether now falls inside the session's [start, end] window
func (s *VotingSession) InWindow(now time.Time) bool {
	return !now.Before(s.StartTime) && !now.After(s.EndTime)
}

// OpenAt reports whether voting is permitted at the given instant: the
// session must be open and the instant inside the window.
func (s *VotingSession) OpenAt(now time.Time) bool {
	return s.Status == SessionOpen && s.InWindow(now)
}

// InitialSessionStatus computes a new session's state from the creation
// instant: open if already inside the window, otherwise scheduled.
func InitialSessionStatus(start, end, now time.Time) string {
	if !now.Before(start) && !now.After(end) {
		return SessionOpen
	}
	return SessionScheduled
}
