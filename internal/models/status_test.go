package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) time.Time {
	parsed, err := ParseTime(value)
	require.NoError(t, err)
	return parsed
}

func TestParseTime(t *testing.T) {
	parsed, err := ParseTime("2025-01-01 10:00:00")
	require.NoError(t, err)

	// Parsed instants are UTC
	assert.Equal(t, time.UTC, parsed.Location())
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), parsed)

	// Round trip through the wire format
	assert.Equal(t, "2025-01-01 10:00:00", FormatTime(parsed))

	// Malformed inputs
	for _, input := range []string{
		"2025-01-01T10:00:00",
		"01/01/2025 10:00",
		"2025-13-01 10:00:00",
		"not a date",
		"",
	} {
		_, err := ParseTime(input)
		assert.Error(t, err, "input %q should not parse", input)
	}
}

func TestDeriveElectionStatus(t *testing.T) {
	election := &Election{
		StartTime: mustParse(t, "2025-01-01 10:00:00"),
		EndTime:   mustParse(t, "2025-01-01 12:00:00"),
	}

	tests := []struct {
		name string
		now  string
		want string
	}{
		{"before the window", "2025-01-01 09:00:00", ElectionUpcoming},
		{"at the start boundary", "2025-01-01 10:00:00", ElectionActive},
		{"inside the window", "2025-01-01 11:00:00", ElectionActive},
		{"at the end boundary", "2025-01-01 12:00:00", ElectionActive},
		{"after the window", "2025-01-01 12:00:01", ElectionCompleted},
		{"a day later", "2025-01-02 10:00:00", ElectionCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveElectionStatus(election, mustParse(t, tt.now)))
		})
	}
}

func TestSessionWindow(t *testing.T) {
	session := &VotingSession{
		StartTime: mustParse(t, "2025-01-01 10:00:00"),
		EndTime:   mustParse(t, "2025-01-01 12:00:00"),
		Status:    SessionOpen,
	}

	// Boundaries are inclusive
	assert.True(t, session.InWindow(mustParse(t, "2025-01-01 10:00:00")))
	assert.True(t, session.InWindow(mustParse(t, "2025-01-01 11:00:00")))
	assert.True(t, session.InWindow(mustParse(t, "2025-01-01 12:00:00")))
	assert.False(t, session.InWindow(mustParse(t, "2025-01-01 09:59:59")))
	assert.False(t, session.InWindow(mustParse(t, "2025-01-01 12:00:01")))

	// Voting needs both an open status and an in-window instant
	assert.True(t, session.OpenAt(mustParse(t, "2025-01-01 11:00:00")))
	assert.False(t, session.OpenAt(mustParse(t, "2025-01-01 09:00:00")))

	session.Status = SessionScheduled
	assert.False(t, session.OpenAt(mustParse(t, "2025-01-01 11:00:00")))

	session.Status = SessionClosed
	assert.False(t, session.OpenAt(mustParse(t, "2025-01-01 11:00:00")))
}

func TestInitialSessionStatus(t *testing.T) {
	start := mustParse(t, "2025-01-01 10:00:00")
	end := mustParse(t, "2025-01-01 12:00:00")

	assert.Equal(t, SessionScheduled, InitialSessionStatus(start, end, mustParse(t, "2025-01-01 09:00:00")))
	assert.Equal(t, SessionOpen, InitialSessionStatus(start, end, mustParse(t, "2025-01-01 10:00:00")))
	assert.Equal(t, SessionOpen, InitialSessionStatus(start, end, mustParse(t, "2025-01-01 11:00:00")))
	assert.Equal(t, SessionOpen, InitialSessionStatus(start, end, mustParse(t, "2025-01-01 12:00:00")))
	assert.Equal(t, SessionScheduled, InitialSessionStatus(start, end, mustParse(t, "2025-01-01 13:00:00")))
}
