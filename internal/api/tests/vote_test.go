package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/univote/election-server/internal/api/testutils"
	"github.com/univote/election-server/internal/models"
)

func TestVoteLifecycle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	now := time.Now().UTC()

	// Too early: the window has not started
	early := testutils.CreateBallot(t, testCtx, now.Add(time.Hour), now.Add(2*time.Hour))

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		models.CastVoteRequest{
			ElectionID:  early.ElectionID,
			PositionID:  early.PositionID,
			CandidateID: early.CandidateID,
		},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Inside the window the vote lands
	open := testutils.CreateBallot(t, testCtx, now.Add(-time.Hour), now.Add(time.Hour))
	voteReq := models.CastVoteRequest{
		ElectionID:  open.ElectionID,
		PositionID:  open.PositionID,
		CandidateID: open.CandidateID,
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		voteReq,
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// A second vote for the same position is a conflict
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		voteReq,
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Exactly one vote was counted
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/results?election_id=%d", open.ElectionID),
		nil,
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var results []models.CandidateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Votes)
}

func TestVoteValidation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	now := time.Now().UTC()
	open := testutils.CreateBallot(t, testCtx, now.Add(-time.Hour), now.Add(time.Hour))
	other := testutils.CreateBallot(t, testCtx, now.Add(-time.Hour), now.Add(time.Hour))

	// Missing fields
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		map[string]interface{}{"election_id": open.ElectionID},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Candidate from another election's ballot: referentially inconsistent
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		models.CastVoteRequest{
			ElectionID:  open.ElectionID,
			PositionID:  open.PositionID,
			CandidateID: other.CandidateID,
		},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// Nonexistent candidate
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		models.CastVoteRequest{
			ElectionID:  open.ElectionID,
			PositionID:  open.PositionID,
			CandidateID: 999999,
		},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// No failed attempt altered the tally
	count, err := testCtx.Repository.CountVotesForCandidate(context.Background(), open.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestVoteWithoutSession(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// An election row without any voting session (inserted directly; the
	// API always provisions one)
	now := time.Now().UTC()
	var electionID int64
	err := testCtx.DB.QueryRow(`
		INSERT INTO elections (title, description, start_time, end_time, created_at)
		VALUES ('No Session', 'Misconfigured', $1, $2, $3)
		RETURNING id
	`, now.Add(-time.Hour), now.Add(time.Hour), now).Scan(&electionID)
	require.NoError(t, err)

	var positionID int64
	err = testCtx.DB.QueryRow(`
		INSERT INTO positions (election_id, name) VALUES ($1, 'President') RETURNING id
	`, electionID).Scan(&positionID)
	require.NoError(t, err)

	var candidateID int64
	err = testCtx.DB.QueryRow(`
		INSERT INTO candidates (election_id, position_id, name) VALUES ($1, $2, 'Nobody') RETURNING id
	`, electionID, positionID).Scan(&candidateID)
	require.NoError(t, err)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		models.CastVoteRequest{
			ElectionID:  electionID,
			PositionID:  positionID,
			CandidateID: candidateID,
		},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	var resp models.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "not configured")
}

func TestVoteAfterWindowNeverRecorded(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	now := time.Now().UTC()
	ended := testutils.CreateBallot(t, testCtx, now.Add(-2*time.Hour), now.Add(-time.Hour))

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/vote",
		models.CastVoteRequest{
			ElectionID:  ended.ElectionID,
			PositionID:  ended.PositionID,
			CandidateID: ended.CandidateID,
		},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Nothing was recorded anywhere
	count, err := testCtx.Repository.CountVotesForCandidate(context.Background(), ended.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	candidate, err := testCtx.Repository.GetCandidate(context.Background(), ended.CandidateID)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, int64(0), candidate.VoteCount)
}

func TestResultsOrderingAndGrouping(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	now := time.Now().UTC()
	ballot := testutils.CreateBallot(t, testCtx, now.Add(-time.Hour), now.Add(time.Hour))
	runnerUpID := testutils.AddCandidate(t, testCtx, ballot, "Brian Otieno")

	// Three voters: two for the first candidate, one for the runner-up
	voters := []struct {
		email       string
		candidateID int64
	}{
		{"one@example.com", ballot.CandidateID},
		{"two@example.com", ballot.CandidateID},
		{"three@example.com", runnerUpID},
	}

	for _, v := range voters {
		_, token := testutils.RegisterVoter(t, testCtx, v.email)
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/vote",
			models.CastVoteRequest{
				ElectionID:  ballot.ElectionID,
				PositionID:  ballot.PositionID,
				CandidateID: v.candidateID,
			},
			testutils.AuthHeaders(token),
		)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// Voter-facing results are ordered by votes, descending
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/results?election_id=%d", ballot.ElectionID),
		nil,
		testutils.AuthHeaders(testCtx.VoterJWT),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var results []models.CandidateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].Votes)
	assert.Equal(t, int64(1), results[1].Votes)
	assert.Equal(t, ballot.CandidateID, results[0].CandidateID)

	// Admin results are grouped by position
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/admin/elections/%d/results", ballot.ElectionID),
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var grouped models.ElectionResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grouped))
	require.Len(t, grouped.Results, 1)
	assert.Equal(t, "President", grouped.Results[0].Position)
	require.Len(t, grouped.Results[0].Candidates, 2)
	assert.Equal(t, int64(2), grouped.Results[0].Candidates[0].Votes)

	// The audit trail recorded the votes
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/admin/audit?limit=50",
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var audit models.AuditLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audit))

	casts := 0
	for _, entry := range audit.Entries {
		if entry.Action == "cast_vote" {
			casts++
		}
	}
	assert.Equal(t, 3, casts)
}
