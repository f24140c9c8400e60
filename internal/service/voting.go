package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/univote/election-server/internal/logger"
	"github.com/univote/election-server/internal/models"
	"github.com/univote/election-server/internal/repository"
	"go.uber.org/zap"
)

func (s *DefaultService) sessionResponse(session *models.VotingSession) models.SessionResponse {
	return models.SessionResponse{
		SessionID:  session.SessionID,
		ElectionID: session.ElectionID,
		StartTime:  models.FormatTime(session.StartTime),
		EndTime:    models.FormatTime(session.EndTime),
		Status:     session.Status,
	}
}

// CreateVotingSession creates a new session for an election. Any session
// still open for that election is closed in the same transaction, so at most
// one session per election is ever open.
func (s *DefaultService) CreateVotingSession(
	ctx context.Context,
	actorID int64,
	req models.CreateSessionRequest,
) (*models.CreateSessionResponse, error) {
	start, end, err := s.parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	election, err := s.repo.GetElection(ctx, req.ElectionID)
	if err != nil {
		return nil, fmt.Errorf("error getting election: %w", err)
	}
	if election == nil {
		return nil, fmt.Errorf("%w: election %d", ErrNotFound, req.ElectionID)
	}

	// An explicit status is honored if valid; otherwise it is computed from
	// the window at the creation instant.
	status := req.Status
	switch status {
	case models.SessionOpen, models.SessionScheduled, models.SessionClosed:
	default:
		status = models.InitialSessionStatus(start, end, s.now())
	}

	session := &models.VotingSession{
		ElectionID: req.ElectionID,
		StartTime:  start,
		EndTime:    end,
		Status:     status,
	}

	if err := s.repo.CreateVotingSession(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating voting session: %w", err)
	}

	s.audit(ctx, actorID, "create_session", "voting_session", session.SessionID, status)

	return &models.CreateSessionResponse{
		Message: "Voting session created successfully",
		Session: s.sessionResponse(session),
	}, nil
}

// resolveOpenSession finds the election's current session and decides
// whether voting is permitted right now, lazily opening a scheduled session
// whose window has arrived. Returns the session only when voting is open.
func (s *DefaultService) resolveOpenSession(ctx context.Context, electionID int64) (*models.VotingSession, error) {
	session, err := s.repo.GetLatestSession(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("error getting voting session: %w", err)
	}
	if session == nil {
		return nil, ErrVotingNotConfigured
	}

	now := s.now()

	if session.Status == models.SessionScheduled && session.InWindow(now) {
		opened, err := s.repo.OpenScheduledSession(ctx, session.SessionID)
		if err != nil {
			return nil, fmt.Errorf("error opening voting session: %w", err)
		}
		// Either this call opened it or a concurrent one already had
		session.Status = models.SessionOpen
		if opened {
			logger.Info("voting session opened",
				zap.Int64("session_id", session.SessionID),
				zap.Int64("election_id", electionID))
		}
	}

	if session.OpenAt(now) {
		return session, nil
	}

	// Distinguish the rejection reason for observability
	var reason string
	switch {
	case session.Status == models.SessionClosed:
		reason = "session closed"
	case now.Before(session.StartTime):
		reason = "voting has not started"
	case now.After(session.EndTime):
		reason = "voting has ended"
	default:
		reason = "session not open"
	}

	logger.Debug("vote attempt rejected",
		zap.Int64("election_id", electionID),
		zap.String("reason", reason))

	return nil, fmt.Errorf("%w: %s", ErrVotingNotOpen, reason)
}

// CastVote validates the ballot, checks the session gate and records the
// vote. The vote row and the tally increment commit atomically in the
// repository; the unique (voter, election, position) constraint decides
// duplicates regardless of interleaving.
func (s *DefaultService) CastVote(ctx context.Context, voterID int64, req models.CastVoteRequest) (*models.Vote, error) {
	// The candidate must belong to the given position and election
	candidate, err := s.repo.GetBallotCandidate(ctx, req.CandidateID, req.ElectionID, req.PositionID)
	if err != nil {
		return nil, fmt.Errorf("error resolving candidate: %w", err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: candidate %d is not on the ballot for position %d of election %d",
			ErrValidation, req.CandidateID, req.PositionID, req.ElectionID)
	}

	if _, err := s.resolveOpenSession(ctx, req.ElectionID); err != nil {
		return nil, err
	}

	vote := &models.Vote{
		StudentID:   voterID,
		ElectionID:  req.ElectionID,
		PositionID:  req.PositionID,
		CandidateID: req.CandidateID,
		VoteTime:    s.now(),
	}

	if err := s.repo.CastVote(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicateVote) {
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("error recording vote: %w", err)
	}

	s.audit(ctx, voterID, "cast_vote", "vote", vote.ID, candidate.Name)

	return vote, nil
}

// Results lists candidate tallies ordered by vote count, optionally
// filtered by election and position.
func (s *DefaultService) Results(ctx context.Context, electionID, positionID int64) ([]models.CandidateResult, error) {
	candidates, err := s.repo.ListCandidatesByVotes(ctx, electionID, positionID)
	if err != nil {
		return nil, fmt.Errorf("error listing results: %w", err)
	}

	results := make([]models.CandidateResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, models.CandidateResult{
			CandidateID: c.ID,
			Name:        c.Name,
			ElectionID:  c.ElectionID,
			PositionID:  c.PositionID,
			Votes:       c.VoteCount,
		})
	}

	return results, nil
}

// ElectionResults groups candidate tallies by position for one election
func (s *DefaultService) ElectionResults(ctx context.Context, electionID int64) ([]models.PositionResult, error) {
	election, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("error getting election: %w", err)
	}
	if election == nil {
		return nil, fmt.Errorf("%w: election %d", ErrNotFound, electionID)
	}

	positions, err := s.repo.ListPositionsByElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("error listing positions: %w", err)
	}

	results := make([]models.PositionResult, 0, len(positions))
	for _, pos := range positions {
		candidates, err := s.repo.ListCandidatesByVotes(ctx, electionID, pos.ID)
		if err != nil {
			return nil, fmt.Errorf("error listing candidates: %w", err)
		}

		tallies := make([]models.CandidateTally, 0, len(candidates))
		for _, c := range candidates {
			tallies = append(tallies, models.CandidateTally{
				Name:  c.Name,
				Votes: c.VoteCount,
			})
		}

		results = append(results, models.PositionResult{
			Position:   pos.Name,
			Candidates: tallies,
		})
	}

	return results, nil
}
