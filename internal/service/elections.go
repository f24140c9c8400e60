package service

import (
	"context"
	"fmt"
	"time"

	"github.com/univote/election-server/internal/models"
)

// electionResponse renders an election with its status derived from the
// window at the current instant.
func (s *DefaultService) electionResponse(e *models.Election) models.ElectionResponse {
	return models.ElectionResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   models.FormatTime(e.StartTime),
		EndTime:     models.FormatTime(e.EndTime),
		Status:      models.DeriveElectionStatus(e, s.now()),
		CreatedAt:   models.FormatTime(e.CreatedAt),
	}
}

func (s *DefaultService) parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := models.ParseTime(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid date format, use YYYY-MM-DD HH:MM:SS", ErrValidation)
	}

	end, err := models.ParseTime(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid date format, use YYYY-MM-DD HH:MM:SS", ErrValidation)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}

	return start, end, nil
}

// CreateElection creates an election together with its initial voting
// session. The session covers the election window and starts open if the
// window has already begun.
func (s *DefaultService) CreateElection(
	ctx context.Context,
	actorID int64,
	req models.CreateElectionRequest,
) (*models.CreateElectionResponse, error) {
	start, end, err := s.parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	election := &models.Election{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
	}

	session := &models.VotingSession{
		StartTime: start,
		EndTime:   end,
		Status:    models.InitialSessionStatus(start, end, s.now()),
	}

	if err := s.repo.CreateElection(ctx, election, session); err != nil {
		return nil, fmt.Errorf("error creating election: %w", err)
	}

	s.audit(ctx, actorID, "create_election", "election", election.ID, election.Title)

	return &models.CreateElectionResponse{
		Message:  "Election and session created",
		Election: s.electionResponse(election),
		Session:  s.sessionResponse(session),
	}, nil
}

func (s *DefaultService) GetElectionDetail(ctx context.Context, electionID int64) (*models.ElectionDetailResponse, error) {
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

	candidates, err := s.repo.ListCandidates(ctx, electionID, 0)
	if err != nil {
		return nil, fmt.Errorf("error listing candidates: %w", err)
	}

	return &models.ElectionDetailResponse{
		Election:   s.electionResponse(election),
		Positions:  positions,
		Candidates: candidates,
	}, nil
}

func (s *DefaultService) ListElections(ctx context.Context) ([]models.ElectionResponse, error) {
	elections, err := s.repo.ListElections(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing elections: %w", err)
	}
	return s.electionResponses(elections), nil
}

func (s *DefaultService) ListUpcomingElections(ctx context.Context) ([]models.ElectionResponse, error) {
	elections, err := s.repo.ListUpcomingElections(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("error listing upcoming elections: %w", err)
	}
	return s.electionResponses(elections), nil
}

func (s *DefaultService) ListActiveElections(ctx context.Context) ([]models.ElectionResponse, error) {
	elections, err := s.repo.ListActiveElections(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("error listing active elections: %w", err)
	}
	return s.electionResponses(elections), nil
}

func (s *DefaultService) electionResponses(elections []models.Election) []models.ElectionResponse {
	responses := make([]models.ElectionResponse, 0, len(elections))
	for i := range elections {
		responses = append(responses, s.electionResponse(&elections[i]))
	}
	return responses
}

// UpdateElection applies a partial update; absent fields are untouched
func (s *DefaultService) UpdateElection(
	ctx context.Context,
	actorID int64,
	electionID int64,
	req models.UpdateElectionRequest,
) (*models.ElectionResponse, error) {
	election, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("error getting election: %w", err)
	}
	if election == nil {
		return nil, fmt.Errorf("%w: election %d", ErrNotFound, electionID)
	}

	if req.Title != nil {
		election.Title = *req.Title
	}
	if req.Description != nil {
		election.Description = *req.Description
	}
	if req.StartTime != nil {
		start, err := models.ParseTime(*req.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date format, use YYYY-MM-DD HH:MM:SS", ErrValidation)
		}
		election.StartTime = start
	}
	if req.EndTime != nil {
		end, err := models.ParseTime(*req.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date format, use YYYY-MM-DD HH:MM:SS", ErrValidation)
		}
		election.EndTime = end
	}

	if !election.EndTime.After(election.StartTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}

	if err := s.repo.UpdateElection(ctx, election); err != nil {
		return nil, fmt.Errorf("error updating election: %w", err)
	}

	s.audit(ctx, actorID, "update_election", "election", election.ID, election.Title)

	resp := s.electionResponse(election)
	return &resp, nil
}

func (s *DefaultService) DeleteElection(ctx context.Context, actorID, electionID int64) error {
	election, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return fmt.Errorf("error getting election: %w", err)
	}
	if election == nil {
		return fmt.Errorf("%w: election %d", ErrNotFound, electionID)
	}

	if err := s.repo.DeleteElection(ctx, electionID); err != nil {
		return fmt.Errorf("error deleting election: %w", err)
	}

	s.audit(ctx, actorID, "delete_election", "election", electionID, election.Title)
	return nil
}

func (s *DefaultService) AddPosition(
	ctx context.Context,
	actorID int64,
	electionID int64,
	req models.CreatePositionRequest,
) (*models.Position, error) {
	election, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("error getting election: %w", err)
	}
	if election == nil {
		return nil, fmt.Errorf("%w: election %d", ErrNotFound, electionID)
	}

	position := &models.Position{
		ElectionID: electionID,
		Name:       req.Name,
	}

	if err := s.repo.CreatePosition(ctx, position); err != nil {
		return nil, fmt.Errorf("error creating position: %w", err)
	}

	s.audit(ctx, actorID, "add_position", "position", position.ID, position.Name)
	return position, nil
}

// AddCandidate adds a candidate to a position that must belong to the
// election in the URL.
func (s *DefaultService) AddCandidate(
	ctx context.Context,
	actorID int64,
	electionID int64,
	req models.CreateCandidateRequest,
) (*models.Candidate, error) {
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

	found := false
	for _, p := range positions {
		if p.ID == req.PositionID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: position %d does not belong to election %d", ErrValidation, req.PositionID, electionID)
	}

	candidate := &models.Candidate{
		ElectionID: electionID,
		PositionID: req.PositionID,
		Name:       req.Name,
		Manifesto:  req.Manifesto,
	}

	if err := s.repo.CreateCandidate(ctx, candidate); err != nil {
		return nil, fmt.Errorf("error creating candidate: %w", err)
	}

	s.audit(ctx, actorID, "add_candidate", "candidate", candidate.ID, candidate.Name)
	return candidate, nil
}

func (s *DefaultService) GetCandidate(ctx context.Context, candidateID int64) (*models.Candidate, error) {
	candidate, err := s.repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("error getting candidate: %w", err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: candidate %d", ErrNotFound, candidateID)
	}
	return candidate, nil
}

func (s *DefaultService) ListCandidates(ctx context.Context, electionID, positionID int64) ([]models.Candidate, error) {
	candidates, err := s.repo.ListCandidates(ctx, electionID, positionID)
	if err != nil {
		return nil, fmt.Errorf("error listing candidates: %w", err)
	}
	return candidates, nil
}

// ListActivePositions returns the positions of the currently active
// election, or an empty list when no election is active.
func (s *DefaultService) ListActivePositions(ctx context.Context) ([]models.Position, error) {
	active, err := s.repo.ListActiveElections(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("error listing active elections: %w", err)
	}

	if len(active) == 0 {
		return []models.Position{}, nil
	}

	positions, err := s.repo.ListPositionsByElection(ctx, active[0].ID)
	if err != nil {
		return nil, fmt.Errorf("error listing positions: %w", err)
	}

	return positions, nil
}
