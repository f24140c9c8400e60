package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/univote/election-server/internal/models"
)

// Storage-level constraint violations surfaced to the service layer
var (
	// ErrDuplicateEmail is returned when a registration collides with the
	// unique email constraint.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateVote is returned when an insert collides with the unique
	// (student_id, election_id, position_id) constraint.
	ErrDuplicateVote = errors.New("duplicate vote")
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.EndUser) error
	GetUserByEmail(ctx context.Context, email string) (*models.EndUser, error)
	GetUserByID(ctx context.Context, id int64) (*models.EndUser, error)
	ListUsers(ctx context.Context) ([]models.EndUser, error)
	UpdateUserRole(ctx context.Context, id int64, role string) error

	// Election operations
	CreateElection(ctx context.Context, election *models.Election, session *models.VotingSession) error
	GetElection(ctx context.Context, electionID int64) (*models.Election, error)
	ListElections(ctx context.Context) ([]models.Election, error)
	ListUpcomingElections(ctx context.Context, now time.Time) ([]models.Election, error)
	ListActiveElections(ctx context.Context, now time.Time) ([]models.Election, error)
	UpdateElection(ctx context.Context, election *models.Election) error
	DeleteElection(ctx context.Context, electionID int64) error

	// Position and candidate operations
	CreatePosition(ctx context.Context, position *models.Position) error
	ListPositionsByElection(ctx context.Context, electionID int64) ([]models.Position, error)
	CreateCandidate(ctx context.Context, candidate *models.Candidate) error
	GetCandidate(ctx context.Context, candidateID int64) (*models.Candidate, error)
	GetBallotCandidate(ctx context.Context, candidateID, electionID, positionID int64) (*models.Candidate, error)
	ListCandidates(ctx context.Context, electionID, positionID int64) ([]models.Candidate, error)
	ListCandidatesByVotes(ctx context.Context, electionID, positionID int64) ([]models.Candidate, error)

	// Voting session operations
	CreateVotingSession(ctx context.Context, session *models.VotingSession) error
	GetLatestSession(ctx context.Context, electionID int64) (*models.VotingSession, error)
	OpenScheduledSession(ctx context.Context, sessionID int64) (bool, error)
	CountOpenSessions(ctx context.Context, electionID int64) (int, error)

	// Vote operations
	CastVote(ctx context.Context, vote *models.Vote) error
	CountVotesForCandidate(ctx context.Context, candidateID int64) (int64, error)

	// Audit operations
	AddAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.EndUser) error {
	query := `
		INSERT INTO end_users (name, email, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING student_id
	`

	if user.Role == "" {
		user.Role = models.RoleVoter
	}
	user.IsActive = true
	user.CreatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Role, user.IsActive, user.CreatedAt,
	).Scan(&user.StudentID)

	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.EndUser, error) {
	query := `SELECT * FROM end_users WHERE email = $1`

	var user models.EndUser
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.EndUser, error) {
	query := `SELECT * FROM end_users WHERE student_id = $1`

	var user models.EndUser
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]models.EndUser, error) {
	query := `SELECT * FROM end_users ORDER BY student_id ASC`

	var users []models.EndUser
	err := r.db.SelectContext(ctx, &users, query)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *PostgresRepository) UpdateUserRole(ctx context.Context, id int64, role string) error {
	query := `UPDATE end_users SET role = $1 WHERE student_id = $2`

	result, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Election repository methods

// CreateElection inserts the election together with its initial voting
// session in one transaction.
func (r *PostgresRepository) CreateElection(
	ctx context.Context,
	election *models.Election,
	session *models.VotingSession,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	election.CreatedAt = time.Now().UTC()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO elections (title, description, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, election.Title, election.Description, election.StartTime, election.EndTime, election.CreatedAt,
	).Scan(&election.ID)
	if err != nil {
		return err
	}

	session.ElectionID = election.ID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO voting_sessions (election_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING session_id
	`, session.ElectionID, session.StartTime, session.EndTime, session.Status,
	).Scan(&session.SessionID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetElection(ctx context.Context, electionID int64) (*models.Election, error) {
	query := `SELECT * FROM elections WHERE id = $1`

	var election models.Election
	err := r.db.GetContext(ctx, &election, query, electionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Election not found
		}
		return nil, err
	}

	return &election, nil
}

func (r *PostgresRepository) ListElections(ctx context.Context) ([]models.Election, error) {
	query := `SELECT * FROM elections ORDER BY start_time DESC`

	var elections []models.Election
	err := r.db.SelectContext(ctx, &elections, query)
	if err != nil {
		return nil, err
	}

	return elections, nil
}

func (r *PostgresRepository) ListUpcomingElections(ctx context.Context, now time.Time) ([]models.Election, error) {
	query := `SELECT * FROM elections WHERE start_time > $1 ORDER BY start_time ASC`

	var elections []models.Election
	err := r.db.SelectContext(ctx, &elections, query, now)
	if err != nil {
		return nil, err
	}

	return elections, nil
}

func (r *PostgresRepository) ListActiveElections(ctx context.Context, now time.Time) ([]models.Election, error) {
	query := `SELECT * FROM elections WHERE start_time <= $1 AND end_time >= $1 ORDER BY start_time ASC`

	var elections []models.Election
	err := r.db.SelectContext(ctx, &elections, query, now)
	if err != nil {
		return nil, err
	}

	return elections, nil
}

func (r *PostgresRepository) UpdateElection(ctx context.Context, election *models.Election) error {
	query := `
		UPDATE elections
		SET title = $1, description = $2, start_time = $3, end_time = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		election.Title, election.Description, election.StartTime, election.EndTime, election.ID)

	return err
}

func (r *PostgresRepository) DeleteElection(ctx context.Context, electionID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Delete dependents first (votes reference candidates and positions)
	_, err = tx.ExecContext(ctx, `DELETE FROM votes WHERE election_id = $1`, electionID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM candidates WHERE election_id = $1`, electionID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM positions WHERE election_id = $1`, electionID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM voting_sessions WHERE election_id = $1`, electionID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM elections WHERE id = $1`, electionID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Position and candidate repository methods
func (r *PostgresRepository) CreatePosition(ctx context.Context, position *models.Position) error {
	query := `
		INSERT INTO positions (election_id, name)
		VALUES ($1, $2)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query, position.ElectionID, position.Name).Scan(&position.ID)
}

func (r *PostgresRepository) ListPositionsByElection(ctx context.Context, electionID int64) ([]models.Position, error) {
	query := `SELECT * FROM positions WHERE election_id = $1 ORDER BY id ASC`

	var positions []models.Position
	err := r.db.SelectContext(ctx, &positions, query, electionID)
	if err != nil {
		return nil, err
	}

	return positions, nil
}

func (r *PostgresRepository) CreateCandidate(ctx context.Context, candidate *models.Candidate) error {
	query := `
		INSERT INTO candidates (election_id, position_id, name, manifesto, vote_count)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		candidate.ElectionID, candidate.PositionID, candidate.Name, candidate.Manifesto,
	).Scan(&candidate.ID)
}

func (r *PostgresRepository) GetCandidate(ctx context.Context, candidateID int64) (*models.Candidate, error) {
	query := `SELECT * FROM candidates WHERE id = $1`

	var candidate models.Candidate
	err := r.db.GetContext(ctx, &candidate, query, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Candidate not found
		}
		return nil, err
	}

	return &candidate, nil
}

// GetBallotCandidate resolves a candidate only if it belongs to the given
// election and position, enforcing referential consistency of a ballot.
func (r *PostgresRepository) GetBallotCandidate(
	ctx context.Context,
	candidateID int64,
	electionID int64,
	positionID int64,
) (*models.Candidate, error) {
	query := `SELECT * FROM candidates WHERE id = $1 AND election_id = $2 AND position_id = $3`

	var candidate models.Candidate
	err := r.db.GetContext(ctx, &candidate, query, candidateID, electionID, positionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No such candidate on this ballot
		}
		return nil, err
	}

	return &candidate, nil
}

func (r *PostgresRepository) ListCandidates(ctx context.Context, electionID, positionID int64) ([]models.Candidate, error) {
	return r.listCandidates(ctx, electionID, positionID, `ORDER BY id ASC`)
}

func (r *PostgresRepository) ListCandidatesByVotes(ctx context.Context, electionID, positionID int64) ([]models.Candidate, error) {
	return r.listCandidates(ctx, electionID, positionID, `ORDER BY vote_count DESC, id ASC`)
}

func (r *PostgresRepository) listCandidates(
	ctx context.Context,
	electionID int64,
	positionID int64,
	orderBy string,
) ([]models.Candidate, error) {
	query := `SELECT * FROM candidates WHERE 1=1`
	args := []interface{}{}

	if electionID > 0 {
		args = append(args, electionID)
		query += ` AND election_id = $1`
	}
	if positionID > 0 {
		args = append(args, positionID)
		if len(args) == 1 {
			query += ` AND position_id = $1`
		} else {
			query += ` AND position_id = $2`
		}
	}

	query += ` ` + orderBy

	var candidates []models.Candidate
	err := r.db.SelectContext(ctx, &candidates, query, args...)
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// Voting session repository methods

// CreateVotingSession closes any open session for the same election and
// inserts the new one in a single transaction, keeping at most one session
// open per election.
func (r *PostgresRepository) CreateVotingSession(ctx context.Context, session *models.VotingSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE voting_sessions SET status = $1 WHERE election_id = $2 AND status = $3`,
		models.SessionClosed, session.ElectionID, models.SessionOpen)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO voting_sessions (election_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING session_id
	`, session.ElectionID, session.StartTime, session.EndTime, session.Status,
	).Scan(&session.SessionID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetLatestSession returns the most recently created session for an election
func (r *PostgresRepository) GetLatestSession(ctx context.Context, electionID int64) (*models.VotingSession, error) {
	query := `
		SELECT * FROM voting_sessions
		WHERE election_id = $1
		ORDER BY session_id DESC
		LIMIT 1
	`

	var session models.VotingSession
	err := r.db.GetContext(ctx, &session, query, electionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No session configured
		}
		return nil, err
	}

	return &session, nil
}

// OpenScheduledSession moves a session from scheduled to open. The status
// condition makes the lazy transition idempotent under concurrent attempts;
// it reports whether this call performed the transition.
func (r *PostgresRepository) OpenScheduledSession(ctx context.Context, sessionID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE voting_sessions SET status = $1 WHERE session_id = $2 AND status = $3`,
		models.SessionOpen, sessionID, models.SessionScheduled)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *PostgresRepository) CountOpenSessions(ctx context.Context, electionID int64) (int, error) {
	query := `SELECT COUNT(*) FROM voting_sessions WHERE election_id = $1 AND status = $2`

	var count int
	err := r.db.GetContext(ctx, &count, query, electionID, models.SessionOpen)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Vote repository methods

// CastVote inserts the vote row and increments the candidate tally as one
// transaction. The unique constraint on (student_id, election_id,
// position_id) decides duplicates; losers see ErrDuplicateVote and no tally
// change. The tally is only ever incremented after the insert has landed, so
// it always equals the number of vote rows for the candidate.
func (r *PostgresRepository) CastVote(ctx context.Context, vote *models.Vote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if vote.VoteTime.IsZero() {
		vote.VoteTime = time.Now().UTC()
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO votes (student_id, election_id, position_id, candidate_id, vote_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, vote.StudentID, vote.ElectionID, vote.PositionID, vote.CandidateID, vote.VoteTime,
	).Scan(&vote.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateVote
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE candidates SET vote_count = vote_count + 1 WHERE id = $1`,
		vote.CandidateID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) CountVotesForCandidate(ctx context.Context, candidateID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM votes WHERE candidate_id = $1`

	var count int64
	err := r.db.GetContext(ctx, &count, query, candidateID)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Audit repository methods
func (r *PostgresRepository) AddAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, actor_id, action, entity, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Detail, entry.CreatedAt)

	return err
}

func (r *PostgresRepository) ListAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	query := `SELECT * FROM audit_log ORDER BY created_at DESC LIMIT $1`

	var entries []models.AuditEntry
	err := r.db.SelectContext(ctx, &entries, query, limit)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
