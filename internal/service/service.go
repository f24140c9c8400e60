package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/univote/election-server/internal/logger"
	"github.com/univote/election-server/internal/models"
	"github.com/univote/election-server/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication and accounts
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	AdminLogin(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	PromoteUser(ctx context.Context, actorID int64, req models.PromoteUserRequest) error
	ListVoters(ctx context.Context) ([]models.EndUser, error)
	EnsureAdmin(ctx context.Context, name, email, password string) error

	// Election management
	CreateElection(ctx context.Context, actorID int64, req models.CreateElectionRequest) (*models.CreateElectionResponse, error)
	GetElectionDetail(ctx context.Context, electionID int64) (*models.ElectionDetailResponse, error)
	ListElections(ctx context.Context) ([]models.ElectionResponse, error)
	ListUpcomingElections(ctx context.Context) ([]models.ElectionResponse, error)
	ListActiveElections(ctx context.Context) ([]models.ElectionResponse, error)
	UpdateElection(ctx context.Context, actorID, electionID int64, req models.UpdateElectionRequest) (*models.ElectionResponse, error)
	DeleteElection(ctx context.Context, actorID, electionID int64) error
	AddPosition(ctx context.Context, actorID, electionID int64, req models.CreatePositionRequest) (*models.Position, error)
	AddCandidate(ctx context.Context, actorID, electionID int64, req models.CreateCandidateRequest) (*models.Candidate, error)
	GetCandidate(ctx context.Context, candidateID int64) (*models.Candidate, error)
	ListCandidates(ctx context.Context, electionID, positionID int64) ([]models.Candidate, error)
	ListActivePositions(ctx context.Context) ([]models.Position, error)

	// Voting
	CreateVotingSession(ctx context.Context, actorID int64, req models.CreateSessionRequest) (*models.CreateSessionResponse, error)
	CastVote(ctx context.Context, voterID int64, req models.CastVoteRequest) (*models.Vote, error)
	Results(ctx context.Context, electionID, positionID int64) ([]models.CandidateResult, error)
	ElectionResults(ctx context.Context, electionID int64) ([]models.PositionResult, error)

	// Audit
	AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Authentication methods
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user; the unique email constraint decides duplicates
	user := &models.EndUser{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleVoter,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.audit(ctx, user.StudentID, "register", "end_user", user.StudentID, user.Email)

	return &models.AuthResponse{
		Message:   "User registered successfully",
		StudentID: user.StudentID,
		Role:      user.Role,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return s.login(ctx, req, "")
}

// AdminLogin authenticates like Login but only for administrator accounts
func (s *DefaultService) AdminLogin(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return s.login(ctx, req, models.RoleAdmin)
}

func (s *DefaultService) login(ctx context.Context, req models.LoginRequest, requiredRole string) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if requiredRole != "" && user.Role != requiredRole {
		return nil, ErrForbidden
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		StudentID: user.StudentID,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// PromoteUser changes a user's role
func (s *DefaultService) PromoteUser(ctx context.Context, actorID int64, req models.PromoteUserRequest) error {
	if req.Role != models.RoleVoter && req.Role != models.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
	}

	if err := s.repo.UpdateUserRole(ctx, req.StudentID, req.Role); err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: user %d", ErrNotFound, req.StudentID)
		}
		return fmt.Errorf("error updating role: %w", err)
	}

	s.audit(ctx, actorID, "promote_user", "end_user", req.StudentID, req.Role)
	return nil
}

func (s *DefaultService) ListVoters(ctx context.Context) ([]models.EndUser, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// EnsureAdmin seeds the bootstrap administrator account. It is idempotent:
// an existing account with the email is promoted to admin, nothing else.
func (s *DefaultService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("error checking admin account: %w", err)
	}

	if existing != nil {
		if existing.Role == models.RoleAdmin {
			return nil
		}
		return s.repo.UpdateUserRole(ctx, existing.StudentID, models.RoleAdmin)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing admin password: %w", err)
	}

	admin := &models.EndUser{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleAdmin,
	}

	if err := s.repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("error creating admin account: %w", err)
	}

	logger.Info("bootstrap admin account created", zap.String("email", email))
	return nil
}

// audit records a state-changing action; failures are logged, not surfaced,
// since the primary operation has already committed.
func (s *DefaultService) audit(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) {
	entry := &models.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	}

	if err := s.repo.AddAuditEntry(ctx, entry); err != nil {
		logger.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *DefaultService) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := s.repo.ListAuditEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing audit entries: %w", err)
	}
	return entries, nil
}

// Helper methods
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *DefaultService) generateJWT(user *models.EndUser) (string, error) {
	expirationTime := s.now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.StudentID, 10), // subject
		"role": user.Role,
		"exp":  expirationTime.Unix(),
		"iat":  s.now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
