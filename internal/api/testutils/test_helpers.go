package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/univote/election-server/internal/api"
	"github.com/univote/election-server/internal/config"
	"github.com/univote/election-server/internal/models"
	"github.com/univote/election-server/internal/repository"
	"github.com/univote/election-server/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	JWTSecret  []byte
	DB         *sqlx.DB

	AdminID    int64
	AdminJWT   string
	VoterID    int64
	VoterJWT   string
	VoterEmail string
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	} else {
		cfg.Database.DBName = "univote_test"
	}

	// Use a test JWT secret
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Set up database
	db, err := config.SetupDatabase(cfg)
	require.NoError(t, err, "Failed to set up test database")

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		DB:         db,
	}

	cleanupTestDatabase(t, repo)

	// Create one admin and one voter account with tokens
	testCtx.AdminID, testCtx.AdminJWT = createTestUser(t, repo, cfg.Auth.JWTSecret,
		"admin@example.com", "Test Admin", models.RoleAdmin)
	testCtx.VoterEmail = "voter@example.com"
	testCtx.VoterID, testCtx.VoterJWT = createTestUser(t, repo, cfg.Auth.JWTSecret,
		testCtx.VoterEmail, "Test Voter", models.RoleVoter)

	return testCtx
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.Repository)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes any existing test data
func cleanupTestDatabase(t *testing.T, repo repository.Repository) {
	pgRepo, ok := repo.(*repository.PostgresRepository)
	if !ok {
		return
	}
	db := pgRepo.GetDB()

	// Delete in dependency order
	tables := []string{"audit_log", "votes", "candidates", "positions", "voting_sessions", "elections", "end_users"}
	for _, table := range tables {
		_, err := db.Exec("DELETE FROM " + table)
		if t != nil && err != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// Helper functions
func createTestUser(t *testing.T, repo repository.Repository, jwtSecret, email, name, role string) (int64, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.EndUser{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	err := repo.CreateUser(context.Background(), user)
	require.NoError(t, err, "Failed to create test user")

	return user.StudentID, MintToken(t, jwtSecret, user.StudentID, role)
}

// MintToken generates a signed JWT for the given identity and role
func MintToken(t *testing.T, jwtSecret string, userID int64, role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err, "Failed to generate JWT token")

	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// Ballot fixtures

// Ballot bundles the ids of a ready-to-vote election
type Ballot struct {
	ElectionID  int64
	PositionID  int64
	CandidateID int64
	SessionID   int64
}

type positionEnvelope struct {
	Position models.Position `json:"position"`
}

type candidateEnvelope struct {
	Candidate models.Candidate `json:"candidate"`
}

// CreateBallot drives the admin API to create an election with the given
// window, one position and one candidate, returning the ids.
func CreateBallot(t *testing.T, testCtx *TestContext, start, end time.Time) Ballot {
	w := PerformRequest(testCtx.Router, http.MethodPost, "/admin/elections",
		models.CreateElectionRequest{
			Title:       "Student Council",
			Description: "Annual student council election",
			StartTime:   models.FormatTime(start),
			EndTime:     models.FormatTime(end),
		},
		AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, "create election: %s", w.Body.String())

	var electionResp models.CreateElectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &electionResp))

	w = PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/admin/elections/%d/positions", electionResp.Election.ID),
		models.CreatePositionRequest{Name: "President"},
		AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, "create position: %s", w.Body.String())

	var posResp positionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posResp))

	w = PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/admin/elections/%d/candidates", electionResp.Election.ID),
		models.CreateCandidateRequest{
			Name:       "Alice Wanjiku",
			PositionID: posResp.Position.ID,
			Manifesto:  "Better cafeteria hours",
		},
		AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, "create candidate: %s", w.Body.String())

	var candResp candidateEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &candResp))

	return Ballot{
		ElectionID:  electionResp.Election.ID,
		PositionID:  posResp.Position.ID,
		CandidateID: candResp.Candidate.ID,
		SessionID:   electionResp.Session.SessionID,
	}
}

// AddCandidate adds another candidate to an existing ballot position
func AddCandidate(t *testing.T, testCtx *TestContext, ballot Ballot, name string) int64 {
	w := PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/admin/elections/%d/candidates", ballot.ElectionID),
		models.CreateCandidateRequest{Name: name, PositionID: ballot.PositionID},
		AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusCreated, w.Code, "add candidate: %s", w.Body.String())

	var candResp candidateEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &candResp))
	return candResp.Candidate.ID
}

// RegisterVoter registers a fresh voter through the API and logs them in
func RegisterVoter(t *testing.T, testCtx *TestContext, email string) (int64, string) {
	w := PerformRequest(testCtx.Router, http.MethodPost, "/register",
		models.RegisterRequest{Name: "Extra Voter", Email: email, Password: "testpassword"},
		nil)
	require.Equal(t, http.StatusCreated, w.Code, "register: %s", w.Body.String())

	var registerResp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registerResp))

	w = PerformRequest(testCtx.Router, http.MethodPost, "/login",
		models.LoginRequest{Email: email, Password: "testpassword"},
		nil)
	require.Equal(t, http.StatusOK, w.Code, "login: %s", w.Body.String())

	var loginResp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	assert.NotEmpty(t, loginResp.Token)

	return registerResp.StudentID, loginResp.Token
}
