package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/univote/election-server/internal/api/testutils"
	"github.com/univote/election-server/internal/models"
)

func TestRegister(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful registration
	registerReq := models.RegisterRequest{
		Name:     "New Voter",
		Email:    "newvoter@example.com",
		Password: "Password123",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	var registerResp models.AuthResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &registerResp))
	assert.Equal(t, models.RoleVoter, registerResp.Role)
	assert.NotZero(t, registerResp.StudentID)

	// Test case 2: Duplicate email is a conflict
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusConflict, w.Code)

	// The first account remains usable for login
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/login",
		models.LoginRequest{Email: registerReq.Email, Password: registerReq.Password},
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	// Test case 3: Invalid request (missing required fields)
	invalidReq := models.RegisterRequest{
		Email: "invalid@example.com",
		// Missing password and name
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/register",
		invalidReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful login returns a token and the role
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/login",
		models.LoginRequest{Email: testCtx.VoterEmail, Password: "testpassword"},
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var loginResp models.AuthResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	assert.NotEmpty(t, loginResp.Token)
	assert.Equal(t, models.RoleVoter, loginResp.Role)

	// Test case 2: Invalid credentials
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/login",
		models.LoginRequest{Email: testCtx.VoterEmail, Password: "wrongpassword"},
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 3: User not found
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/login",
		models.LoginRequest{Email: "nonexistent@example.com", Password: "testpassword"},
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Admins can use the dedicated admin login
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/admin/login",
		models.LoginRequest{Email: "admin@example.com", Password: "testpassword"},
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var loginResp models.AuthResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	assert.Equal(t, models.RoleAdmin, loginResp.Role)

	// Voters are rejected even with valid credentials
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/admin/login",
		models.LoginRequest{Email: testCtx.VoterEmail, Password: "testpassword"},
		nil,
	)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPromoteUser(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Admin promotes the voter
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/promote_user",
		models.PromoteUserRequest{StudentID: testCtx.VoterID, Role: models.RoleAdmin},
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	// The role change is visible in the voter listing
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/admin/voters",
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var voters models.VoterListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &voters))

	promoted := false
	for _, v := range voters.Voters {
		if v.StudentID == testCtx.VoterID {
			promoted = v.Role == models.RoleAdmin
		}
	}
	assert.True(t, promoted, "voter should have been promoted to admin")

	// Unknown user is a 404
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/promote_user",
		models.PromoteUserRequest{StudentID: 999999, Role: models.RoleAdmin},
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRejectVoters(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// A voter calling an admin-only route gets 403
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/admin/elections",
		models.CreateElectionRequest{
			Title:       "Sneaky Election",
			Description: "Should never exist",
			StartTime:   "2030-01-01 10:00:00",
			EndTime:     "2030-01-01 12:00:00",
		},
		testutils.AuthHeaders(testCtx.VoterJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	// No state change occurred
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/admin/elections",
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var elections models.ElectionListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &elections))
	assert.Empty(t, elections.Elections)

	// Missing token is 401
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/admin/voters",
		nil,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
