package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/univote/election-server/internal/logger"
	"github.com/univote/election-server/internal/models"
	"github.com/univote/election-server/internal/service"
	"go.uber.org/zap"
)

// Handler holds the HTTP handlers for the election API
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{
		svc: svc,
	}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	// Public routes
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/admin/login", h.AdminLogin)

	// Routes for any authenticated account
	authed := router.Group("/")
	authed.Use(AuthMiddleware())
	{
		authed.GET("/candidates", h.ListCandidates)
		authed.POST("/vote", h.CastVote)
		authed.GET("/results", h.Results)
		authed.GET("/positions", h.ListActivePositions)
		authed.GET("/admin/candidates/:id", h.GetCandidate)
		authed.GET("/admin/elections/upcoming", h.ListUpcomingElections)
		authed.GET("/admin/elections/active", h.ListActiveElections)
	}

	// Admin-only routes
	admin := router.Group("/")
	admin.Use(AuthMiddleware(), RequireRole(models.RoleAdmin))
	{
		admin.POST("/promote_user", h.PromoteUser)
		admin.GET("/admin/elections", h.ListElections)
		admin.POST("/admin/elections", h.CreateElection)
		admin.GET("/admin/elections/:id", h.GetElection)
		admin.PUT("/admin/elections/:id", h.UpdateElection)
		admin.DELETE("/admin/elections/:id", h.DeleteElection)
		admin.POST("/admin/elections/:id/positions", h.AddPosition)
		admin.POST("/admin/elections/:id/candidates", h.AddCandidate)
		admin.GET("/admin/elections/:id/results", h.ElectionResults)
		admin.POST("/admin/sessions", h.CreateSession)
		admin.GET("/admin/voters", h.ListVoters)
		admin.GET("/admin/audit", h.AuditLog)
	}
}

// respondError maps service errors to HTTP statuses. Unclassified errors
// become a generic 500; internals are logged, never returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	var status int

	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrVotingNotOpen),
		errors.Is(err, service.ErrVotingNotConfigured):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyVoted):
		status = http.StatusConflict
	default:
		requestID, _ := c.Get("requestId")
		logger.Error("internal error",
			zap.Any("request_id", requestID),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.MessageResponse{
			Message: "Internal server error",
		})
		return
	}

	c.JSON(status, models.MessageResponse{Message: err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.MessageResponse{Message: message})
}

// idParam parses the numeric :id path parameter
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

// queryID parses an optional numeric query parameter; absent means 0
func queryID(c *gin.Context, name string) (int64, bool) {
	value := c.Query(name)
	if value == "" {
		return 0, true
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// Authentication handlers

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing data")
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing data")
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing data")
		return
	}

	resp, err := h.svc.AdminLogin(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PromoteUser(c *gin.Context) {
	var req models.PromoteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing data")
		return
	}

	if err := h.svc.PromoteUser(c.Request.Context(), callerID(c), req); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "User role updated"})
}

func (h *Handler) ListVoters(c *gin.Context) {
	voters, err := h.svc.ListVoters(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.VoterListResponse{Voters: voters})
}

// Election handlers

func (h *Handler) CreateElection(c *gin.Context) {
	var req models.CreateElectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required election data")
		return
	}

	resp, err := h.svc.CreateElection(c.Request.Context(), callerID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListElections(c *gin.Context) {
	elections, err := h.svc.ListElections(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ElectionListResponse{Elections: elections})
}

func (h *Handler) ListUpcomingElections(c *gin.Context) {
	elections, err := h.svc.ListUpcomingElections(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ElectionListResponse{Elections: elections})
}

func (h *Handler) ListActiveElections(c *gin.Context) {
	elections, err := h.svc.ListActiveElections(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ElectionListResponse{Elections: elections})
}

func (h *Handler) GetElection(c *gin.Context) {
	electionID, ok := idParam(c)
	if !ok {
		return
	}

	detail, err := h.svc.GetElectionDetail(c.Request.Context(), electionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateElection(c *gin.Context) {
	electionID, ok := idParam(c)
	if !ok {
		return
	}

	var req models.UpdateElectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing data")
		return
	}

	election, err := h.svc.UpdateElection(c.Request.Context(), callerID(c), electionID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Election updated", "election": election})
}

func (h *Handler) DeleteElection(c *gin.Context) {
	electionID, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteElection(c.Request.Context(), callerID(c), electionID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Election deleted"})
}

func (h *Handler) AddPosition(c *gin.Context) {
	electionID, ok := idParam(c)
	if !ok {
		return
	}

	var req models.CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing position name")
		return
	}

	position, err := h.svc.AddPosition(c.Request.Context(), callerID(c), electionID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Position added", "position": position})
}

func (h *Handler) AddCandidate(c *gin.Context) {
	electionID, ok := idParam(c)
	if !ok {
		return
	}

	var req models.CreateCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing candidate data")
		return
	}

	candidate, err := h.svc.AddCandidate(c.Request.Context(), callerID(c), electionID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Candidate added", "candidate": candidate})
}

func (h *Handler) GetCandidate(c *gin.Context) {
	candidateID, ok := idParam(c)
	if !ok {
		return
	}

	candidate, err := h.svc.GetCandidate(c.Request.Context(), candidateID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, candidate)
}

func (h *Handler) ListCandidates(c *gin.Context) {
	electionID, ok := queryID(c, "election_id")
	if !ok {
		return
	}
	positionID, ok := queryID(c, "position_id")
	if !ok {
		return
	}

	candidates, err := h.svc.ListCandidates(c.Request.Context(), electionID, positionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, candidates)
}

func (h *Handler) ListActivePositions(c *gin.Context) {
	positions, err := h.svc.ListActivePositions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, positions)
}

// Voting handlers

func (h *Handler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required session data")
		return
	}

	resp, err := h.svc.CreateVotingSession(c.Request.Context(), callerID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) CastVote(c *gin.Context) {
	var req models.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing data")
		return
	}

	if _, err := h.svc.CastVote(c.Request.Context(), callerID(c), req); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.MessageResponse{Message: "Vote cast successfully"})
}

func (h *Handler) Results(c *gin.Context) {
	electionID, ok := queryID(c, "election_id")
	if !ok {
		return
	}
	positionID, ok := queryID(c, "position_id")
	if !ok {
		return
	}

	results, err := h.svc.Results(c.Request.Context(), electionID, positionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handler) ElectionResults(c *gin.Context) {
	electionID, ok := idParam(c)
	if !ok {
		return
	}

	results, err := h.svc.ElectionResults(c.Request.Context(), electionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ElectionResultsResponse{Results: results})
}

// Audit handlers

func (h *Handler) AuditLog(c *gin.Context) {
	limit := 0
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			badRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.svc.AuditLog(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuditLogResponse{Entries: entries})
}
