package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/univote/election-server/internal/logger"
	"github.com/univote/election-server/internal/models"
	"go.uber.org/zap"
)

// Context keys set by the middleware chain
const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

// RequestLogger returns a Gin middleware that logs each request with a
// generated request id.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()
		c.Set("requestId", requestID)

		c.Next()

		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// AuthMiddleware returns a Gin middleware for authentication. It verifies
// the bearer token and exposes the caller's id and role in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		// Check if the Authorization header starts with "Bearer "
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid token format")
			return
		}

		tokenString := parts[1]

		// Parse the JWT token
		jwtSecret := c.MustGet("jwtSecret").([]byte)
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return jwtSecret, nil
		})

		if err != nil || !token.Valid {
			abortUnauthorized(c, "Invalid token")
			return
		}

		// Extract claims from the token
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		// Get the caller's identity from the token claims
		sub, ok := claims["sub"].(string)
		if !ok {
			abortUnauthorized(c, "Invalid user ID in token")
			return
		}

		userID, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			abortUnauthorized(c, "Invalid user ID in token")
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = models.RoleVoter
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// RequireRole returns a middleware enforcing that the authenticated
// identity's role equals the required role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerRole, _ := c.Get(ctxRole)
		if callerRole != role {
			c.JSON(http.StatusForbidden, models.MessageResponse{
				Message: "Insufficient permissions",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, models.MessageResponse{
		Message: message,
	})
	c.Abort()
}

// callerID returns the authenticated user's id from the context
func callerID(c *gin.Context) int64 {
	id, _ := c.Get(ctxUserID)
	userID, _ := id.(int64)
	return userID
}
