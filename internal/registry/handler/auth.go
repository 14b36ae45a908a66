package handler

import (
	"net/http"
	"strings"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/identity"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler exchanges the operator secret for a short-lived bearer token
// and provides the middleware that guards the write surface.
type AuthHandler struct {
	tokens     *identity.TokenIssuer
	secretHash string // bcrypt hash of the operator secret
	logger     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. secretHash is the bcrypt hash of
// the operator secret from configuration; the plaintext secret is never held.
func NewAuthHandler(tokens *identity.TokenIssuer, secretHash string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, secretHash: secretHash, logger: logger}
}

// Register mounts the auth routes.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.IssueToken)
}

type tokenRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "error": "secret is required"})
		return
	}

	if h.secretHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"kind": "auth", "error": "operator secret not configured"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.secretHash), []byte(req.Secret)); err != nil {
		h.logger.Warn("operator token exchange rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"kind": "auth", "error": "invalid operator secret"})
		return
	}

	token, err := h.tokens.Issue("operator")
	if err != nil {
		h.logger.Error("issue operator token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internal", "error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Middleware returns a gin middleware requiring a valid operator token.
func (h *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "auth", "error": "missing bearer token"})
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "auth", "error": "invalid token"})
			return
		}
		c.Set("operator", claims.Subject)
		c.Next()
	}
}
