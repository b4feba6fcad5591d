// Package handler contains the HTTP controllers.
package handler

import (
	"net/http"

	"biobyia-go/internal/config"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/token"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler exchanges a configured API key for a JWT.
type AuthHandler struct {
	jwtManager *token.JWTManager
	apiCfg     config.APIConfig
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(jwtManager *token.JWTManager, apiCfg config.APIConfig) *AuthHandler {
	return &AuthHandler{jwtManager: jwtManager, apiCfg: apiCfg}
}

// TokenRequest is the request body for the token endpoint.
type TokenRequest struct {
	APIKey   string `json:"api_key" binding:"required"`
	ClientID string `json:"client_id"`
}

// Token verifies the API key against the configured bcrypt hash and issues
// a signed token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[AuthHandler] invalid token request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	if h.apiCfg.KeyHash == "" {
		log.Error("[AuthHandler] no api key hash configured, refusing all clients", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "api access is not configured"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.apiCfg.KeyHash), []byte(req.APIKey)); err != nil {
		log.Warnf("[AuthHandler] api key rejected for client '%s'", req.ClientID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = "default"
	}
	tokenString, err := h.jwtManager.GenerateToken(clientID, "client")
	if err != nil {
		log.Errorf("[AuthHandler] failed to generate token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	log.Infof("[AuthHandler] token issued for client '%s'", clientID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"token": tokenString},
	})
}
