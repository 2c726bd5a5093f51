package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/middleware"
	"github.com/greenledger/verifier/internal/services"
)

// AuthHandler handles participant authentication requests
type AuthHandler struct {
	authService *services.AuthService
	jwtConfig   middleware.JWTConfig
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtConfig: middleware.JWTConfig{
			Secret:     jwtSecret,
			Expiration: 24 * time.Hour,
		},
	}
}

// Register handles participant registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := middleware.GenerateToken(participant.ID.String(), participant.Email, participant.Role, h.jwtConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, services.AuthResponse{
		ParticipantID: participant.ID.String(),
		Email:         participant.Email,
		Role:          participant.Role,
		Token:         token,
	})
}

// Login handles participant login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, err := middleware.GenerateToken(participant.ID.String(), participant.Email, participant.Role, h.jwtConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, services.AuthResponse{
		ParticipantID: participant.ID.String(),
		Email:         participant.Email,
		Role:          participant.Role,
		Token:         token,
	})
}

// Profile handles getting participant profile
func (h *AuthHandler) Profile(c *gin.Context) {
	participantIDStr := middleware.GetParticipantID(c)
	participantID, err := uuid.Parse(participantIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	participant, err := h.authService.GetParticipant(c.Request.Context(), participantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, participant)
}
