package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/storage"
)

// AuthService handles participant registration and authentication
type AuthService struct {
	db *storage.DB
}

// NewAuthService creates a new auth service
func NewAuthService(db *storage.DB) *AuthService {
	return &AuthService{db: db}
}

// RegisterRequest represents a participant registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=farmer transporter buyer admin"`
	FarmName string `json:"farm_name"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	ParticipantID string `json:"participant_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Token         string `json:"token"`
}

// Register creates a new participant
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.Participant, error) {
	if req.Role == models.RoleFarmer && req.FarmName == "" {
		return nil, fmt.Errorf("farm name is required for farmers")
	}

	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM participants WHERE email = $1)",
		req.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check participant existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("participant already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	participant := &models.Participant{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		FarmName:     req.FarmName,
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO participants (id, email, password_hash, role, farm_name)
		 VALUES ($1, $2, $3, $4, $5)`,
		participant.ID, participant.Email, participant.PasswordHash,
		participant.Role, participant.FarmName)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	return participant, nil
}

// Login authenticates a participant
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*models.Participant, error) {
	var participant models.Participant
	err := s.db.Pool.QueryRow(ctx,
		"SELECT id, email, password_hash, role, farm_name FROM participants WHERE email = $1",
		req.Email).Scan(&participant.ID, &participant.Email, &participant.PasswordHash,
		&participant.Role, &participant.FarmName)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(participant.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	return &participant, nil
}

// GetParticipant retrieves a participant by ID
func (s *AuthService) GetParticipant(ctx context.Context, participantID uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, email, role, farm_name, created_at, updated_at
		 FROM participants WHERE id = $1`,
		participantID).Scan(&participant.ID, &participant.Email, &participant.Role,
		&participant.FarmName, &participant.CreatedAt, &participant.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("participant not found")
	}
	return &participant, nil
}
