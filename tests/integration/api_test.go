package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/verifier/internal/handlers"
	"github.com/greenledger/verifier/internal/middleware"
	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/qrcode"
	"github.com/greenledger/verifier/internal/services"
)

const testJWTSecret = "test-secret"

// memRegistry is an in-memory metadata/provenance source standing in for the
// Postgres registry.
type memRegistry struct {
	batches map[string]*models.TokenMetadata
}

func (r *memRegistry) FetchMetadata(ctx context.Context, tokenID string) (*models.TokenMetadata, error) {
	m, ok := r.batches[tokenID]
	if !ok {
		return nil, fmt.Errorf("batch not found")
	}
	return m, nil
}

func (r *memRegistry) FetchProvenance(ctx context.Context, tokenID string) ([]models.ProvenanceStep, error) {
	if _, ok := r.batches[tokenID]; !ok {
		return nil, fmt.Errorf("batch not found")
	}
	return []models.ProvenanceStep{{TokenID: tokenID, Stage: models.StageProduced, Timestamp: time.Now()}}, nil
}

type memFraud struct{}

func (memFraud) RecordScan(ctx context.Context, tokenID string) ([]models.Alert, error) {
	return nil, nil
}

// setupTestServer wires the public verification surface the way cmd/api
// does, with an in-memory registry behind the orchestrator.
func setupTestServer() *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	registry := &memRegistry{batches: map[string]*models.TokenMetadata{
		"456": {CropType: "cocoa", QuantityKg: 120, OriginFarm: "Kumasi Cooperative"},
	}}
	verifyService := services.NewVerifyService(registry, registry, memFraud{}, 10*time.Second)
	verifyHandler := handlers.NewVerifyHandler(verifyService, nil, true)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/qr/:tokenId", verifyHandler.GenerateQR)
		api.GET("/verify/:tokenId", verifyHandler.Verify)
		api.POST("/verify/scan", verifyHandler.Scan)

		protected := api.Group("/batches")
		protected.Use(middleware.JWTMiddleware(testJWTSecret))
		protected.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"participant_id": middleware.GetParticipantID(c),
				"role":           middleware.GetRole(c),
			})
		})
	}

	return httptest.NewServer(router)
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateQREndpoint(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/qr/123")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Payload qrcode.Payload `json:"payload"`
		Encoded string         `json:"encoded"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "greenledger", body.Payload.Protocol)
	assert.Equal(t, "1.0", body.Payload.Version)
	assert.Equal(t, "123", body.Payload.TokenID)
	assert.Equal(t, fmt.Sprintf("greenledger://1.0/123#%s", body.Payload.Checksum), body.Encoded)

	// The served payload must decode and validate round-trip.
	decoded := qrcode.DecodeQR(body.Encoded)
	require.NotNil(t, decoded)
	assert.True(t, qrcode.ValidatePayload(decoded))
}

func TestScanEndpoint_RejectsGarbage(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	payload, _ := json.Marshal(map[string]string{"data": "garbage"})
	resp, err := http.Post(server.URL+"/api/v1/verify/scan", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScanEndpoint_RejectsTamperedChecksum(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	// Well-formed URI, checksum of a different token id.
	tampered := "greenledger://1.0/124#" + qrcode.Checksum("123")
	payload, _ := json.Marshal(map[string]string{"data": tampered})

	resp, err := http.Post(server.URL+"/api/v1/verify/scan", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "checksum mismatch", body["error"])
}

func TestProtectedRoute_RequiresToken(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/batches")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoute_AcceptsValidToken(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	token, err := middleware.GenerateToken("participant-1", "ama@farm.example", models.RoleFarmer,
		middleware.JWTConfig{Secret: testJWTSecret, Expiration: time.Hour})
	require.NoError(t, err)

	req, err := http.NewRequest("GET", server.URL+"/api/v1/batches", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "participant-1", body["participant_id"])
	assert.Equal(t, models.RoleFarmer, body["role"])
}

func TestProtectedRoute_RejectsWrongSecret(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	token, err := middleware.GenerateToken("participant-1", "ama@farm.example", models.RoleFarmer,
		middleware.JWTConfig{Secret: "other-secret", Expiration: time.Hour})
	require.NoError(t, err)

	req, err := http.NewRequest("GET", server.URL+"/api/v1/batches", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyEndpoint_KnownBatch(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/verify/456")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.VerificationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.True(t, result.IsValid)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "cocoa", result.Metadata.CropType)
	assert.NotEmpty(t, result.Provenance)
	assert.GreaterOrEqual(t, result.VerificationTimeMs, int64(0))
}

func TestVerifyEndpoint_UnknownBatch(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/verify/999")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Orchestrator failures are result objects, not HTTP errors.
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.VerificationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Error)
}

func TestScanEndpoint_ValidCodeVerifies(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	encoded := qrcode.EncodePayload(qrcode.GeneratePayload("456"))
	payload, _ := json.Marshal(map[string]string{"data": encoded})

	resp, err := http.Post(server.URL+"/api/v1/verify/scan", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.VerificationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.IsValid)
	assert.Equal(t, "456", result.TokenID)
}
