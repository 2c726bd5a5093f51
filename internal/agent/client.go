package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/greenledger/verifier/internal/config"
	"github.com/greenledger/verifier/internal/models"
)

// Client handles communication with the verifier API
type Client struct {
	config     *config.RegistryConfig
	deviceID   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new verifier API client
func NewClient(cfg *config.AgentConfig) *Client {
	return &Client{
		config:   &cfg.Server,
		deviceID: cfg.Agent.DeviceID,
		apiKey:   cfg.Agent.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RegisterDeviceRequest represents device registration request
type RegisterDeviceRequest struct {
	Name string `json:"name"`
}

// RegisterDeviceResponse represents device registration response
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	APIKey   string `json:"api_key"`
}

// RegisterDevice registers this agent as a scanner device
func (c *Client) RegisterDevice(name string) (*RegisterDeviceResponse, error) {
	data, err := json.Marshal(RegisterDeviceRequest{Name: name})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(
		c.config.URL+"/api/v1/devices/register",
		"application/json",
		bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("registration failed with status: %d", resp.StatusCode)
	}

	var result RegisterDeviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Verify asks the API server to verify a token id using the device
// credentials saved at init time.
func (c *Client) Verify(ctx context.Context, tokenID string) (*models.VerificationResult, error) {
	data, err := json.Marshal(map[string]string{"token_id": tokenID})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.config.URL+"/api/v1/devices/verify", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Device-ID", c.deviceID)
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification failed with status: %d", resp.StatusCode)
	}

	var result models.VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Online probes the API health endpoint. It is the connectivity signal the
// offline-aware verifier consults once per verification.
func (c *Client) Online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(probeCtx, "GET", c.config.URL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
