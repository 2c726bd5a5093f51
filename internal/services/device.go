package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/storage"
)

// DeviceService handles scanner device registration and authentication
type DeviceService struct {
	db *storage.DB
}

// NewDeviceService creates a new device service
func NewDeviceService(db *storage.DB) *DeviceService {
	return &DeviceService{db: db}
}

// RegisterDeviceRequest represents a device registration request
type RegisterDeviceRequest struct {
	Name string `json:"name" binding:"required"`
}

// RegisterDeviceResponse represents a device registration response
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	APIKey   string `json:"api_key"`
}

// RegisterDevice registers a new field scanner. The API key is returned once
// and only its hash is stored.
func (s *DeviceService) RegisterDevice(ctx context.Context, req RegisterDeviceRequest) (*models.ScannerDevice, string, error) {
	apiKey := fmt.Sprintf("gls_%s", uuid.New().String())
	apiKeyHash := hashDeviceKey(apiKey)

	device := &models.ScannerDevice{
		ID:         uuid.New(),
		Name:       req.Name,
		APIKeyHash: apiKeyHash,
		Status:     "active",
	}

	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO scanner_devices (id, name, api_key_hash, status)
		 VALUES ($1, $2, $3, $4)`,
		device.ID, device.Name, device.APIKeyHash, device.Status)
	if err != nil {
		return nil, "", fmt.Errorf("failed to register device: %w", err)
	}

	return device, apiKey, nil
}

// GetAPIKeyHash retrieves the API key hash for a device (for middleware)
func (s *DeviceService) GetAPIKeyHash(deviceID string) (string, error) {
	var hash string
	err := s.db.Pool.QueryRow(context.Background(),
		"SELECT api_key_hash FROM scanner_devices WHERE id = $1 AND status = 'active'",
		deviceID).Scan(&hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

// TouchDevice updates the device last-seen timestamp
func (s *DeviceService) TouchDevice(ctx context.Context, deviceID uuid.UUID) error {
	_, err := s.db.Pool.Exec(ctx,
		"UPDATE scanner_devices SET last_seen = $1 WHERE id = $2",
		time.Now(), deviceID)
	return err
}

// ListDevices retrieves all active scanner devices
func (s *DeviceService) ListDevices(ctx context.Context) ([]models.ScannerDevice, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, name, status, last_seen, created_at
		 FROM scanner_devices WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.ScannerDevice
	for rows.Next() {
		var d models.ScannerDevice
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.LastSeen, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// HashDeviceKey hashes an API key the same way registration does, so the
// device auth middleware can compare hashes rather than raw keys.
func HashDeviceKey(apiKey string) string {
	return hashDeviceKey(apiKey)
}

func hashDeviceKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
