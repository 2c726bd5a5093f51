package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/verifier/internal/models"
)

type stubMetadata struct {
	metadata *models.TokenMetadata
	err      error
	calls    int
}

func (s *stubMetadata) FetchMetadata(ctx context.Context, tokenID string) (*models.TokenMetadata, error) {
	s.calls++
	return s.metadata, s.err
}

type stubProvenance struct {
	steps []models.ProvenanceStep
	err   error
	calls int
}

func (s *stubProvenance) FetchProvenance(ctx context.Context, tokenID string) ([]models.ProvenanceStep, error) {
	s.calls++
	return s.steps, s.err
}

type stubFraud struct {
	alerts  []models.Alert
	err     error
	scanned []string
}

func (s *stubFraud) RecordScan(ctx context.Context, tokenID string) ([]models.Alert, error) {
	s.scanned = append(s.scanned, tokenID)
	return s.alerts, s.err
}

func TestVerify_Success(t *testing.T) {
	metadata := &stubMetadata{metadata: &models.TokenMetadata{
		CropType:   "cocoa",
		QuantityKg: 120,
		OriginFarm: "Kumasi Cooperative",
	}}
	provenance := &stubProvenance{steps: []models.ProvenanceStep{
		{TokenID: "456", Stage: models.StageProduced, Timestamp: time.Now().Add(-72 * time.Hour)},
		{TokenID: "456", Stage: models.StageTransit, Timestamp: time.Now().Add(-24 * time.Hour)},
	}}
	fraud := &stubFraud{}

	svc := NewVerifyService(metadata, provenance, fraud, 10*time.Second)
	result := svc.Verify(context.Background(), "456")

	require.NotNil(t, result)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "cocoa", result.Metadata.CropType)
	assert.Len(t, result.Provenance, 2)
	assert.GreaterOrEqual(t, result.VerificationTimeMs, int64(0))
	assert.Equal(t, []string{"456"}, fraud.scanned, "scan must be recorded exactly once")
}

func TestVerify_MetadataFailure(t *testing.T) {
	metadata := &stubMetadata{err: errors.New("batch not found")}
	provenance := &stubProvenance{}
	fraud := &stubFraud{}

	svc := NewVerifyService(metadata, provenance, fraud, 10*time.Second)
	result := svc.Verify(context.Background(), "999")

	require.NotNil(t, result, "verify never returns nil")
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Error)
	assert.Nil(t, result.Metadata)
	assert.Equal(t, []string{"999"}, fraud.scanned, "scan recorded even for invalid lookups")
}

func TestVerify_ProvenanceFailure(t *testing.T) {
	metadata := &stubMetadata{metadata: &models.TokenMetadata{CropType: "maize"}}
	provenance := &stubProvenance{err: errors.New("provenance unavailable")}

	svc := NewVerifyService(metadata, provenance, &stubFraud{}, 10*time.Second)
	result := svc.Verify(context.Background(), "1")

	assert.False(t, result.IsValid)
	assert.Equal(t, "provenance unavailable", result.Error)
}

func TestVerify_FetchesBothSources(t *testing.T) {
	metadata := &stubMetadata{metadata: &models.TokenMetadata{CropType: "tea"}}
	provenance := &stubProvenance{}

	svc := NewVerifyService(metadata, provenance, &stubFraud{}, 10*time.Second)
	svc.Verify(context.Background(), "5")

	assert.Equal(t, 1, metadata.calls)
	assert.Equal(t, 1, provenance.calls)
}

func TestVerify_AttachesFraudAlerts(t *testing.T) {
	fraud := &stubFraud{alerts: []models.Alert{
		{TokenID: "7", Kind: AlertRescanFrequency, ScanCount: 15, WindowSecs: 300},
	}}
	metadata := &stubMetadata{metadata: &models.TokenMetadata{CropType: "rice"}}

	svc := NewVerifyService(metadata, &stubProvenance{}, fraud, 10*time.Second)
	result := svc.Verify(context.Background(), "7")

	require.Len(t, result.FraudAlerts, 1)
	assert.Equal(t, AlertRescanFrequency, result.FraudAlerts[0].Kind)
}

func TestVerify_FraudRecorderErrorDoesNotFailVerification(t *testing.T) {
	fraud := &stubFraud{err: errors.New("scan log unavailable")}
	metadata := &stubMetadata{metadata: &models.TokenMetadata{CropType: "wheat"}}

	svc := NewVerifyService(metadata, &stubProvenance{}, fraud, 10*time.Second)
	result := svc.Verify(context.Background(), "8")

	assert.True(t, result.IsValid)
	assert.Empty(t, result.FraudAlerts)
}

type slowMetadata struct{}

func (slowMetadata) FetchMetadata(ctx context.Context, tokenID string) (*models.TokenMetadata, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return &models.TokenMetadata{}, nil
	}
}

func TestVerify_FetchTimeout(t *testing.T) {
	svc := NewVerifyService(slowMetadata{}, &stubProvenance{}, &stubFraud{}, 50*time.Millisecond)
	result := svc.Verify(context.Background(), "9")

	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Error)
}
