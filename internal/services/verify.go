package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greenledger/verifier/internal/models"
)

// MetadataSource supplies descriptive metadata for a token id.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, tokenID string) (*models.TokenMetadata, error)
}

// ProvenanceSource supplies the recorded journey for a token id.
type ProvenanceSource interface {
	FetchProvenance(ctx context.Context, tokenID string) ([]models.ProvenanceStep, error)
}

// ScanRecorder records a scan event and returns any fraud alerts it raised.
type ScanRecorder interface {
	RecordScan(ctx context.Context, tokenID string) ([]models.Alert, error)
}

// VerifyService orchestrates a single verification attempt: record the scan,
// fetch metadata and provenance concurrently, assemble the result.
type VerifyService struct {
	metadata     MetadataSource
	provenance   ProvenanceSource
	fraud        ScanRecorder
	fetchTimeout time.Duration
}

// NewVerifyService creates a new verification orchestrator
func NewVerifyService(metadata MetadataSource, provenance ProvenanceSource, fraud ScanRecorder, fetchTimeout time.Duration) *VerifyService {
	return &VerifyService{
		metadata:     metadata,
		provenance:   provenance,
		fraud:        fraud,
		fetchTimeout: fetchTimeout,
	}
}

// Verify produces a VerificationResult for a token id. It never returns an
// error: every failure is folded into the result as IsValid:false plus a
// message, so callers have exactly one shape to handle. A single attempt is
// made per call, with no retry.
func (s *VerifyService) Verify(ctx context.Context, tokenID string) *models.VerificationResult {
	start := time.Now()
	result := &models.VerificationResult{TokenID: tokenID}

	// The scan is logged before we know whether the token is valid; scans of
	// unknown or duplicate ids feed the fraud heuristic too.
	if s.fraud != nil {
		if alerts, err := s.fraud.RecordScan(ctx, tokenID); err == nil {
			result.FraudAlerts = alerts
		}
	}

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	var metadata *models.TokenMetadata
	var provenance []models.ProvenanceStep

	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		m, err := s.metadata.FetchMetadata(gctx, tokenID)
		if err != nil {
			return err
		}
		metadata = m
		return nil
	})
	g.Go(func() error {
		p, err := s.provenance.FetchProvenance(gctx, tokenID)
		if err != nil {
			return err
		}
		provenance = p
		return nil
	})

	if err := g.Wait(); err != nil {
		result.Error = err.Error()
		result.VerificationTimeMs = time.Since(start).Milliseconds()
		return result
	}

	result.IsValid = true
	result.Metadata = metadata
	result.Provenance = provenance
	result.VerificationTimeMs = time.Since(start).Milliseconds()
	return result
}
