package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/storage"
)

// Alert kinds returned by the fraud heuristic.
const (
	AlertRescanFrequency = "rescan_frequency"
	AlertBurst           = "burst"
)

// FraudService detects anomalous scanning patterns. It is constructed once at
// startup and injected into the verification orchestrator; scan history lives
// in the scan_events table, not in package state.
type FraudService struct {
	db            *storage.DB
	window        time.Duration
	scanThreshold int
	burstPerSec   int
}

// NewFraudService creates a new fraud service
func NewFraudService(db *storage.DB, windowSecs, scanThreshold, burstPerSec int) *FraudService {
	return &FraudService{
		db:            db,
		window:        time.Duration(windowSecs) * time.Second,
		scanThreshold: scanThreshold,
		burstPerSec:   burstPerSec,
	}
}

// RecordScan appends a scan event for a token id and evaluates the sliding
// window. It runs on every verification attempt, including lookups of token
// ids that were never registered; unknown ids being scanned repeatedly is
// itself a signal. Returns the alerts raised by this scan, or nil.
func (s *FraudService) RecordScan(ctx context.Context, tokenID string) ([]models.Alert, error) {
	now := time.Now()

	_, err := s.db.Pool.Exec(ctx,
		"INSERT INTO scan_events (id, token_id, scanned_at) VALUES ($1, $2, $3)",
		uuid.New(), tokenID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}

	var windowCount int
	err = s.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM scan_events WHERE token_id = $1 AND scanned_at > $2",
		tokenID, now.Add(-s.window)).Scan(&windowCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}

	var burstCount int
	err = s.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM scan_events WHERE token_id = $1 AND scanned_at > $2",
		tokenID, now.Add(-time.Second)).Scan(&burstCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count burst scans: %w", err)
	}

	var alerts []models.Alert
	if windowCount > s.scanThreshold {
		alerts = append(alerts, models.Alert{
			TokenID:    tokenID,
			Kind:       AlertRescanFrequency,
			Message:    fmt.Sprintf("token scanned %d times in the last %s", windowCount, s.window),
			ScanCount:  windowCount,
			WindowSecs: int(s.window.Seconds()),
			RaisedAt:   now,
		})
	}
	if burstCount > s.burstPerSec {
		alerts = append(alerts, models.Alert{
			TokenID:    tokenID,
			Kind:       AlertBurst,
			Message:    fmt.Sprintf("token scanned %d times within one second", burstCount),
			ScanCount:  burstCount,
			WindowSecs: 1,
			RaisedAt:   now,
		})
	}

	return alerts, nil
}

// ScanHistory returns recent scan events for a token id, newest first.
func (s *FraudService) ScanHistory(ctx context.Context, tokenID string, limit int) ([]models.ScanEvent, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, token_id, scanned_at FROM scan_events
		 WHERE token_id = $1 ORDER BY scanned_at DESC LIMIT $2`,
		tokenID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ScanEvent
	for rows.Next() {
		var ev models.ScanEvent
		if err := rows.Scan(&ev.ID, &ev.TokenID, &ev.ScannedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
