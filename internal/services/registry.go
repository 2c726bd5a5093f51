package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/storage"
)

// RegistryService handles crop batch registration and provenance tracking.
// It is the system of record behind the metadata and provenance sources the
// verification orchestrator consumes.
type RegistryService struct {
	db *storage.DB
}

// NewRegistryService creates a new registry service
func NewRegistryService(db *storage.DB) *RegistryService {
	return &RegistryService{db: db}
}

// CreateBatchRequest represents a batch registration request
type CreateBatchRequest struct {
	TokenID        string   `json:"token_id" binding:"required"`
	CropType       string   `json:"crop_type" binding:"required"`
	QuantityKg     float64  `json:"quantity_kg" binding:"required,gt=0"`
	HarvestDate    string   `json:"harvest_date" binding:"required"`
	OriginFarm     string   `json:"origin_farm" binding:"required"`
	Certifications []string `json:"certifications"`
}

// CreateBatch registers a new crop batch and records its initial "produced"
// provenance step in the same transaction.
func (s *RegistryService) CreateBatch(ctx context.Context, farmerID uuid.UUID, req CreateBatchRequest) (*models.Batch, error) {
	harvestDate, err := time.Parse("2006-01-02", req.HarvestDate)
	if err != nil {
		return nil, fmt.Errorf("invalid harvest date: %w", err)
	}

	var exists bool
	err = s.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM batches WHERE token_id = $1)",
		req.TokenID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check batch existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("batch with this token id already exists")
	}

	batch := &models.Batch{
		TokenID:        req.TokenID,
		FarmerID:       farmerID,
		CropType:       req.CropType,
		QuantityKg:     req.QuantityKg,
		HarvestDate:    harvestDate,
		OriginFarm:     req.OriginFarm,
		Certifications: req.Certifications,
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO batches (token_id, farmer_id, crop_type, quantity_kg, harvest_date, origin_farm, certifications)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.TokenID, batch.FarmerID, batch.CropType, batch.QuantityKg,
		batch.HarvestDate, batch.OriginFarm, batch.Certifications)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO provenance_steps (id, token_id, stage, step_time, location, actor_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), batch.TokenID, models.StageProduced, time.Now(), batch.OriginFarm, farmerID)
	if err != nil {
		return nil, fmt.Errorf("failed to record initial provenance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	return batch, nil
}

// GetBatch retrieves a batch by token id
func (s *RegistryService) GetBatch(ctx context.Context, tokenID string) (*models.Batch, error) {
	var batch models.Batch
	err := s.db.Pool.QueryRow(ctx,
		`SELECT token_id, farmer_id, crop_type, quantity_kg, harvest_date, origin_farm, certifications, created_at
		 FROM batches WHERE token_id = $1`,
		tokenID).Scan(
		&batch.TokenID, &batch.FarmerID, &batch.CropType, &batch.QuantityKg,
		&batch.HarvestDate, &batch.OriginFarm, &batch.Certifications, &batch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("batch not found")
	}
	return &batch, nil
}

// ListBatches retrieves all batches registered by a farmer
func (s *RegistryService) ListBatches(ctx context.Context, farmerID uuid.UUID) ([]models.Batch, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT token_id, farmer_id, crop_type, quantity_kg, harvest_date, origin_farm, certifications, created_at
		 FROM batches WHERE farmer_id = $1 ORDER BY created_at DESC`,
		farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		var batch models.Batch
		err := rows.Scan(
			&batch.TokenID, &batch.FarmerID, &batch.CropType, &batch.QuantityKg,
			&batch.HarvestDate, &batch.OriginFarm, &batch.Certifications, &batch.CreatedAt)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// FetchMetadata returns the descriptive metadata for a token id. This is the
// metadata-source contract consumed by the verification orchestrator.
func (s *RegistryService) FetchMetadata(ctx context.Context, tokenID string) (*models.TokenMetadata, error) {
	batch, err := s.GetBatch(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return &models.TokenMetadata{
		CropType:       batch.CropType,
		QuantityKg:     batch.QuantityKg,
		HarvestDate:    batch.HarvestDate,
		OriginFarm:     batch.OriginFarm,
		Certifications: batch.Certifications,
	}, nil
}

// AppendProvenanceRequest represents a provenance step submission
type AppendProvenanceRequest struct {
	Stage    string `json:"stage" binding:"required"`
	Location string `json:"location" binding:"required"`
	TxHash   string `json:"tx_hash"`
}

// AppendProvenance records a new step in a batch's journey. Steps must move
// forward through the journey and carry non-decreasing timestamps, so a
// replayed or backdated submission is rejected rather than silently logged.
func (s *RegistryService) AppendProvenance(ctx context.Context, tokenID string, actorID uuid.UUID, actorRole string, req AppendProvenanceRequest) (*models.ProvenanceStep, error) {
	stagePos, ok := models.StageOrder[req.Stage]
	if !ok {
		return nil, fmt.Errorf("unknown stage: %s", req.Stage)
	}

	allowedRole := models.StageRole[req.Stage]
	if actorRole != allowedRole && actorRole != models.RoleAdmin {
		return nil, fmt.Errorf("role %s cannot record stage %s", actorRole, req.Stage)
	}

	if _, err := s.GetBatch(ctx, tokenID); err != nil {
		return nil, err
	}

	var lastStage string
	var lastTime time.Time
	err := s.db.Pool.QueryRow(ctx,
		`SELECT stage, step_time FROM provenance_steps
		 WHERE token_id = $1 ORDER BY step_time DESC, id DESC LIMIT 1`,
		tokenID).Scan(&lastStage, &lastTime)
	if err == nil {
		if models.StageOrder[lastStage] >= stagePos {
			return nil, fmt.Errorf("stage %s cannot follow %s", req.Stage, lastStage)
		}
	}

	now := time.Now()
	if err == nil && now.Before(lastTime) {
		return nil, fmt.Errorf("step timestamp precedes previous step")
	}

	step := &models.ProvenanceStep{
		ID:        uuid.New(),
		TokenID:   tokenID,
		Stage:     req.Stage,
		Timestamp: now,
		Location:  req.Location,
		ActorID:   actorID,
	}
	if req.TxHash != "" {
		step.TxHash = &req.TxHash
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO provenance_steps (id, token_id, stage, step_time, location, actor_id, tx_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		step.ID, step.TokenID, step.Stage, step.Timestamp, step.Location, step.ActorID, step.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to record provenance step: %w", err)
	}

	return step, nil
}

// FetchProvenance returns a batch's journey in chronological order. This is
// the provenance-source contract consumed by the verification orchestrator.
func (s *RegistryService) FetchProvenance(ctx context.Context, tokenID string) ([]models.ProvenanceStep, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, token_id, stage, step_time, location, actor_id, tx_hash
		 FROM provenance_steps WHERE token_id = $1 ORDER BY step_time ASC, id ASC`,
		tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []models.ProvenanceStep
	for rows.Next() {
		var step models.ProvenanceStep
		err := rows.Scan(&step.ID, &step.TokenID, &step.Stage, &step.Timestamp,
			&step.Location, &step.ActorID, &step.TxHash)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}
