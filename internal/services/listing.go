package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/storage"
)

// ListingService handles marketplace listings for registered batches
type ListingService struct {
	db       *storage.DB
	registry *RegistryService
}

// NewListingService creates a new listing service
func NewListingService(db *storage.DB, registry *RegistryService) *ListingService {
	return &ListingService{db: db, registry: registry}
}

// CreateListingRequest represents a listing creation request
type CreateListingRequest struct {
	TokenID    string `json:"token_id" binding:"required"`
	PriceCents int64  `json:"price_cents" binding:"required,gt=0"`
	Currency   string `json:"currency"`
}

// CreateListing lists a batch on the marketplace. Only the registering farmer
// may list a batch, and a batch already marked consumed cannot be listed.
func (s *ListingService) CreateListing(ctx context.Context, sellerID uuid.UUID, req CreateListingRequest) (*models.Listing, error) {
	batch, err := s.registry.GetBatch(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if batch.FarmerID != sellerID {
		return nil, fmt.Errorf("only the registering farmer can list a batch")
	}

	steps, err := s.registry.FetchProvenance(ctx, req.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check batch journey: %w", err)
	}
	for _, step := range steps {
		if step.Stage == models.StageConsumed {
			return nil, fmt.Errorf("consumed batch cannot be listed")
		}
	}

	var exists bool
	err = s.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM listings WHERE token_id = $1 AND status = 'open')",
		req.TokenID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing listings: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("batch already has an open listing")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	listing := &models.Listing{
		ID:         uuid.New(),
		TokenID:    req.TokenID,
		SellerID:   sellerID,
		PriceCents: req.PriceCents,
		Currency:   currency,
		Status:     "open",
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO listings (id, token_id, seller_id, price_cents, currency, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		listing.ID, listing.TokenID, listing.SellerID, listing.PriceCents,
		listing.Currency, listing.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

// BrowseListings retrieves open listings, newest first
func (s *ListingService) BrowseListings(ctx context.Context, limit int) ([]models.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, token_id, seller_id, price_cents, currency, status, created_at, closed_at
		 FROM listings WHERE status = 'open' ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		err := rows.Scan(&l.ID, &l.TokenID, &l.SellerID, &l.PriceCents,
			&l.Currency, &l.Status, &l.CreatedAt, &l.ClosedAt)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// CloseListing closes an open listing. Only the seller or an admin may close.
func (s *ListingService) CloseListing(ctx context.Context, listingID, actorID uuid.UUID, actorRole string) error {
	var sellerID uuid.UUID
	var status string
	err := s.db.Pool.QueryRow(ctx,
		"SELECT seller_id, status FROM listings WHERE id = $1",
		listingID).Scan(&sellerID, &status)
	if err != nil {
		return fmt.Errorf("listing not found")
	}

	if sellerID != actorID && actorRole != models.RoleAdmin {
		return fmt.Errorf("only the seller can close a listing")
	}
	if status != "open" {
		return fmt.Errorf("listing is not open")
	}

	_, err = s.db.Pool.Exec(ctx,
		"UPDATE listings SET status = 'closed', closed_at = $1 WHERE id = $2",
		time.Now(), listingID)
	if err != nil {
		return fmt.Errorf("failed to close listing: %w", err)
	}
	return nil
}
