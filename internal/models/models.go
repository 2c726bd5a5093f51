package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant roles. Provenance stage transitions are gated on these.
const (
	RoleFarmer      = "farmer"
	RoleTransporter = "transporter"
	RoleBuyer       = "buyer"
	RoleAdmin       = "admin"
)

// Provenance stages in journey order.
const (
	StageProduced  = "produced"
	StageTransit   = "transit"
	StageDelivered = "delivered"
	StageConsumed  = "consumed"
)

// Participant represents a registered supply-chain actor
type Participant struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	FarmName     string    `db:"farm_name" json:"farm_name,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Batch represents a registered crop batch
type Batch struct {
	TokenID        string    `db:"token_id" json:"token_id"`
	FarmerID       uuid.UUID `db:"farmer_id" json:"farmer_id"`
	CropType       string    `db:"crop_type" json:"crop_type"`
	QuantityKg     float64   `db:"quantity_kg" json:"quantity_kg"`
	HarvestDate    time.Time `db:"harvest_date" json:"harvest_date"`
	OriginFarm     string    `db:"origin_farm" json:"origin_farm"`
	Certifications []string  `db:"certifications" json:"certifications"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TokenMetadata is the descriptive record of a batch returned by verification
type TokenMetadata struct {
	CropType       string    `json:"crop_type"`
	QuantityKg     float64   `json:"quantity_kg"`
	HarvestDate    time.Time `json:"harvest_date"`
	OriginFarm     string    `json:"origin_farm"`
	Certifications []string  `json:"certifications"`
}

// ProvenanceStep is one recorded stage in a batch's journey
type ProvenanceStep struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TokenID   string    `db:"token_id" json:"token_id"`
	Stage     string    `db:"stage" json:"stage"`
	Timestamp time.Time `db:"step_time" json:"timestamp"`
	Location  string    `db:"location" json:"location"`
	ActorID   uuid.UUID `db:"actor_id" json:"actor_id"`
	TxHash    *string   `db:"tx_hash" json:"tx_hash,omitempty"`
}

// Alert describes an anomalous scanning pattern for a token id
type Alert struct {
	TokenID    string    `json:"token_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	ScanCount  int       `json:"scan_count"`
	WindowSecs int       `json:"window_secs"`
	RaisedAt   time.Time `json:"raised_at"`
}

// ScanEvent records a single verification attempt for a token id
type ScanEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TokenID   string    `db:"token_id" json:"token_id"`
	ScannedAt time.Time `db:"scanned_at" json:"scanned_at"`
}

// VerificationResult is the outcome of one verification attempt. It is
// created fresh per attempt and immutable once returned.
type VerificationResult struct {
	TokenID            string           `json:"token_id"`
	IsValid            bool             `json:"is_valid"`
	Metadata           *TokenMetadata   `json:"metadata,omitempty"`
	Provenance         []ProvenanceStep `json:"provenance,omitempty"`
	VerificationTimeMs int64            `json:"verification_time_ms"`
	Error              string           `json:"error,omitempty"`
	Offline            bool             `json:"offline,omitempty"`
	FraudAlerts        []Alert          `json:"fraud_alerts,omitempty"`
}

// ScannerDevice represents a registered field scanner
type ScannerDevice struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	APIKeyHash string     `db:"api_key_hash" json:"-"`
	Status     string     `db:"status" json:"status"`
	LastSeen   *time.Time `db:"last_seen" json:"last_seen"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Listing represents a marketplace listing for a batch
type Listing struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	TokenID    string     `db:"token_id" json:"token_id"`
	SellerID   uuid.UUID  `db:"seller_id" json:"seller_id"`
	PriceCents int64      `db:"price_cents" json:"price_cents"`
	Currency   string     `db:"currency" json:"currency"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ClosedAt   *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// StageRole maps each provenance stage to the participant role allowed to
// record it. Consumed is open to buyers.
var StageRole = map[string]string{
	StageProduced:  RoleFarmer,
	StageTransit:   RoleTransporter,
	StageDelivered: RoleTransporter,
	StageConsumed:  RoleBuyer,
}

// StageOrder gives the journey position of each stage for ordering checks.
var StageOrder = map[string]int{
	StageProduced:  0,
	StageTransit:   1,
	StageDelivered: 2,
	StageConsumed:  3,
}
