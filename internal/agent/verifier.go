package agent

import (
	"context"
	"time"

	"github.com/greenledger/verifier/internal/cache"
	"github.com/greenledger/verifier/internal/models"
)

// RemoteVerifier is the API-backed verification path.
type RemoteVerifier interface {
	Verify(ctx context.Context, tokenID string) (*models.VerificationResult, error)
	Online(ctx context.Context) bool
}

// Verifier is the field agent's offline-aware verification flow: online
// verifications go to the API server and are snapshotted into the local
// cache; offline verifications come from the cache with Offline set.
type Verifier struct {
	client RemoteVerifier
	store  *cache.Store
	maxAge time.Duration
}

// NewVerifier creates a new offline-aware verifier
func NewVerifier(client RemoteVerifier, store *cache.Store, maxAge time.Duration) *Verifier {
	return &Verifier{
		client: client,
		store:  store,
		maxAge: maxAge,
	}
}

// Verify produces a result for a token id. Like the server orchestrator it
// never returns an error; a dead network with an empty cache becomes an
// invalid result with a message.
func (v *Verifier) Verify(ctx context.Context, tokenID string) *models.VerificationResult {
	start := time.Now()

	if !v.client.Online(ctx) {
		return v.fromCache(tokenID, start)
	}

	result, err := v.client.Verify(ctx, tokenID)
	if err != nil {
		// The probe passed but the call failed; treat it like being offline
		// rather than surfacing a transport error to the scan flow.
		return v.fromCache(tokenID, start)
	}

	if result.IsValid {
		v.store.Put(tokenID, *result)
	}
	result.VerificationTimeMs = time.Since(start).Milliseconds()
	return result
}

func (v *Verifier) fromCache(tokenID string, start time.Time) *models.VerificationResult {
	entry := v.store.Get(tokenID)
	if entry == nil || !cache.IsFresh(entry, v.maxAge) {
		return &models.VerificationResult{
			TokenID:            tokenID,
			IsValid:            false,
			Error:              "offline and no fresh cached verification",
			Offline:            true,
			VerificationTimeMs: time.Since(start).Milliseconds(),
		}
	}

	result := entry.Result
	result.Offline = true
	result.VerificationTimeMs = time.Since(start).Milliseconds()
	return &result
}
