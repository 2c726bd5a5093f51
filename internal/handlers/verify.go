package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/greenledger/verifier/internal/qrcode"
	"github.com/greenledger/verifier/internal/services"
)

// VerifyHandler handles verification and QR code requests
type VerifyHandler struct {
	verifyService   *services.VerifyService
	fraudService    *services.FraudService
	enforceChecksum bool
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(verifyService *services.VerifyService, fraudService *services.FraudService, enforceChecksum bool) *VerifyHandler {
	return &VerifyHandler{
		verifyService:   verifyService,
		fraudService:    fraudService,
		enforceChecksum: enforceChecksum,
	}
}

// Verify handles verification of a token id
func (h *VerifyHandler) Verify(c *gin.Context) {
	result := h.verifyService.Verify(c.Request.Context(), c.Param("tokenId"))
	c.JSON(http.StatusOK, result)
}

// GenerateQR handles QR payload generation for a token id
func (h *VerifyHandler) GenerateQR(c *gin.Context) {
	payload := qrcode.GeneratePayload(c.Param("tokenId"))
	c.JSON(http.StatusOK, gin.H{
		"payload": payload,
		"encoded": qrcode.EncodePayload(payload),
	})
}

// ScanRequest represents a scanned QR submission
type ScanRequest struct {
	Data string `json:"data" binding:"required"`
}

// Scan handles a scanned QR code: decode, optionally enforce the checksum,
// then verify. Unscannable content is a 400, not a verification failure.
func (h *VerifyHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := qrcode.DecodeQR(req.Data)
	if payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a valid greenledger code"})
		return
	}

	if h.enforceChecksum && !qrcode.ValidatePayload(payload) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checksum mismatch"})
		return
	}

	result := h.verifyService.Verify(c.Request.Context(), payload.TokenID)
	c.JSON(http.StatusOK, result)
}

// ScanHistory handles retrieving recent scan events for a token id
func (h *VerifyHandler) ScanHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	events, err := h.fraudService.ScanHistory(c.Request.Context(), c.Param("tokenId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scans": events})
}
