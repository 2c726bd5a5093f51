package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/middleware"
	"github.com/greenledger/verifier/internal/services"
)

// BatchHandler handles crop batch requests
type BatchHandler struct {
	registryService *services.RegistryService
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(registryService *services.RegistryService) *BatchHandler {
	return &BatchHandler{registryService: registryService}
}

// Create handles batch registration
func (h *BatchHandler) Create(c *gin.Context) {
	var req services.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farmerID, err := uuid.Parse(middleware.GetParticipantID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	batch, err := h.registryService.CreateBatch(c.Request.Context(), farmerID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, batch)
}

// Get handles retrieving a batch by token id
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.registryService.GetBatch(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, batch)
}

// List handles listing the caller's batches
func (h *BatchHandler) List(c *gin.Context) {
	farmerID, err := uuid.Parse(middleware.GetParticipantID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	batches, err := h.registryService.ListBatches(c.Request.Context(), farmerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// AppendProvenance handles recording a provenance step
func (h *BatchHandler) AppendProvenance(c *gin.Context) {
	var req services.AppendProvenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID, err := uuid.Parse(middleware.GetParticipantID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	step, err := h.registryService.AppendProvenance(
		c.Request.Context(), c.Param("tokenId"), actorID, middleware.GetRole(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, step)
}

// GetProvenance handles retrieving a batch's journey
func (h *BatchHandler) GetProvenance(c *gin.Context) {
	steps, err := h.registryService.FetchProvenance(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"provenance": steps})
}
