package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/greenledger/verifier/internal/services"
)

// DeviceHandler handles scanner device requests
type DeviceHandler struct {
	deviceService *services.DeviceService
	verifyService *services.VerifyService
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *services.DeviceService, verifyService *services.VerifyService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		verifyService: verifyService,
	}
}

// Register handles device registration
func (h *DeviceHandler) Register(c *gin.Context) {
	var req services.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, apiKey, err := h.deviceService.RegisterDevice(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, services.RegisterDeviceResponse{
		DeviceID: device.ID.String(),
		APIKey:   apiKey,
	})
}

// List handles listing active devices
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.deviceService.ListDevices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// DeviceVerifyRequest represents a verification submitted by a field scanner
type DeviceVerifyRequest struct {
	TokenID string `json:"token_id" binding:"required"`
}

// Verify handles a verification reported by an authenticated scanner device
func (h *DeviceHandler) Verify(c *gin.Context) {
	var req DeviceVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deviceIDStr := c.GetString("device_id")
	if deviceID, err := uuid.Parse(deviceIDStr); err == nil {
		h.deviceService.TouchDevice(c.Request.Context(), deviceID)
	}

	result := h.verifyService.Verify(c.Request.Context(), req.TokenID)
	c.JSON(http.StatusOK, result)
}
