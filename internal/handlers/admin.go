package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/models"
	"treasure-tower-backend/internal/services"
)

// AdminHandler backs the off-band withdrawal processor: it lists pending
// requests FIFO and records the outcome of each on-chain transfer.
type AdminHandler struct {
	redisService *services.RedisService
}

func NewAdminHandler(redisService *services.RedisService) *AdminHandler {
	return &AdminHandler{redisService: redisService}
}

// ListWithdrawals returns requests for one status, oldest first.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	status := models.WithdrawalStatus(c.DefaultQuery("status", string(models.WithdrawalPending)))

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 100
	}

	withdrawals, err := h.redisService.ListWithdrawalsByStatus(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch withdrawals",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"count":       len(withdrawals),
		"withdrawals": withdrawals,
	})
}

// UpdateWithdrawal records the outcome of one processed request.
func (h *AdminHandler) UpdateWithdrawal(c *gin.Context) {
	var req models.WithdrawalUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: withdrawalId, status",
			"details": err.Error(),
		})
		return
	}

	if !req.Status.ValidAdminStatus() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status. Must be: completed, rejected, or processing",
		})
		return
	}

	withdrawal, err := h.redisService.UpdateWithdrawal(
		c.Request.Context(), req.WithdrawalID, req.Status, req.TransactionHash, req.RejectionReason)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"withdrawal": withdrawal,
	})
}

// BatchUpdateWithdrawals applies independent updates, reporting per-item
// outcomes so one bad record does not block the rest of the batch.
func (h *AdminHandler) BatchUpdateWithdrawals(c *gin.Context) {
	var req struct {
		Updates []models.WithdrawalUpdate `json:"updates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid updates array"})
		return
	}

	result := h.redisService.BatchUpdateWithdrawals(c.Request.Context(), req.Updates)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(req.Updates),
		"results":   result,
	})
}

// Health lets the admin processor confirm the API and its store are up.
func (h *AdminHandler) Health(c *gin.Context) {
	if err := h.redisService.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
