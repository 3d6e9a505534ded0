package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/models"
	"treasure-tower-backend/internal/services"
)

type DepositHandler struct {
	redisService *services.RedisService
}

func NewDepositHandler(redisService *services.RedisService) *DepositHandler {
	return &DepositHandler{redisService: redisService}
}

// RecordDeposit credits a balance for an on-chain deposit observed by the
// vault frontend. The transaction hash is the idempotency key: replays and
// webhook retries return the current account without crediting again.
func (h *DepositHandler) RecordDeposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	if !models.ValidTransactionHash(req.TransactionHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction hash"})
		return
	}
	if !models.ValidAmount(req.Amount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deposit amount"})
		return
	}

	acct, err := h.redisService.RecordDeposit(c.Request.Context(), wallet, req.Username, req.Fid, req.Amount, req.TransactionHash)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateDeposit) {
			// Already credited: answer idempotently with the current state.
			existing, gerr := h.redisService.GetAccount(c.Request.Context(), wallet)
			if gerr != nil || existing == nil {
				c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"success":         true,
				"duplicate":       true,
				"user":            existing,
				"transactionHash": req.TransactionHash,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to save deposit",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"user":            acct,
		"transactionHash": req.TransactionHash,
	})
}
