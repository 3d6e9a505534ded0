package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/models"
	"treasure-tower-backend/internal/services"
)

type WithdrawHandler struct {
	redisService *services.RedisService
}

func NewWithdrawHandler(redisService *services.RedisService) *WithdrawHandler {
	return &WithdrawHandler{redisService: redisService}
}

// RequestWithdrawal debits the balance and opens a pending request, one per
// wallet per 24 hours. The debit and the request are created atomically.
func (h *WithdrawHandler) RequestWithdrawal(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: walletAddress, amount",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	if !models.ValidAmount(req.Amount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdrawal amount"})
		return
	}
	if req.Amount < services.MinWithdrawalAmount {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Minimum withdrawal amount is %g MON", services.MinWithdrawalAmount),
		})
		return
	}

	withdrawal, acct, err := h.redisService.RequestWithdrawal(c.Request.Context(), wallet, req.Amount, req.Fid, req.Username)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"withdrawalId": withdrawal.ID,
		"amount":       withdrawal.Amount,
		"newBalance":   acct.Balance,
		"status":       withdrawal.Status,
		"message":      "Withdrawal request created successfully. Balance deducted immediately.",
	})
}

// GetWithdrawalHistory returns the wallet's last requests newest-first plus
// whether a new request would pass the cooldown.
func (h *WithdrawHandler) GetWithdrawalHistory(c *gin.Context) {
	walletAddress := c.Query("walletAddress")
	if walletAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing walletAddress parameter"})
		return
	}

	wallet, err := models.NormalizeWalletAddress(walletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	withdrawals, err := h.redisService.ListWalletWithdrawals(c.Request.Context(), wallet, services.WithdrawalHistoryLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch withdrawal history",
			"details": err.Error(),
		})
		return
	}

	canWithdraw, hoursRemaining, err := h.redisService.CooldownStatus(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to check withdrawal cooldown",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals":    withdrawals,
		"canWithdraw":    canWithdraw,
		"hoursRemaining": hoursRemaining,
	})
}
