package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/models"
	"treasure-tower-backend/internal/services"
)

type GameHandler struct {
	redisService *services.RedisService
}

func NewGameHandler(redisService *services.RedisService) *GameHandler {
	return &GameHandler{redisService: redisService}
}

// PlaceBet debits the stake before any round may start. The client is not
// allowed to begin a climb unless this call succeeded.
func (h *GameHandler) PlaceBet(c *gin.Context) {
	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: walletAddress, betAmount",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	if !models.ValidAmount(req.BetAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bet amount"})
		return
	}

	acct, err := h.redisService.PlaceBet(c.Request.Context(), wallet, req.BetAmount)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"newBalance": acct.Balance,
		"betAmount":  req.BetAmount,
		"message":    "Bet placed successfully",
	})
}

// Cashout settles a win reported by the client with its final multiplier.
func (h *GameHandler) Cashout(c *gin.Context) {
	var req models.CashoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: walletAddress, betAmount, multiplier",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	if !models.ValidAmount(req.BetAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bet amount"})
		return
	}
	if req.Multiplier < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multiplier"})
		return
	}

	acct, winnings, err := h.redisService.SettleWin(c.Request.Context(), wallet, req.BetAmount, req.Multiplier)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"newBalance": acct.Balance,
		"winnings":   winnings,
		"multiplier": req.Multiplier,
		"message":    "Cashout successful",
	})
}

// GetBalance returns a zero snapshot for never-deposited wallets.
func (h *GameHandler) GetBalance(c *gin.Context) {
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

	snapshot, err := h.redisService.GetBalance(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get balance",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":        snapshot.Balance,
		"totalDeposited": snapshot.TotalDeposited,
		"totalWithdrawn": snapshot.TotalWithdrawn,
		"totalBets":      snapshot.TotalBets,
		"totalWinnings":  snapshot.TotalWinnings,
	})
}

func (h *GameHandler) GetTransactions(c *gin.Context) {
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

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := h.redisService.GetTransactions(c.Request.Context(), wallet, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get transactions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}
