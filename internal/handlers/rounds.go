package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/models"
	"treasure-tower-backend/internal/services"
)

// RoundHandler drives the server-side rounds: grid generation, reveals and
// settlement all happen here so the multiplier credited is always one the
// round actually produced.
type RoundHandler struct {
	gameEngine *services.GameEngine
}

func NewRoundHandler(gameEngine *services.GameEngine) *RoundHandler {
	return &RoundHandler{gameEngine: gameEngine}
}

// roundView serializes a round for the client. The actual grid stays hidden
// until the round is terminal.
func roundView(r *services.Round) gin.H {
	view := gin.H{
		"id":         r.ID,
		"mode":       r.Mode,
		"status":     r.Status,
		"betAmount":  r.BetAmount,
		"multiplier": r.Multiplier,
		"currentRow": r.CurrentRow,
		"rows":       r.Config.Rows,
		"cols":       r.Config.Cols,
		"grid":       r.Grid,
		"clientSeed": r.ClientSeed,
		"nonce":      r.Nonce,
	}
	if r.Status != models.StatusPlaying && r.Status != models.StatusIdle {
		view["actualGrid"] = r.ActualGrid
	} else {
		view["activeRow"] = r.ActiveRow()
	}
	return view
}

func (h *RoundHandler) StartRound(c *gin.Context) {
	var req models.StartRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: walletAddress, mode, betAmount",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	if !req.Mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mode: must be easy, medium or hard"})
		return
	}
	if !models.ValidAmount(req.BetAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bet amount"})
		return
	}

	round, acct, err := h.gameEngine.StartRound(c.Request.Context(), wallet, req.Mode, req.BetAmount)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"round":      roundView(round),
		"newBalance": acct.Balance,
	})
}

func (h *RoundHandler) Reveal(c *gin.Context) {
	var req models.RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: walletAddress, row, col",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	outcome, err := h.gameEngine.Reveal(c.Request.Context(), wallet, req.Row, req.Col)
	if err != nil {
		serviceError(c, err)
		return
	}

	resp := gin.H{
		"success":  true,
		"revealed": outcome.Result.Revealed,
		"tile":     outcome.Result.Tile,
		"round":    roundView(outcome.Round),
	}
	if outcome.Settled {
		resp["winnings"] = outcome.Winnings
		resp["newBalance"] = outcome.Account.Balance
	}

	c.JSON(http.StatusOK, resp)
}

func (h *RoundHandler) CashOut(c *gin.Context) {
	var req models.RoundActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required field: walletAddress",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	outcome, err := h.gameEngine.CashOut(c.Request.Context(), wallet)
	if err != nil {
		serviceError(c, err)
		return
	}

	resp := gin.H{
		"success": true,
		"settled": outcome.Settled,
		"round":   roundView(outcome.Round),
	}
	if outcome.Settled {
		resp["winnings"] = outcome.Winnings
		resp["multiplier"] = outcome.Round.Multiplier
		resp["newBalance"] = outcome.Account.Balance
	}

	c.JSON(http.StatusOK, resp)
}

func (h *RoundHandler) Reset(c *gin.Context) {
	var req models.RoundActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required field: walletAddress",
			"details": err.Error(),
		})
		return
	}

	wallet, err := models.NormalizeWalletAddress(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	h.gameEngine.ResetRound(wallet)

	c.JSON(http.StatusOK, gin.H{"success": true, "status": models.StatusIdle})
}

func (h *RoundHandler) ActiveRound(c *gin.Context) {
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

	round, ok := h.gameEngine.ActiveRound(wallet)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": true, "round": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "round": roundView(round)})
}

// GetVerificationData exposes the seeds a player needs to audit their rounds.
func (h *RoundHandler) GetVerificationData(c *gin.Context) {
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

	clientSeed, serverHash, nonce := h.gameEngine.VerificationData(wallet)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"clientSeed":   clientSeed,
			"serverHash":   serverHash,
			"currentNonce": nonce,
		},
	})
}

// VerifyRound regenerates a grid from disclosed seeds so the layout of a past
// round can be checked against what was shown.
func (h *RoundHandler) VerifyRound(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: serverSeed, clientSeed, mode",
			"details": err.Error(),
		})
		return
	}

	if !req.Mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mode"})
		return
	}

	grid := services.RegenerateGrid(req.ServerSeed, req.ClientSeed, req.Nonce, req.Mode)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"verification": gin.H{
			"serverSeedHash": services.HashServerSeed(req.ServerSeed),
			"clientSeed":     req.ClientSeed,
			"nonce":          req.Nonce,
			"mode":           req.Mode,
			"actualGrid":     grid,
		},
	})
}
