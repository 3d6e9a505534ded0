package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/services"
)

// serviceError maps the service error taxonomy onto HTTP statuses. Validation
// failures never mutate state, so every non-200 here means nothing changed.
func serviceError(c *gin.Context, err error) {
	var cooldown *services.CooldownError
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
	case errors.Is(err, services.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, services.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Withdrawal not found"})
	case errors.Is(err, services.ErrRoundNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No active round"})
	case errors.Is(err, services.ErrRoundInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A round is already in progress"})
	case errors.As(err, &cooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          cooldown.Error(),
			"hoursRemaining": cooldown.HoursRemaining,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}
