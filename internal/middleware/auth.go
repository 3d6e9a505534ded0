package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/services"
)

// AdminAuthMiddleware guards the admin withdrawal endpoints with a static
// bearer token compared in constant time.
func AdminAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if apiKey == "" || token == authHeader ||
			subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Invalid API key."})
			c.Abort()
			return
		}

		c.Next()
	}
}

// walletFromBody peeks walletAddress out of a JSON body, restoring the body
// so the handler's own bind still sees it.
func walletFromBody(c *gin.Context) string {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(data))

	var payload struct {
		WalletAddress string `json:"walletAddress"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return ""
	}
	return strings.ToLower(payload.WalletAddress)
}

// RateLimitMiddleware throttles mutating game and withdrawal calls per
// wallet. Reads are not limited.
func RateLimitMiddleware(redisService *services.RedisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var limit int
		window := time.Minute

		switch {
		case strings.Contains(path, "/bet"), strings.Contains(path, "/rounds/start"):
			limit = services.DefaultRateLimitBets
		case strings.Contains(path, "/rounds/reveal"):
			limit = services.DefaultRateLimitReveals
		case strings.Contains(path, "/cashout"):
			limit = services.DefaultRateLimitCashouts
		case strings.Contains(path, "/withdraw"):
			limit = services.DefaultRateLimitWithdraws
		default:
			c.Next()
			return
		}

		// Throttled routes are POSTs carrying the wallet in the JSON body;
		// fall back to the client IP when there is none.
		wallet := walletFromBody(c)
		if wallet == "" {
			wallet = c.ClientIP()
		}

		allowed, err := redisService.CheckRateLimit(c.Request.Context(), wallet, path, limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CORSMiddleware mirrors the permissive policy the miniapp frontend expects.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
