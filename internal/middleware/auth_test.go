package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"treasure-tower-backend/internal/config"
	"treasure-tower-backend/internal/middleware"
	"treasure-tower-backend/internal/services"
)

func setupRateLimitRouter(t *testing.T) (*gin.Engine, *services.RedisService) {
	t.Helper()

	cfg := &config.Config{RedisAddr: "localhost:6379"}
	s, err := services.NewRedisService(cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RateLimitMiddleware(s))
	router.POST("/api/bet", func(c *gin.Context) {
		var req struct {
			WalletAddress string `json:"walletAddress" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": req.WalletAddress})
	})

	return router, s
}

func postBet(router *gin.Engine, wallet string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(gin.H{"walletAddress": wallet})
	req := httptest.NewRequest(http.MethodPost, "/api/bet", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// The limiter keys on the wallet inside the JSON body, so two wallets behind
// the same client IP get separate budgets, and the handler downstream still
// sees the body.
func TestRateLimitKeyedByBodyWallet(t *testing.T) {
	router, s := setupRateLimitRouter(t)
	ctx := context.Background()

	walletA := fmt.Sprintf("0x%040x", time.Now().UnixNano())
	walletB := fmt.Sprintf("0x%040x", time.Now().UnixNano()+1)
	t.Cleanup(func() {
		s.ClearRateLimit(ctx, walletA, "/api/bet")
		s.ClearRateLimit(ctx, walletB, "/api/bet")
	})

	for i := 0; i < services.DefaultRateLimitBets; i++ {
		w := postBet(router, walletA)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d (%s)", i+1, w.Code, w.Body.String())
		}
	}

	if w := postBet(router, walletA); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", w.Code)
	}

	// Same client IP, different wallet: not throttled.
	w := postBet(router, walletB)
	if w.Code != http.StatusOK {
		t.Fatalf("other wallet must have its own budget, got %d (%s)", w.Code, w.Body.String())
	}

	// The peek must leave the body readable for the handler's bind.
	var resp struct {
		Wallet string `json:"wallet"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Wallet != walletB {
		t.Errorf("handler did not see the body after the limiter: %s", w.Body.String())
	}
}

func TestRateLimitSkipsReads(t *testing.T) {
	router, _ := setupRateLimitRouter(t)

	router.GET("/api/balance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 200; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("GET must not be throttled, got %d on request %d", w.Code, i+1)
		}
	}
}
