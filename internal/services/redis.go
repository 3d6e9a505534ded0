package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"treasure-tower-backend/internal/config"
	"treasure-tower-backend/internal/models"
)

// RedisService owns every persisted aggregate: accounts, withdrawal requests
// and the transaction trail. It is the only component allowed to mutate a
// balance, and every mutation runs as a single Lua script so concurrent
// operations on the same wallet serialize inside redis instead of racing a
// read-check-write cycle in Go.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// mapScriptErr translates Lua error replies into the service error taxonomy.
func mapScriptErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "user not found"):
		return ErrUserNotFound
	case strings.Contains(msg, "insufficient balance"):
		return ErrInsufficientBalance
	case strings.Contains(msg, "duplicate deposit"):
		return ErrDuplicateDeposit
	case strings.Contains(msg, "withdrawal not found"):
		return ErrWithdrawalNotFound
	}
	if i := strings.Index(msg, "cooldown:"); i >= 0 {
		remainingMs, perr := strconv.ParseInt(msg[i+len("cooldown:"):], 10, 64)
		if perr == nil {
			hours := int(math.Ceil(float64(remainingMs) / float64(time.Hour/time.Millisecond)))
			return &CooldownError{HoursRemaining: hours}
		}
	}
	return err
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// placeBetScript debits the bet where balance >= amount, in one atomic step.
var placeBetScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("user not found")
	end

	local acct = cjson.decode(data)
	local amount = tonumber(ARGV[1])

	if (acct.balance or 0) < amount then
		return redis.error_reply("insufficient balance")
	end

	acct.balance = acct.balance - amount
	acct.total_bets = (acct.total_bets or 0) + amount
	acct.updated_at = tonumber(ARGV[2])

	local updated = cjson.encode(acct)
	redis.call("SET", KEYS[1], updated)

	return updated
`)

// PlaceBet debits betAmount from the account. The caller must not start a
// round unless this returns successfully.
func (s *RedisService) PlaceBet(ctx context.Context, walletAddress string, betAmount float64) (*models.Account, error) {
	if !models.ValidAmount(betAmount) {
		return nil, ErrInvalidAmount
	}

	key := fmt.Sprintf(KeyAccount, walletAddress)
	raw, err := placeBetScript.Run(ctx, s.client, []string{key}, betAmount, nowMillis()).Text()
	if err != nil {
		return nil, mapScriptErr(err)
	}

	acct, err := decodeAccount(raw)
	if err != nil {
		return nil, err
	}

	s.appendTransaction(ctx, &models.Transaction{
		ID:            models.GenerateTransactionID(),
		WalletAddress: walletAddress,
		Type:          models.TransactionTypeBet,
		Amount:        -betAmount,
		BalanceAfter:  acct.Balance,
		Description:   fmt.Sprintf("Placed bet of %.4f", betAmount),
		CreatedAt:     time.Now().Unix(),
	})

	log.WithFields(log.Fields{
		"wallet":      walletAddress,
		"bet_amount":  betAmount,
		"new_balance": acct.Balance,
	}).Info("bet placed")

	return acct, nil
}

// settleWinScript credits bet*multiplier atomically.
var settleWinScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("user not found")
	end

	local acct = cjson.decode(data)
	local winnings = tonumber(ARGV[1]) * tonumber(ARGV[2])

	acct.balance = (acct.balance or 0) + winnings
	acct.total_winnings = (acct.total_winnings or 0) + winnings
	acct.updated_at = tonumber(ARGV[3])

	local updated = cjson.encode(acct)
	redis.call("SET", KEYS[1], updated)

	return updated
`)

// SettleWin credits the winnings for a won or cashed-out round. Trusted to be
// called at most once per round.
func (s *RedisService) SettleWin(ctx context.Context, walletAddress string, betAmount, multiplier float64) (*models.Account, float64, error) {
	if !models.ValidAmount(betAmount) || multiplier < 1 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, 0, ErrInvalidAmount
	}

	key := fmt.Sprintf(KeyAccount, walletAddress)
	raw, err := settleWinScript.Run(ctx, s.client, []string{key}, betAmount, multiplier, nowMillis()).Text()
	if err != nil {
		return nil, 0, mapScriptErr(err)
	}

	acct, err := decodeAccount(raw)
	if err != nil {
		return nil, 0, err
	}

	winnings := betAmount * multiplier

	s.appendTransaction(ctx, &models.Transaction{
		ID:            models.GenerateTransactionID(),
		WalletAddress: walletAddress,
		Type:          models.TransactionTypeWin,
		Amount:        winnings,
		BalanceAfter:  acct.Balance,
		Description:   fmt.Sprintf("Won %.4f (%.4fx on %.4f)", winnings, multiplier, betAmount),
		CreatedAt:     time.Now().Unix(),
	})

	log.WithFields(log.Fields{
		"wallet":      walletAddress,
		"bet_amount":  betAmount,
		"multiplier":  multiplier,
		"winnings":    winnings,
		"new_balance": acct.Balance,
	}).Info("win settled")

	return acct, winnings, nil
}

// depositScript claims the transaction hash with SETNX before touching the
// account, so webhook retries and double deliveries credit exactly once.
var depositScript = redis.NewScript(`
	if redis.call("SETNX", KEYS[2], ARGV[6]) == 0 then
		return redis.error_reply("duplicate deposit")
	end

	local amount = tonumber(ARGV[1])
	local now = tonumber(ARGV[5])
	local data = redis.call("GET", KEYS[1])
	local acct

	if not data then
		acct = {
			wallet_address = ARGV[6],
			username = ARGV[2],
			fid = tonumber(ARGV[3]),
			balance = amount,
			total_deposited = amount,
			total_withdrawn = 0,
			total_bets = 0,
			total_winnings = 0,
			last_transaction_hash = ARGV[4],
			created_at = now,
			updated_at = now,
		}
	else
		acct = cjson.decode(data)
		acct.balance = (acct.balance or 0) + amount
		acct.total_deposited = (acct.total_deposited or 0) + amount
		acct.username = ARGV[2]
		acct.fid = tonumber(ARGV[3])
		acct.last_transaction_hash = ARGV[4]
		acct.updated_at = now
	end

	local updated = cjson.encode(acct)
	redis.call("SET", KEYS[1], updated)

	return updated
`)

// RecordDeposit upserts the account for an observed on-chain deposit,
// idempotent per transaction hash.
func (s *RedisService) RecordDeposit(ctx context.Context, walletAddress, username string, fid int64, amount float64, transactionHash string) (*models.Account, error) {
	if !models.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	accountKey := fmt.Sprintf(KeyAccount, walletAddress)
	dedupeKey := fmt.Sprintf(KeyDepositTx, transactionHash)

	raw, err := depositScript.Run(ctx, s.client,
		[]string{accountKey, dedupeKey},
		amount, username, fid, transactionHash, nowMillis(), walletAddress,
	).Text()
	if err != nil {
		return nil, mapScriptErr(err)
	}

	acct, err := decodeAccount(raw)
	if err != nil {
		return nil, err
	}

	s.appendTransaction(ctx, &models.Transaction{
		ID:            models.GenerateTransactionID(),
		WalletAddress: walletAddress,
		Type:          models.TransactionTypeDeposit,
		Amount:        amount,
		BalanceAfter:  acct.Balance,
		Reference:     transactionHash,
		Description:   fmt.Sprintf("Deposit of %.4f", amount),
		CreatedAt:     time.Now().Unix(),
	})

	log.WithFields(log.Fields{
		"wallet":      walletAddress,
		"amount":      amount,
		"tx_hash":     transactionHash,
		"new_balance": acct.Balance,
	}).Info("deposit recorded")

	return acct, nil
}

// GetAccount returns nil (not an error) for an unknown wallet.
func (s *RedisService) GetAccount(ctx context.Context, walletAddress string) (*models.Account, error) {
	key := fmt.Sprintf(KeyAccount, walletAddress)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %v", err)
	}

	return decodeAccount(data)
}

// GetBalance returns a zero snapshot for unknown wallets: a never-deposited
// wallet is a valid empty state, not an error.
func (s *RedisService) GetBalance(ctx context.Context, walletAddress string) (*models.BalanceSnapshot, error) {
	acct, err := s.GetAccount(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return &models.BalanceSnapshot{WalletAddress: walletAddress}, nil
	}
	return acct.Snapshot(), nil
}

func decodeAccount(data string) (*models.Account, error) {
	var acct models.Account
	if err := json.Unmarshal([]byte(data), &acct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %v", err)
	}
	return &acct, nil
}

func (s *RedisService) appendTransaction(ctx context.Context, tx *models.Transaction) {
	data, err := json.Marshal(tx)
	if err != nil {
		log.WithError(err).Warn("failed to marshal transaction record")
		return
	}

	txKey := fmt.Sprintf(KeyTransaction, tx.ID)
	if err := s.client.Set(ctx, txKey, data, TTLTransaction).Err(); err != nil {
		log.WithError(err).Warn("failed to save transaction record")
		return
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.WalletAddress)
	s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  float64(tx.CreatedAt),
		Member: tx.ID,
	})

	// Keep only the last 100 per wallet.
	s.client.ZRemRangeByRank(ctx, userTxKey, 0, -101)
}

func (s *RedisService) GetTransactions(ctx context.Context, walletAddress string, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, walletAddress)
	txIDs, err := s.client.ZRevRange(ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ids: %v", err)
	}

	transactions := make([]*models.Transaction, 0, len(txIDs))
	for _, txID := range txIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, txID)).Result()
		if err != nil {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, walletAddress, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, walletAddress, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Test helpers.

func (s *RedisService) DeleteAccount(ctx context.Context, walletAddress string) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyAccount, walletAddress),
		fmt.Sprintf(KeyUserTransactions, walletAddress),
		fmt.Sprintf(KeyCooldown, walletAddress),
		fmt.Sprintf(KeyWithdrawalWallet, walletAddress),
	).Err()
}

func (s *RedisService) DeleteDepositMarker(ctx context.Context, transactionHash string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyDepositTx, transactionHash)).Err()
}

func (s *RedisService) ClearRateLimit(ctx context.Context, walletAddress, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, walletAddress, action)).Err()
}
