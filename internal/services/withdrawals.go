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

	"treasure-tower-backend/internal/models"
)

// requestWithdrawalScript performs the cooldown check, balance debit and
// request creation as one atomic unit. Two concurrent submissions for the
// same wallet serialize here: the loser sees either the cooldown marker or
// the reduced balance.
//
// The cooldown marker holds "<requestedAtMs>:<withdrawalId>" and expires with
// the window. Only pending/completed requests own it; a rejection deletes it
// so the wallet can retry immediately.
var requestWithdrawalScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("user not found")
	end

	local acct = cjson.decode(data)
	local amount = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local cooldown = tonumber(ARGV[3])

	if (acct.balance or 0) < amount then
		return redis.error_reply("insufficient balance")
	end

	local last = redis.call("GET", KEYS[2])
	if last then
		local ts = tonumber(string.match(last, "^(%d+):"))
		if ts and now - ts < cooldown then
			return redis.error_reply("cooldown:" .. tostring(cooldown - (now - ts)))
		end
	end

	acct.balance = acct.balance - amount
	acct.total_withdrawn = (acct.total_withdrawn or 0) + amount
	acct.updated_at = now

	redis.call("SET", KEYS[1], cjson.encode(acct))
	redis.call("SET", KEYS[2], tostring(now) .. ":" .. ARGV[4], "PX", cooldown)
	redis.call("SET", KEYS[3], ARGV[5])
	redis.call("ZADD", KEYS[4], now, ARGV[4])
	redis.call("ZADD", KEYS[5], now, ARGV[4])

	return cjson.encode(acct)
`)

// RequestWithdrawal debits the balance and creates a pending request. The
// debit happens at request time so the same balance cannot be spent while
// the withdrawal is in flight.
func (s *RedisService) RequestWithdrawal(ctx context.Context, walletAddress string, amount float64, fid int64, username string) (*models.Withdrawal, *models.Account, error) {
	if !models.ValidAmount(amount) || amount < MinWithdrawalAmount {
		return nil, nil, ErrInvalidAmount
	}

	now := time.Now()
	withdrawal := &models.Withdrawal{
		ID:            models.GenerateWithdrawalID(),
		WalletAddress: walletAddress,
		Amount:        amount,
		Status:        models.WithdrawalPending,
		RequestedAt:   now.UnixMilli(),
		Fid:           fid,
		Username:      username,
	}

	payload, err := json.Marshal(withdrawal)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal withdrawal: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyAccount, walletAddress),
		fmt.Sprintf(KeyCooldown, walletAddress),
		fmt.Sprintf(KeyWithdrawal, withdrawal.ID),
		fmt.Sprintf(KeyWithdrawalStatus, models.WithdrawalPending),
		fmt.Sprintf(KeyWithdrawalWallet, walletAddress),
	}

	raw, err := requestWithdrawalScript.Run(ctx, s.client, keys,
		amount, now.UnixMilli(), WithdrawalCooldown.Milliseconds(), withdrawal.ID, payload,
	).Text()
	if err != nil {
		return nil, nil, mapScriptErr(err)
	}

	acct, err := decodeAccount(raw)
	if err != nil {
		return nil, nil, err
	}

	s.appendTransaction(ctx, &models.Transaction{
		ID:            models.GenerateTransactionID(),
		WalletAddress: walletAddress,
		Type:          models.TransactionTypeWithdraw,
		Amount:        -amount,
		BalanceAfter:  acct.Balance,
		Reference:     withdrawal.ID,
		Description:   fmt.Sprintf("Withdrawal request of %.4f", amount),
		CreatedAt:     now.Unix(),
	})

	log.WithFields(log.Fields{
		"wallet":        walletAddress,
		"amount":        amount,
		"withdrawal_id": withdrawal.ID,
		"new_balance":   acct.Balance,
	}).Info("withdrawal requested")

	return withdrawal, acct, nil
}

// updateWithdrawalScript moves a request between status indexes and, on
// rejection, refunds the debit and releases the cooldown marker in the same
// step. Terminal requests cannot transition again.
var updateWithdrawalScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("withdrawal not found")
	end

	local w = cjson.decode(data)
	if w.status == "completed" or w.status == "rejected" then
		return redis.error_reply("withdrawal already processed")
	end

	local status = ARGV[1]
	local now = tonumber(ARGV[4])
	local zsets = {
		pending = KEYS[4],
		processing = KEYS[5],
		completed = KEYS[6],
		rejected = KEYS[7],
	}

	redis.call("ZREM", zsets[w.status], w.id)
	w.status = status
	if status == "completed" or status == "rejected" then
		w.processed_at = now
	end
	if ARGV[2] ~= "" then
		w.transaction_hash = ARGV[2]
	end
	if ARGV[3] ~= "" then
		w.rejection_reason = ARGV[3]
	end
	redis.call("ZADD", zsets[status], w.requested_at, w.id)

	if status == "rejected" then
		local adata = redis.call("GET", KEYS[2])
		if adata then
			local acct = cjson.decode(adata)
			acct.balance = (acct.balance or 0) + w.amount
			acct.total_withdrawn = (acct.total_withdrawn or 0) - w.amount
			acct.updated_at = now
			redis.call("SET", KEYS[2], cjson.encode(acct))
		end
		local last = redis.call("GET", KEYS[3])
		if last and string.find(last, w.id, 1, true) then
			redis.call("DEL", KEYS[3])
		end
	end

	local updated = cjson.encode(w)
	redis.call("SET", KEYS[1], updated)

	return updated
`)

// UpdateWithdrawal applies one admin status update. Rejection refunds the
// debited amount as part of the same transition.
func (s *RedisService) UpdateWithdrawal(ctx context.Context, withdrawalID string, status models.WithdrawalStatus, transactionHash, rejectionReason string) (*models.Withdrawal, error) {
	if !status.ValidAdminStatus() {
		return nil, fmt.Errorf("invalid status %q: must be completed, rejected, or processing", status)
	}

	existing, err := s.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	keys := []string{
		fmt.Sprintf(KeyWithdrawal, withdrawalID),
		fmt.Sprintf(KeyAccount, existing.WalletAddress),
		fmt.Sprintf(KeyCooldown, existing.WalletAddress),
		fmt.Sprintf(KeyWithdrawalStatus, models.WithdrawalPending),
		fmt.Sprintf(KeyWithdrawalStatus, models.WithdrawalProcessing),
		fmt.Sprintf(KeyWithdrawalStatus, models.WithdrawalCompleted),
		fmt.Sprintf(KeyWithdrawalStatus, models.WithdrawalRejected),
	}

	raw, err := updateWithdrawalScript.Run(ctx, s.client, keys,
		string(status), transactionHash, rejectionReason, nowMillis(),
	).Text()
	if err != nil {
		return nil, mapScriptErr(err)
	}

	var updated models.Withdrawal
	if err := json.Unmarshal([]byte(raw), &updated); err != nil {
		return nil, fmt.Errorf("failed to unmarshal withdrawal: %v", err)
	}

	if status == models.WithdrawalRejected {
		if acct, aerr := s.GetAccount(ctx, updated.WalletAddress); aerr == nil && acct != nil {
			s.appendTransaction(ctx, &models.Transaction{
				ID:            models.GenerateTransactionID(),
				WalletAddress: updated.WalletAddress,
				Type:          models.TransactionTypeRefund,
				Amount:        updated.Amount,
				BalanceAfter:  acct.Balance,
				Reference:     updated.ID,
				Description:   fmt.Sprintf("Withdrawal rejected, %.4f refunded", updated.Amount),
				CreatedAt:     time.Now().Unix(),
			})
		}
	}

	log.WithFields(log.Fields{
		"withdrawal_id": withdrawalID,
		"status":        status,
		"tx_hash":       transactionHash,
	}).Info("withdrawal updated")

	return &updated, nil
}

// BatchUpdateWithdrawals applies each update independently; one bad record
// does not abort the rest.
func (s *RedisService) BatchUpdateWithdrawals(ctx context.Context, updates []models.WithdrawalUpdate) *models.BatchUpdateResult {
	result := &models.BatchUpdateResult{
		Successful: []string{},
		Failed:     []models.BatchUpdateError{},
	}

	for _, u := range updates {
		if _, err := s.UpdateWithdrawal(ctx, u.WithdrawalID, u.Status, u.TransactionHash, u.RejectionReason); err != nil {
			result.Failed = append(result.Failed, models.BatchUpdateError{
				ID:    u.WithdrawalID,
				Error: err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, u.WithdrawalID)
	}

	return result
}

func (s *RedisService) GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyWithdrawal, withdrawalID)).Result()
	if err == redis.Nil {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %v", err)
	}

	var w models.Withdrawal
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal withdrawal: %v", err)
	}
	return &w, nil
}

// ListWithdrawalsByStatus returns requests oldest-first for FIFO admin
// processing.
func (s *RedisService) ListWithdrawalsByStatus(ctx context.Context, status models.WithdrawalStatus, limit int64) ([]*models.Withdrawal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	key := fmt.Sprintf(KeyWithdrawalStatus, status)
	ids, err := s.client.ZRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %v", err)
	}

	return s.fetchWithdrawals(ctx, ids)
}

// ListWalletWithdrawals returns a wallet's requests newest-first.
func (s *RedisService) ListWalletWithdrawals(ctx context.Context, walletAddress string, limit int64) ([]*models.Withdrawal, error) {
	if limit <= 0 {
		limit = WithdrawalHistoryLimit
	}

	key := fmt.Sprintf(KeyWithdrawalWallet, walletAddress)
	ids, err := s.client.ZRevRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet withdrawals: %v", err)
	}

	return s.fetchWithdrawals(ctx, ids)
}

func (s *RedisService) fetchWithdrawals(ctx context.Context, ids []string) ([]*models.Withdrawal, error) {
	withdrawals := make([]*models.Withdrawal, 0, len(ids))
	for _, id := range ids {
		w, err := s.GetWithdrawal(ctx, id)
		if err != nil {
			continue
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, nil
}

// CooldownStatus reports whether a wallet may request a withdrawal now and,
// if not, how many whole hours remain.
func (s *RedisService) CooldownStatus(ctx context.Context, walletAddress string) (canWithdraw bool, hoursRemaining int, err error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyCooldown, walletAddress)).Result()
	if err == redis.Nil {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to check cooldown: %v", err)
	}

	parts := strings.SplitN(data, ":", 2)
	ts, perr := strconv.ParseInt(parts[0], 10, 64)
	if perr != nil {
		return true, 0, nil
	}

	elapsed := time.Since(time.UnixMilli(ts))
	if elapsed >= WithdrawalCooldown {
		return true, 0, nil
	}

	remaining := WithdrawalCooldown - elapsed
	return false, int(math.Ceil(remaining.Hours())), nil
}
