package services

import "time"

const (
	KeyAccount          = "account:%s"       // wallet address -> account JSON
	KeyDepositTx        = "deposit:tx:%s"    // transaction hash -> wallet (idempotency marker)
	KeyWithdrawal       = "withdrawal:%s"    // withdrawal id -> withdrawal JSON
	KeyWithdrawalStatus = "withdrawals:%s"   // status -> ZSET of ids scored by requestedAt
	KeyWithdrawalWallet = "withdrawals:w:%s" // wallet -> ZSET of ids scored by requestedAt
	KeyCooldown         = "withdraw:last:%s" // wallet -> "<requestedAtMs>:<withdrawalId>"
	KeyTransaction      = "transaction:%s"
	KeyUserTransactions = "account:%s:transactions"
	KeyRateLimit        = "ratelimit:%s:%s" // wallet, action

	TTLDepositTx   = 0 // idempotency markers never expire
	TTLTransaction = 30 * 24 * time.Hour

	// Withdrawal policy constants. MinWithdrawalAmount is in MON.
	MinWithdrawalAmount = 0.1
	WithdrawalCooldown  = 24 * time.Hour

	// User-facing withdrawal history length.
	WithdrawalHistoryLimit = 10

	DefaultRateLimitBets      = 30  // bets per minute
	DefaultRateLimitReveals   = 120 // tile reveals per minute
	DefaultRateLimitCashouts  = 60  // cashouts per minute
	DefaultRateLimitWithdraws = 10  // withdrawal submissions per minute
)
