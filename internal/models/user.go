package models

// Account is the authoritative balance record for one wallet address.
// The wallet address (lowercased) is the unique key; fid and username are
// Farcaster identity fields carried for display and admin tooling.
type Account struct {
	WalletAddress string `json:"wallet_address" redis:"wallet_address"`
	Username      string `json:"username" redis:"username"`
	Fid           int64  `json:"fid" redis:"fid"`

	Balance        float64 `json:"balance" redis:"balance"`
	TotalDeposited float64 `json:"total_deposited" redis:"total_deposited"`
	TotalWithdrawn float64 `json:"total_withdrawn" redis:"total_withdrawn"`
	TotalBets      float64 `json:"total_bets" redis:"total_bets"`
	TotalWinnings  float64 `json:"total_winnings" redis:"total_winnings"`

	LastTransactionHash string `json:"last_transaction_hash,omitempty" redis:"last_transaction_hash"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

// BalanceSnapshot is the read-only view returned for balance queries.
// Unknown wallets get a zero snapshot rather than an error.
type BalanceSnapshot struct {
	WalletAddress  string  `json:"wallet_address"`
	Balance        float64 `json:"balance"`
	TotalDeposited float64 `json:"total_deposited"`
	TotalWithdrawn float64 `json:"total_withdrawn"`
	TotalBets      float64 `json:"total_bets"`
	TotalWinnings  float64 `json:"total_winnings"`
}

func (a *Account) Snapshot() *BalanceSnapshot {
	return &BalanceSnapshot{
		WalletAddress:  a.WalletAddress,
		Balance:        a.Balance,
		TotalDeposited: a.TotalDeposited,
		TotalWithdrawn: a.TotalWithdrawn,
		TotalBets:      a.TotalBets,
		TotalWinnings:  a.TotalWinnings,
	}
}
