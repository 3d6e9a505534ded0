package models

type TransactionType string

const (
	TransactionTypeBet      TransactionType = "bet"
	TransactionTypeWin      TransactionType = "win"
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeRefund   TransactionType = "refund"
)

// Transaction is an audit record written alongside every balance mutation.
type Transaction struct {
	ID            string          `json:"id" redis:"id"`
	WalletAddress string          `json:"wallet_address" redis:"wallet_address"`
	Type          TransactionType `json:"type" redis:"type"`
	Amount        float64         `json:"amount" redis:"amount"`
	BalanceAfter  float64         `json:"balance_after" redis:"balance_after"`
	RoundID       string          `json:"round_id,omitempty" redis:"round_id"`
	Reference     string          `json:"reference,omitempty" redis:"reference"` // tx hash or withdrawal id
	Description   string          `json:"description" redis:"description"`
	CreatedAt     int64           `json:"created_at" redis:"created_at"`
}
