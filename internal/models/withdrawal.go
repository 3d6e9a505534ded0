package models

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

// Withdrawal is one withdrawal request. The balance is debited at request
// time; the admin processor later marks it completed (with the on-chain
// transaction hash) or rejected (with a reason, refunding the debit).
type Withdrawal struct {
	ID            string           `json:"id" redis:"id"`
	WalletAddress string           `json:"wallet_address" redis:"wallet_address"`
	Amount        float64          `json:"amount" redis:"amount"`
	Status        WithdrawalStatus `json:"status" redis:"status"`

	RequestedAt int64 `json:"requested_at" redis:"requested_at"`
	ProcessedAt int64 `json:"processed_at,omitempty" redis:"processed_at"`

	TransactionHash string `json:"transaction_hash,omitempty" redis:"transaction_hash"`
	RejectionReason string `json:"rejection_reason,omitempty" redis:"rejection_reason"`

	// Denormalized for the admin list view.
	Fid      int64  `json:"fid,omitempty" redis:"fid"`
	Username string `json:"username,omitempty" redis:"username"`
}

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected
}

// ValidAdminStatus reports whether an admin update may set this status.
func (s WithdrawalStatus) ValidAdminStatus() bool {
	switch s {
	case WithdrawalCompleted, WithdrawalRejected, WithdrawalProcessing:
		return true
	}
	return false
}

// WithdrawalUpdate is one item of an admin status update.
type WithdrawalUpdate struct {
	WithdrawalID    string           `json:"withdrawalId" binding:"required"`
	Status          WithdrawalStatus `json:"status" binding:"required"`
	TransactionHash string           `json:"transactionHash,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
}

// BatchUpdateResult reports per-item outcomes of a batch update; one bad
// record must not abort the rest.
type BatchUpdateResult struct {
	Successful []string           `json:"successful"`
	Failed     []BatchUpdateError `json:"failed"`
}

type BatchUpdateError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}
