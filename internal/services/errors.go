package services

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateDeposit    = errors.New("deposit already recorded")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrRoundNotFound       = errors.New("no active round")
	ErrRoundInProgress     = errors.New("round already in progress")
)

// CooldownError is returned when a wallet already has a pending or completed
// withdrawal inside the 24-hour window. HoursRemaining is surfaced to the
// caller so the UI can display the wait.
type CooldownError struct {
	HoursRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("only one withdrawal per 24 hours, wait %d more hour(s)", e.HoursRemaining)
}
