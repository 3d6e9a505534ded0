package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

func GenerateRoundID() string {
	return fmt.Sprintf("round_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateWithdrawalID() string {
	return fmt.Sprintf("wd_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// NormalizeWalletAddress validates an EVM address and lowercases it.
// The lowercased form is the account key everywhere.
func NormalizeWalletAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid wallet address: %q", address)
	}
	return strings.ToLower(address), nil
}

// ValidTransactionHash reports whether s looks like a 32-byte EVM tx hash.
func ValidTransactionHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// ValidAmount rejects non-positive, NaN and infinite amounts before any
// balance mutation is attempted.
func ValidAmount(amount float64) bool {
	return amount > 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}
