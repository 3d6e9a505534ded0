package models

// API payloads. Amount fields arrive as JSON numbers; wallet addresses are
// normalized by the handlers before any service call.

type BetRequest struct {
	WalletAddress string  `json:"walletAddress" binding:"required"`
	BetAmount     float64 `json:"betAmount" binding:"required"`
}

type CashoutRequest struct {
	WalletAddress string  `json:"walletAddress" binding:"required"`
	BetAmount     float64 `json:"betAmount" binding:"required"`
	Multiplier    float64 `json:"multiplier" binding:"required"`
}

type DepositRequest struct {
	Fid             int64   `json:"fid" binding:"required"`
	Username        string  `json:"username" binding:"required"`
	WalletAddress   string  `json:"walletAddress" binding:"required"`
	Amount          float64 `json:"amount" binding:"required"`
	TransactionHash string  `json:"transactionHash" binding:"required"`
}

type WithdrawRequest struct {
	WalletAddress string  `json:"walletAddress" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	Fid           int64   `json:"fid"`
	Username      string  `json:"username"`
}

type StartRoundRequest struct {
	WalletAddress string   `json:"walletAddress" binding:"required"`
	Mode          GameMode `json:"mode" binding:"required"`
	BetAmount     float64  `json:"betAmount" binding:"required"`
}

type RevealRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Row           int    `json:"row" binding:"min=0"`
	Col           int    `json:"col" binding:"min=0"`
}

type RoundActionRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

type VerifyRequest struct {
	ServerSeed string   `json:"serverSeed" binding:"required"`
	ClientSeed string   `json:"clientSeed" binding:"required"`
	Nonce      int64    `json:"nonce"`
	Mode       GameMode `json:"mode" binding:"required"`
}
