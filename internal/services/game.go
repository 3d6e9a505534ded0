package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"treasure-tower-backend/internal/models"
)

// GameEngine owns the server-side rounds: at most one per wallet. Every
// operation on a wallet's round runs under that wallet's lock, held across
// the status check, the round mutation and the settlement call, so two
// concurrent requests for the same wallet serialize instead of both seeing a
// playing round and settling twice. Callers only ever receive snapshots of
// the round, never the live object.
type GameEngine struct {
	redisService *RedisService
	serverSeed   string

	mu           sync.Mutex
	activeRounds map[string]*Round
	clientSeeds  map[string]string
	nonces       map[string]int64
	walletLocks  map[string]*sync.Mutex
}

func NewGameEngine(redisService *RedisService, serverSeed string) *GameEngine {
	return &GameEngine{
		redisService: redisService,
		serverSeed:   serverSeed,
		activeRounds: make(map[string]*Round),
		clientSeeds:  make(map[string]string),
		nonces:       make(map[string]int64),
		walletLocks:  make(map[string]*sync.Mutex),
	}
}

func (ge *GameEngine) ServerSeedHash() string {
	return HashServerSeed(ge.serverSeed)
}

// walletLock returns the lock serializing round operations for one wallet.
// ge.mu only guards the maps and is never held while waiting on a wallet
// lock.
func (ge *GameEngine) walletLock(walletAddress string) *sync.Mutex {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	l, ok := ge.walletLocks[walletAddress]
	if !ok {
		l = &sync.Mutex{}
		ge.walletLocks[walletAddress] = l
	}
	return l
}

func (ge *GameEngine) currentRound(walletAddress string) (*Round, bool) {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	round, ok := ge.activeRounds[walletAddress]
	return round, ok
}

// VerificationData returns what a player needs to verify their next round
// once the server seed is disclosed.
func (ge *GameEngine) VerificationData(walletAddress string) (clientSeed, serverHash string, nonce int64) {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	return ge.clientSeedLocked(walletAddress), ge.ServerSeedHash(), ge.nonces[walletAddress]
}

func (ge *GameEngine) clientSeedLocked(walletAddress string) string {
	seed, ok := ge.clientSeeds[walletAddress]
	if !ok {
		seed, _ = GenerateClientSeed()
		ge.clientSeeds[walletAddress] = seed
	}
	return seed
}

// StartRound debits the bet and only then creates the round. A wallet with a
// round still in the playing state must finish or reset it first; concurrent
// starts serialize on the wallet lock, so only one of them can debit.
func (ge *GameEngine) StartRound(ctx context.Context, walletAddress string, mode models.GameMode, betAmount float64) (*Round, *models.Account, error) {
	if !mode.Valid() {
		return nil, nil, ErrInvalidAmount
	}

	lock := ge.walletLock(walletAddress)
	lock.Lock()
	defer lock.Unlock()

	ge.mu.Lock()
	existing := ge.activeRounds[walletAddress]
	clientSeed := ge.clientSeedLocked(walletAddress)
	nonce := ge.nonces[walletAddress]
	ge.mu.Unlock()

	if existing != nil && existing.Status == models.StatusPlaying {
		return nil, nil, ErrRoundInProgress
	}

	// Debit happens-before the round exists.
	acct, err := ge.redisService.PlaceBet(ctx, walletAddress, betAmount)
	if err != nil {
		return nil, nil, err
	}

	round := NewRound(mode, betAmount, gridRand(ge.serverSeed, clientSeed, nonce))
	round.ClientSeed = clientSeed
	round.Nonce = nonce

	ge.mu.Lock()
	ge.activeRounds[walletAddress] = round
	ge.nonces[walletAddress] = nonce + 1
	ge.mu.Unlock()

	log.WithFields(log.Fields{
		"wallet":     walletAddress,
		"round_id":   round.ID,
		"mode":       mode,
		"bet_amount": betAmount,
	}).Info("round started")

	return round.clone(), acct, nil
}

// RevealOutcome is the engine-level result of one tile click, including the
// settlement when the climb reached the top. Round is a snapshot taken after
// the click.
type RevealOutcome struct {
	Result   RevealResult
	Round    *Round
	Account  *models.Account
	Winnings float64
	Settled  bool
}

// Reveal applies one tile click to the wallet's round. A win on the final
// row settles immediately; a trap forfeits the stake already debited, so no
// ledger call is made. When the win settlement fails the reveal is undone so
// the player can retry it: a won round that never credited must not become
// terminal.
func (ge *GameEngine) Reveal(ctx context.Context, walletAddress string, row, col int) (*RevealOutcome, error) {
	lock := ge.walletLock(walletAddress)
	lock.Lock()
	defer lock.Unlock()

	round, ok := ge.currentRound(walletAddress)
	if !ok {
		return nil, ErrRoundNotFound
	}

	prevRow, prevMultiplier, prevStatus := round.CurrentRow, round.Multiplier, round.Status
	result := round.ClickTile(row, col)
	outcome := &RevealOutcome{Result: result}

	if result.Revealed && result.Status == models.StatusWon {
		acct, winnings, err := ge.redisService.SettleWin(ctx, walletAddress, round.BetAmount, round.Multiplier)
		if err != nil {
			round.Grid[row][col] = models.TileHidden
			round.CurrentRow = prevRow
			round.Multiplier = prevMultiplier
			round.Status = prevStatus
			log.WithFields(log.Fields{
				"wallet":   walletAddress,
				"round_id": round.ID,
			}).WithError(err).Error("failed to settle won round")
			return nil, err
		}
		outcome.Account = acct
		outcome.Winnings = winnings
		outcome.Settled = true
	}

	outcome.Round = round.clone()
	return outcome, nil
}

// CashOut settles the wallet's round at its current multiplier. Once the
// round is not playing this is a no-op reporting Settled=false.
func (ge *GameEngine) CashOut(ctx context.Context, walletAddress string) (*RevealOutcome, error) {
	lock := ge.walletLock(walletAddress)
	lock.Lock()
	defer lock.Unlock()

	round, ok := ge.currentRound(walletAddress)
	if !ok {
		return nil, ErrRoundNotFound
	}

	outcome := &RevealOutcome{
		Result: RevealResult{Multiplier: round.Multiplier, Status: round.Status},
	}

	if !round.CashOut() {
		outcome.Round = round.clone()
		return outcome, nil
	}

	acct, winnings, err := ge.redisService.SettleWin(ctx, walletAddress, round.BetAmount, round.Multiplier)
	if err != nil {
		// Undo the transition so the player can retry the cashout.
		round.Status = models.StatusPlaying
		return nil, err
	}

	outcome.Result.Status = round.Status
	outcome.Account = acct
	outcome.Winnings = winnings
	outcome.Settled = true
	outcome.Round = round.clone()

	log.WithFields(log.Fields{
		"wallet":     walletAddress,
		"round_id":   round.ID,
		"multiplier": round.Multiplier,
		"winnings":   winnings,
	}).Info("round cashed out")

	return outcome, nil
}

// ResetRound discards the wallet's round unconditionally. A playing round is
// forfeited: the debit stands and nothing is credited.
func (ge *GameEngine) ResetRound(walletAddress string) {
	lock := ge.walletLock(walletAddress)
	lock.Lock()
	defer lock.Unlock()

	ge.mu.Lock()
	defer ge.mu.Unlock()
	if round, ok := ge.activeRounds[walletAddress]; ok {
		round.Reset()
		delete(ge.activeRounds, walletAddress)
	}
}

// ActiveRound returns a snapshot of the wallet's round, if any.
func (ge *GameEngine) ActiveRound(walletAddress string) (*Round, bool) {
	lock := ge.walletLock(walletAddress)
	lock.Lock()
	defer lock.Unlock()

	round, ok := ge.currentRound(walletAddress)
	if !ok {
		return nil, false
	}
	return round.clone(), true
}

// CleanupStaleRounds drops rounds with no activity for maxAge. An abandoned
// playing round forfeits its stake, consistent with a trap loss.
func (ge *GameEngine) CleanupStaleRounds(maxAge time.Duration) {
	ge.mu.Lock()
	wallets := make([]string, 0, len(ge.activeRounds))
	for wallet := range ge.activeRounds {
		wallets = append(wallets, wallet)
	}
	ge.mu.Unlock()

	for _, wallet := range wallets {
		lock := ge.walletLock(wallet)
		lock.Lock()

		ge.mu.Lock()
		round, ok := ge.activeRounds[wallet]
		if ok && time.Since(round.LastAction) > maxAge {
			if round.Status == models.StatusPlaying {
				log.WithFields(log.Fields{
					"wallet":   wallet,
					"round_id": round.ID,
				}).Info("forfeiting abandoned round")
			}
			delete(ge.activeRounds, wallet)
		}
		ge.mu.Unlock()

		lock.Unlock()
	}
}
