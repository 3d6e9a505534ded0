package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"treasure-tower-backend/internal/models"
)

const testServerSeed = "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

func setupTestEngine(t *testing.T) (*GameEngine, *RedisService) {
	t.Helper()
	s := setupTestService(t)
	t.Cleanup(func() { s.Close() })
	return NewGameEngine(s, testServerSeed), s
}

// engineSafeCol and engineTrapCol read the hidden layout of the active row.
func engineSafeCol(r *Round) int {
	for col, tile := range r.ActualGrid[r.ActiveRow()] {
		if tile == models.TileSafe {
			return col
		}
	}
	return -1
}

func engineTrapCol(r *Round) int {
	for col, tile := range r.ActualGrid[r.ActiveRow()] {
		if tile == models.TileTrap {
			return col
		}
	}
	return -1
}

// climb reveals safe tiles n times, returning the latest round snapshot.
func climb(t *testing.T, engine *GameEngine, wallet string, round *Round, n int) *Round {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		outcome, err := engine.Reveal(ctx, wallet, round.ActiveRow(), engineSafeCol(round))
		if err != nil {
			t.Fatalf("reveal %d failed: %v", i, err)
		}
		round = outcome.Round
	}
	return round
}

func TestStartRoundDebitsBet(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	round, acct, err := engine.StartRound(ctx, wallet, models.ModeEasy, 2.0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !approxEqual(acct.Balance, 8.0) {
		t.Errorf("expected balance 8.0 after debit, got %f", acct.Balance)
	}
	if round.Status != models.StatusPlaying || round.Multiplier != 1 {
		t.Errorf("fresh round should be playing at 1x, got %s/%f", round.Status, round.Multiplier)
	}

	if _, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 1.0); !errors.Is(err, ErrRoundInProgress) {
		t.Errorf("expected ErrRoundInProgress for a second start, got %v", err)
	}

	// The rejected start must not have debited.
	snapshot, _ := s.GetBalance(ctx, wallet)
	if !approxEqual(snapshot.Balance, 8.0) {
		t.Errorf("rejected start mutated balance: %f", snapshot.Balance)
	}

	engine.ResetRound(wallet)
}

func TestStartRoundInsufficientBalance(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 1.0)

	if _, _, err := engine.StartRound(ctx, wallet, models.ModeHard, 5.0); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// No round may exist after a failed debit.
	if _, ok := engine.ActiveRound(wallet); ok {
		t.Error("failed start must not leave a round behind")
	}
}

func TestConcurrentStartRoundsSingleDebit(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	const goroutines = 5

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 1.0); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one start to win, got %d", successes)
	}

	snapshot, _ := s.GetBalance(ctx, wallet)
	if !approxEqual(snapshot.Balance, 9.0) {
		t.Errorf("expected exactly one debit (balance 9.0), got %f", snapshot.Balance)
	}

	engine.ResetRound(wallet)
}

func TestFullClimbSettlesWin(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	cfg := models.ModeEasy.Config()
	round, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	round = climb(t, engine, wallet, round, cfg.Rows-1)
	outcome, err := engine.Reveal(ctx, wallet, round.ActiveRow(), engineSafeCol(round))
	if err != nil {
		t.Fatalf("final reveal failed: %v", err)
	}

	if !outcome.Settled || outcome.Round.Status != models.StatusWon {
		t.Fatalf("expected a settled win at the top, got settled=%v status=%s", outcome.Settled, outcome.Round.Status)
	}

	expectedWinnings := 2.0 * math.Pow(cfg.MultiplierStep, float64(cfg.Rows))
	if math.Abs(outcome.Winnings-expectedWinnings) > 1e-6 {
		t.Errorf("expected winnings %f, got %f", expectedWinnings, outcome.Winnings)
	}

	// Started with 10, staked 2, won the full ladder.
	expectedBalance := 8.0 + expectedWinnings
	if math.Abs(outcome.Account.Balance-expectedBalance) > 1e-6 {
		t.Errorf("expected balance %f, got %f", expectedBalance, outcome.Account.Balance)
	}

	engine.ResetRound(wallet)
}

func TestTrapForfeitsStake(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 5.0)

	round, _, err := engine.StartRound(ctx, wallet, models.ModeHard, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := engine.Reveal(ctx, wallet, round.ActiveRow(), engineTrapCol(round))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Settled {
		t.Error("a lost round must not settle anything")
	}
	if outcome.Round.Status != models.StatusLost {
		t.Errorf("expected lost, got %s", outcome.Round.Status)
	}

	// Stake already debited at start; the loss changes nothing further.
	snapshot, _ := s.GetBalance(ctx, wallet)
	if !approxEqual(snapshot.Balance, 4.0) {
		t.Errorf("expected balance 4.0 after loss, got %f", snapshot.Balance)
	}

	// Further reveals on the dead round are inert.
	outcome, err = engine.Reveal(ctx, wallet, round.ActiveRow(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Result.Revealed {
		t.Error("reveal on a terminal round must be ignored")
	}

	engine.ResetRound(wallet)
}

func TestMidClimbCashOut(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	cfg := models.ModeMedium.Config()
	round, _, err := engine.StartRound(ctx, wallet, models.ModeMedium, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	climb(t, engine, wallet, round, 3)

	outcome, err := engine.CashOut(ctx, wallet)
	if err != nil {
		t.Fatalf("cashout failed: %v", err)
	}
	if !outcome.Settled || outcome.Round.Status != models.StatusCashedOut {
		t.Fatalf("expected settled cashout, got settled=%v status=%s", outcome.Settled, outcome.Round.Status)
	}

	expectedWinnings := 2.0 * math.Pow(cfg.MultiplierStep, 3)
	if math.Abs(outcome.Winnings-expectedWinnings) > 1e-6 {
		t.Errorf("expected winnings %f, got %f", expectedWinnings, outcome.Winnings)
	}

	// A second cashout settles nothing.
	again, err := engine.CashOut(ctx, wallet)
	if err != nil {
		t.Fatal(err)
	}
	if again.Settled {
		t.Error("double cashout must be a no-op")
	}

	snapshot, _ := s.GetBalance(ctx, wallet)
	if math.Abs(snapshot.Balance-(8.0+expectedWinnings)) > 1e-6 {
		t.Errorf("double cashout changed the balance: %f", snapshot.Balance)
	}

	engine.ResetRound(wallet)
}

func TestConcurrentCashOutsSettleOnce(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	cfg := models.ModeMedium.Config()
	round, _, err := engine.StartRound(ctx, wallet, models.ModeMedium, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	climb(t, engine, wallet, round, 2)

	const goroutines = 5

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := engine.CashOut(ctx, wallet)
			if err == nil && outcome.Settled {
				mu.Lock()
				settled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if settled != 1 {
		t.Fatalf("expected exactly one settlement, got %d", settled)
	}

	expectedWinnings := 2.0 * math.Pow(cfg.MultiplierStep, 2)
	snapshot, _ := s.GetBalance(ctx, wallet)
	if math.Abs(snapshot.Balance-(8.0+expectedWinnings)) > 1e-6 {
		t.Errorf("expected single credit (balance %f), got %f", 8.0+expectedWinnings, snapshot.Balance)
	}

	engine.ResetRound(wallet)
}

func TestFinalRevealAndCashOutSettleOnce(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	cfg := models.ModeEasy.Config()
	round, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	round = climb(t, engine, wallet, round, cfg.Rows-1)

	finalRow := round.ActiveRow()
	finalCol := engineSafeCol(round)

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	wg.Add(2)
	go func() {
		defer wg.Done()
		if outcome, err := engine.Reveal(ctx, wallet, finalRow, finalCol); err == nil && outcome.Settled {
			mu.Lock()
			settled++
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		if outcome, err := engine.CashOut(ctx, wallet); err == nil && outcome.Settled {
			mu.Lock()
			settled++
			mu.Unlock()
		}
	}()
	wg.Wait()

	// Whichever path settled, it must have settled exactly once: the other
	// must have seen a terminal round.
	if settled != 1 {
		t.Fatalf("expected exactly one settlement, got %d", settled)
	}

	acct, err := s.GetAccount(ctx, wallet)
	if err != nil {
		t.Fatal(err)
	}

	winAtTop := 2.0 * math.Pow(cfg.MultiplierStep, float64(cfg.Rows))
	cashedBelow := 2.0 * math.Pow(cfg.MultiplierStep, float64(cfg.Rows-1))
	if math.Abs(acct.TotalWinnings-winAtTop) > 1e-6 && math.Abs(acct.TotalWinnings-cashedBelow) > 1e-6 {
		t.Errorf("totalWinnings %f matches neither the win (%f) nor the cashout (%f)",
			acct.TotalWinnings, winAtTop, cashedBelow)
	}

	expected := acct.TotalDeposited - acct.TotalWithdrawn - acct.TotalBets + acct.TotalWinnings
	if math.Abs(acct.Balance-expected) > 1e-6 {
		t.Errorf("conservation violated: balance %f, expected %f", acct.Balance, expected)
	}

	engine.ResetRound(wallet)
}

func TestWonRoundSettleFailureRetries(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	cfg := models.ModeEasy.Config()
	round, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	round = climb(t, engine, wallet, round, cfg.Rows-1)

	finalRow := round.ActiveRow()
	finalCol := engineSafeCol(round)

	// Make the credit fail underneath the winning reveal.
	if err := s.DeleteAccount(ctx, wallet); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Reveal(ctx, wallet, finalRow, finalCol); err == nil {
		t.Fatal("expected the reveal to surface the settlement failure")
	}

	// The reveal must have been undone: still playing, same row, tile hidden.
	current, ok := engine.ActiveRound(wallet)
	if !ok {
		t.Fatal("round must survive a failed settlement")
	}
	if current.Status != models.StatusPlaying {
		t.Fatalf("expected playing after failed settlement, got %s", current.Status)
	}
	if current.ActiveRow() != finalRow {
		t.Errorf("expected the final row to still be active, got %d", current.ActiveRow())
	}
	if current.Grid[finalRow][finalCol] != models.TileHidden {
		t.Error("failed reveal must re-hide the tile")
	}
	expectedMultiplier := math.Pow(cfg.MultiplierStep, float64(cfg.Rows-1))
	if math.Abs(current.Multiplier-expectedMultiplier) > 1e-9 {
		t.Errorf("expected multiplier %f preserved, got %f", expectedMultiplier, current.Multiplier)
	}

	// Once the ledger is reachable again the same reveal succeeds.
	hash := testTxHash()
	if _, err := s.RecordDeposit(ctx, wallet, "tester", 777, 10.0, hash); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.DeleteDepositMarker(ctx, hash) })

	outcome, err := engine.Reveal(ctx, wallet, finalRow, finalCol)
	if err != nil {
		t.Fatalf("retried reveal failed: %v", err)
	}
	if !outcome.Settled || outcome.Round.Status != models.StatusWon {
		t.Fatalf("expected settled win on retry, got settled=%v status=%s", outcome.Settled, outcome.Round.Status)
	}

	expectedWinnings := 2.0 * math.Pow(cfg.MultiplierStep, float64(cfg.Rows))
	if math.Abs(outcome.Winnings-expectedWinnings) > 1e-6 {
		t.Errorf("expected winnings %f, got %f", expectedWinnings, outcome.Winnings)
	}

	engine.ResetRound(wallet)
}

func TestCashOutSettleFailureRetries(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 10.0)

	round, _, err := engine.StartRound(ctx, wallet, models.ModeMedium, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	climb(t, engine, wallet, round, 2)

	if err := s.DeleteAccount(ctx, wallet); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.CashOut(ctx, wallet); err == nil {
		t.Fatal("expected the cashout to surface the settlement failure")
	}

	current, ok := engine.ActiveRound(wallet)
	if !ok || current.Status != models.StatusPlaying {
		t.Fatal("round must return to playing after a failed cashout settlement")
	}

	hash := testTxHash()
	if _, err := s.RecordDeposit(ctx, wallet, "tester", 777, 10.0, hash); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.DeleteDepositMarker(ctx, hash) })

	outcome, err := engine.CashOut(ctx, wallet)
	if err != nil {
		t.Fatalf("retried cashout failed: %v", err)
	}
	if !outcome.Settled {
		t.Error("retried cashout must settle")
	}

	engine.ResetRound(wallet)
}

func TestResetRoundForfeits(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 5.0)

	if _, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 1.0); err != nil {
		t.Fatal(err)
	}

	engine.ResetRound(wallet)

	if _, ok := engine.ActiveRound(wallet); ok {
		t.Error("reset must discard the round")
	}

	// The stake stays forfeited and a fresh round can start.
	snapshot, _ := s.GetBalance(ctx, wallet)
	if !approxEqual(snapshot.Balance, 4.0) {
		t.Errorf("reset must not refund the stake, got %f", snapshot.Balance)
	}

	if _, _, err := engine.StartRound(ctx, wallet, models.ModeEasy, 1.0); err != nil {
		t.Fatalf("start after reset failed: %v", err)
	}
	engine.ResetRound(wallet)
}

func TestRevealWithoutRound(t *testing.T) {
	engine, _ := setupTestEngine(t)

	if _, err := engine.Reveal(context.Background(), testWallet(), 0, 0); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("expected ErrRoundNotFound, got %v", err)
	}
	if _, err := engine.CashOut(context.Background(), testWallet()); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("expected ErrRoundNotFound, got %v", err)
	}
}

func TestVerificationDataStable(t *testing.T) {
	engine, _ := setupTestEngine(t)

	wallet := testWallet()
	clientSeed, serverHash, nonce := engine.VerificationData(wallet)

	if clientSeed == "" || serverHash == "" {
		t.Fatal("verification data must not be empty")
	}
	if nonce != 0 {
		t.Errorf("fresh wallet starts at nonce 0, got %d", nonce)
	}

	againSeed, againHash, _ := engine.VerificationData(wallet)
	if againSeed != clientSeed || againHash != serverHash {
		t.Error("verification data must be stable between calls")
	}
}

func TestRoundGridMatchesVerification(t *testing.T) {
	engine, s := setupTestEngine(t)
	ctx := context.Background()

	wallet := testWallet()
	seedAccount(t, s, wallet, 5.0)

	clientSeed, _, nonce := engine.VerificationData(wallet)

	round, _, err := engine.StartRound(ctx, wallet, models.ModeMedium, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.ResetRound(wallet)

	regenerated := RegenerateGrid(testServerSeed, clientSeed, nonce, models.ModeMedium)
	for r := range round.ActualGrid {
		for c := range round.ActualGrid[r] {
			if round.ActualGrid[r][c] != regenerated[r][c] {
				t.Fatalf("verification grid diverges from the played grid at [%d][%d]", r, c)
			}
		}
	}
}
