package services

import (
	"math/rand"
	"time"

	"treasure-tower-backend/internal/models"
)

// Round is a single climb from bet placement to a terminal outcome. It owns
// all in-round state; the engine is the only writer. The whole actual grid is
// generated up front so the outcome under every hidden tile is fixed before
// the player acts on it.
type Round struct {
	ID        string
	Mode      models.GameMode
	Config    models.GameConfig
	BetAmount float64

	CurrentRow int
	Grid       [][]models.TileState
	ActualGrid [][]models.TileState
	Status     models.RoundStatus
	Multiplier float64

	StartedAt  time.Time
	LastAction time.Time

	// Fairness inputs disclosed after the round ends.
	ClientSeed string
	Nonce      int64
}

// RevealResult describes the effect of one tile click. Revealed is false for
// ignored clicks (wrong row, terminal round) — those never mutate state.
type RevealResult struct {
	Revealed   bool
	Tile       models.TileState
	Row        int
	Col        int
	Multiplier float64
	Status     models.RoundStatus
}

func generateRow(rng *rand.Rand, cols, safeTiles int) (hidden, actual []models.TileState) {
	hidden = make([]models.TileState, cols)
	actual = make([]models.TileState, cols)
	for i := 0; i < cols; i++ {
		hidden[i] = models.TileHidden
		actual[i] = models.TileTrap
	}
	// Exactly safeTiles distinct positions, uniform without replacement.
	for _, pos := range rng.Perm(cols)[:safeTiles] {
		actual[pos] = models.TileSafe
	}
	return hidden, actual
}

func generateGrid(rng *rand.Rand, cfg models.GameConfig) (grid, actualGrid [][]models.TileState) {
	grid = make([][]models.TileState, cfg.Rows)
	actualGrid = make([][]models.TileState, cfg.Rows)
	for r := 0; r < cfg.Rows; r++ {
		grid[r], actualGrid[r] = generateRow(rng, cfg.Cols, cfg.SafeTiles)
	}
	return grid, actualGrid
}

// NewRound generates a fresh grid and enters the playing state. The bet must
// already have been debited by the caller.
func NewRound(mode models.GameMode, betAmount float64, rng *rand.Rand) *Round {
	cfg := mode.Config()
	grid, actualGrid := generateGrid(rng, cfg)

	now := time.Now()
	return &Round{
		ID:         models.GenerateRoundID(),
		Mode:       mode,
		Config:     cfg,
		BetAmount:  betAmount,
		CurrentRow: 0,
		Grid:       grid,
		ActualGrid: actualGrid,
		Status:     models.StatusPlaying,
		Multiplier: 1,
		StartedAt:  now,
		LastAction: now,
	}
}

// ActiveRow is the only row eligible for reveals. The climb proceeds upward:
// rows are stored top-to-bottom, so the first active row is the last index.
func (r *Round) ActiveRow() int {
	return r.Config.Rows - 1 - r.CurrentRow
}

// ClickTile reveals one tile on the active row. Clicks outside the playing
// state or off the active row are silently ignored.
func (r *Round) ClickTile(row, col int) RevealResult {
	ignored := RevealResult{Revealed: false, Multiplier: r.Multiplier, Status: r.Status}

	if r.Status != models.StatusPlaying || row != r.ActiveRow() {
		return ignored
	}
	if col < 0 || col >= r.Config.Cols {
		return ignored
	}

	r.LastAction = time.Now()

	tile := r.ActualGrid[row][col]
	r.Grid[row][col] = tile

	if tile == models.TileSafe {
		r.Multiplier *= r.Config.MultiplierStep
		r.CurrentRow++
		if r.CurrentRow >= r.Config.Rows {
			r.Status = models.StatusWon
		}
	} else {
		r.Status = models.StatusLost
	}

	return RevealResult{
		Revealed:   true,
		Tile:       tile,
		Row:        row,
		Col:        col,
		Multiplier: r.Multiplier,
		Status:     r.Status,
	}
}

// CashOut locks in the current multiplier. Safe to call repeatedly: once the
// round is not playing it does nothing and reports false.
func (r *Round) CashOut() bool {
	if r.Status != models.StatusPlaying {
		return false
	}
	r.Status = models.StatusCashedOut
	r.LastAction = time.Now()
	return true
}

// clone returns a snapshot safe to hand to callers while the live round
// keeps mutating under the engine's wallet lock.
func (r *Round) clone() *Round {
	c := *r
	c.Grid = cloneGrid(r.Grid)
	c.ActualGrid = cloneGrid(r.ActualGrid)
	return &c
}

func cloneGrid(grid [][]models.TileState) [][]models.TileState {
	if grid == nil {
		return nil
	}
	out := make([][]models.TileState, len(grid))
	for i, row := range grid {
		out[i] = append([]models.TileState(nil), row...)
	}
	return out
}

// Reset returns to idle unconditionally, clearing the grids. Used after
// terminal states and for early abandonment.
func (r *Round) Reset() {
	r.CurrentRow = 0
	r.Grid = nil
	r.ActualGrid = nil
	r.Status = models.StatusIdle
	r.Multiplier = 1
	r.LastAction = time.Now()
}
