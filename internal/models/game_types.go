package models

type GameMode string

const (
	ModeEasy   GameMode = "easy"
	ModeMedium GameMode = "medium"
	ModeHard   GameMode = "hard"
)

type TileState string

const (
	TileHidden TileState = "hidden"
	TileSafe   TileState = "safe"
	TileTrap   TileState = "trap"
)

type RoundStatus string

const (
	StatusIdle      RoundStatus = "idle"
	StatusPlaying   RoundStatus = "playing"
	StatusWon       RoundStatus = "won"
	StatusLost      RoundStatus = "lost"
	StatusCashedOut RoundStatus = "cashed_out"
)

// GameConfig fixes the board shape and payout progression for a mode.
// MultiplierStep is 0.95/Probability for every mode: fair odds minus a
// 5% house edge per row.
type GameConfig struct {
	Rows           int     `json:"rows"`
	Cols           int     `json:"cols"`
	SafeTiles      int     `json:"safe_tiles"`
	Probability    float64 `json:"probability"`
	MultiplierStep float64 `json:"multiplier_step"`
}

var GameConfigs = map[GameMode]GameConfig{
	ModeEasy: {
		Rows:           9,
		Cols:           4,
		SafeTiles:      3,
		Probability:    0.75,
		MultiplierStep: 1.266667,
	},
	ModeMedium: {
		Rows:           9,
		Cols:           3,
		SafeTiles:      2,
		Probability:    0.6667,
		MultiplierStep: 1.425000,
	},
	ModeHard: {
		Rows:           8,
		Cols:           2,
		SafeTiles:      1,
		Probability:    0.5,
		MultiplierStep: 1.900000,
	},
}

func (m GameMode) Valid() bool {
	_, ok := GameConfigs[m]
	return ok
}

func (m GameMode) Config() GameConfig {
	return GameConfigs[m]
}
