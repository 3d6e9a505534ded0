package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand"

	"treasure-tower-backend/internal/models"
)

// Grid derivation is provably fair in the usual seed/nonce scheme: the
// server commits to sha256(serverSeed) up front, every round draws its grid
// from HMAC-SHA256(serverSeed, "tower:<clientSeed>:<nonce>"), and disclosing
// the server seed lets anyone regenerate the grid.

func GenerateServerSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

func HashServerSeed(serverSeed string) string {
	hash := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(hash[:])
}

// gridSeed derives the deterministic RNG seed for one round.
func gridSeed(serverSeed, clientSeed string, nonce int64) int64 {
	message := fmt.Sprintf("tower:%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

func gridRand(serverSeed, clientSeed string, nonce int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(gridSeed(serverSeed, clientSeed, nonce)))
}

// RegenerateGrid rebuilds the actual grid for disclosed seeds so a player can
// verify the layout their round was played against.
func RegenerateGrid(serverSeed, clientSeed string, nonce int64, mode models.GameMode) [][]models.TileState {
	_, actual := generateGrid(gridRand(serverSeed, clientSeed, nonce), mode.Config())
	return actual
}
