package station

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	minAccessCode = 1000
	maxAccessCode = 9999
)

// generateAccessCode returns a uniformly random code in [1000, 9999].
func generateAccessCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxAccessCode-minAccessCode+1))
	if err != nil {
		return 0, fmt.Errorf("generate access code: %w", err)
	}
	return minAccessCode + int(n.Int64()), nil
}
