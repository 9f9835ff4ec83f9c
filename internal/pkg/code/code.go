// Package code generates short numeric verification codes.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	DefaultLength = 6
	digits        = "0123456789"
)

// Generator draws fixed-length codes from crypto/rand. Codes are not
// unique across emails.
type Generator struct {
	length int
	max    *big.Int
}

func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length, max: big.NewInt(int64(len(digits)))}
}

func (g *Generator) Length() int { return g.length }

func (g *Generator) Generate() (string, error) {
	b := make([]byte, g.length)
	for i := range b {
		n, err := rand.Int(rand.Reader, g.max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}
