// Package healthid generates short numeric identifiers (health IDs,
// appointment references).
//
// The collision check is only an optimization: two concurrent callers can be
// handed the same value, so the store must enforce uniqueness on the column.
package healthid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	Digits             = 8
	defaultMaxAttempts = 10
)

var ErrExhausted = errors.New("healthid: no unused id after max attempts")

// ExistsFunc reports whether id is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

type Generator struct {
	// Rand defaults to crypto/rand.
	Rand        io.Reader
	MaxAttempts int
}

func New() *Generator {
	return &Generator{Rand: rand.Reader, MaxAttempts: defaultMaxAttempts}
}

var space = big.NewInt(100_000_000)

// Next returns one random zero-padded 8 digit string.
func (g *Generator) Next() (string, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, space)
	if err != nil {
		return "", fmt.Errorf("healthid: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// Generate draws ids until exists reports one unused.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := g.Next()
		if err != nil {
			return "", err
		}
		if exists == nil {
			return id, nil
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("healthid: check %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrExhausted
}
