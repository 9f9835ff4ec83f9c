// Package mail delivers verification codes through an ordered set of backends.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-account-api/internal/domain"
)

// Backend sends one verification code to one address.
type Backend interface {
	Name() string
	SendCode(ctx context.Context, to, code string) error
}

// Chain tries backends in order and stops at the first success.
// Backends are never called concurrently.
type Chain struct {
	backends []Backend
	timeout  time.Duration
}

// NewChain builds a chain where each backend call is bounded by timeout.
func NewChain(timeout time.Duration, backends ...Backend) *Chain {
	return &Chain{backends: backends, timeout: timeout}
}

func (c *Chain) Len() int { return len(c.backends) }

// SendCode returns nil once a backend accepts the message. When every backend
// fails the result wraps domain.ErrDeliveryFailed and carries no backend detail.
func (c *Chain) SendCode(ctx context.Context, to, code string) error {
	for i, b := range c.backends {
		err := c.attempt(ctx, b, to, code)
		if err == nil {
			if i > 0 {
				slog.Info("verification code delivered by fallback", "backend", b.Name(), "position", i+1)
			}
			return nil
		}
		slog.Warn("delivery backend failed", "backend", b.Name(), "position", i+1, "err", err)
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%d backends tried: %w", len(c.backends), domain.ErrDeliveryFailed)
}

func (c *Chain) attempt(ctx context.Context, b Backend, to, code string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return b.SendCode(ctx, to, code)
}
