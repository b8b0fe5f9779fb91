// Package retry wraps a provider with bounded retries and exponential
// backoff. It exists as a decorator so resilience policy can change
// without touching the provider contract.
package retry

import (
	"context"
	"errors"
	"time"

	"pricehistory/internal/date"
	"pricehistory/internal/provider"
)

// Provider retries failed History calls up to Attempts times, sleeping
// BaseDelay*2^(n-1) between attempts. ErrInvalidSymbol is never
// retried: the symbol will not become valid by asking again.
type Provider struct {
	P         provider.Provider
	Attempts  int
	BaseDelay time.Duration
}

func (r *Provider) Name() string { return r.P.Name() }

func (r *Provider) History(ctx context.Context, symbol string, rng date.Range, interval provider.Interval, adjust bool) ([]provider.Bar, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		bars, err := r.P.History(ctx, symbol, rng, interval, adjust)
		if err == nil {
			return bars, nil
		}
		if errors.Is(err, provider.ErrInvalidSymbol) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := r.BaseDelay << (attempt - 1)
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, lastErr
}
