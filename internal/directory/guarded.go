package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/SojoC/PPAM-WEB-APP/pkg/errors"
	"github.com/SojoC/PPAM-WEB-APP/pkg/resilience"
)

// GuardedStore bounds every call of the wrapped store with a timeout and a
// circuit breaker. Failures surface as ErrStoreUnreachable; retrying is left
// to the caller.
type GuardedStore struct {
	next    Store
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// NewGuardedStore wraps next. Cancellation by the caller does not count
// against the breaker unless cfg.IsFailure says otherwise.
func NewGuardedStore(next Store, timeout time.Duration, cfg resilience.CircuitBreakerConfig) *GuardedStore {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &GuardedStore{
		next:    next,
		timeout: timeout,
		breaker: resilience.NewCircuitBreaker("directory-store", cfg),
	}
}

// BreakerState exposes the breaker for health reporting.
func (g *GuardedStore) BreakerState() resilience.State {
	return g.breaker.GetState()
}

func (g *GuardedStore) TextFields(ctx context.Context) ([]string, error) {
	return guard(ctx, g, "text-fields", g.next.TextFields)
}

func (g *GuardedStore) ListPersons(ctx context.Context) ([]Person, error) {
	return guard(ctx, g, "list-persons", g.next.ListPersons)
}

func (g *GuardedStore) FindPersons(ctx context.Context, f Filter) ([]Person, error) {
	return guard(ctx, g, "find-persons", func(ctx context.Context) ([]Person, error) {
		return g.next.FindPersons(ctx, f)
	})
}

func (g *GuardedStore) Ping(ctx context.Context) error {
	_, err := guard(ctx, g, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Ping(ctx)
	})
	return err
}

func guard[T any](ctx context.Context, g *GuardedStore, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var v T
	err := g.breaker.Execute(func() error {
		var err error
		v, err = resilience.Timed(ctx, g.timeout, op, fn)
		return err
	})
	if err == nil {
		return v, nil
	}
	var zero T
	if ctx.Err() != nil {
		return zero, fmt.Errorf("directory %s: %w", op, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return zero, fmt.Errorf("directory %s: %w: %w", op, apperrors.ErrTimeout, apperrors.ErrStoreUnreachable)
	}
	return zero, fmt.Errorf("directory %s: %w: %w", op, apperrors.ErrStoreUnreachable, err)
}
