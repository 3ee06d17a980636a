package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	domain "github.com/shelfmarket/api/internal/domain"
)

// CatalogBreakerSettings tunes the circuit breaker wrapped around catalog lookups.
type CatalogBreakerSettings struct {
	// MaxFailures consecutive backend failures open the breaker.
	MaxFailures int
	// Interval clears the failure counts while closed. Zero keeps counts until the next state change.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
	// OnStateChange is notified after every transition.
	OnStateChange func(from, to string)
}

type breakingCatalog struct {
	inner   CatalogRepository
	breaker *gobreaker.CircuitBreaker[map[string]domain.CatalogItem]
}

// NewBreakingCatalog guards inner with a circuit breaker. Only unavailable or uncategorised errors
// count as failures; while open, lookups fail fast with an unavailable StoreError.
func NewBreakingCatalog(inner CatalogRepository, settings CatalogBreakerSettings) CatalogRepository {
	maxFailures := settings.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	onChange := settings.OnStateChange
	breaker := gobreaker.NewCircuitBreaker[map[string]domain.CatalogItem](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onChange != nil {
				onChange(from.String(), to.String())
			}
		},
	})
	return &breakingCatalog{inner: inner, breaker: breaker}
}

func (c *breakingCatalog) LookupItems(ctx context.Context, itemIDs []string) (map[string]domain.CatalogItem, error) {
	items, err := c.breaker.Execute(func() (map[string]domain.CatalogItem, error) {
		return c.inner.LookupItems(ctx, itemIDs)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, Unavailable("catalog.lookup", err)
	}
	return items, err
}

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound() || repoErr.IsConflict()
	}
	return false
}
