package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kronitek/coldcall/internal/observe"
)

// ErrAllFailed is returned when every entry in a [Group] fails or has an open
// circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// GroupConfig configures the per-entry circuit breaker created for each
// provider in a [Group].
type GroupConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Metrics receives a provider-error count for every backend failure.
	// Nil selects [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// groupEntry pairs a provider value with its dedicated circuit breaker.
type groupEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Group wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails (or its circuit breaker is open), the
// next healthy fallback is tried in registration order.
//
// Group is safe for concurrent use.
type Group[T any] struct {
	entries []groupEntry[T]
	cfg     GroupConfig
	metrics *observe.Metrics
}

// NewGroup creates a [Group] with primary as the first entry. Additional
// fallbacks are registered via [Group.AddFallback].
func NewGroup[T any](primary T, primaryName string, cfg GroupConfig) *Group[T] {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = primaryName
	return &Group[T]{
		entries: []groupEntry[T]{
			{
				name:    primaryName,
				value:   primary,
				breaker: NewCircuitBreaker(cbCfg),
			},
		},
		cfg:     cfg,
		metrics: metrics,
	}
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order
// they are added, after the primary.
func (g *Group[T]) AddFallback(name string, fallback T) {
	cbCfg := g.cfg.CircuitBreaker
	cbCfg.Name = name
	g.entries = append(g.entries, groupEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute tries fn against each entry in order until one succeeds.
// Circuit-breaker-open entries are skipped. Returns [ErrAllFailed] wrapped
// with the last error if every entry fails.
func (g *Group[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range g.entries {
		entry := &g.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			g.metrics.RecordProviderError(context.Background(), entry.name, "request")
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds, returning both the result value and error. This is a package-level
// function because Go does not support method-level type parameters.
func ExecuteWithResult[T any, R any](g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		entry := &g.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			g.metrics.RecordProviderError(context.Background(), entry.name, "request")
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
