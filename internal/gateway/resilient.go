package gateway

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

// ResilientAnalyzer bounds an analyzer with a timeout and one retry.
type ResilientAnalyzer struct {
	inner        Analyzer
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

func NewResilientAnalyzer(inner Analyzer, limit time.Duration) *ResilientAnalyzer {
	if limit <= 0 {
		limit = 90 * time.Second
	}
	return &ResilientAnalyzer{inner: inner, timeout: limit, maxAttempts: 2, initialDelay: time.Second}
}

func (r *ResilientAnalyzer) Name() string { return r.inner.Name() }

func (r *ResilientAnalyzer) Analyze(ctx context.Context, snap domain.Snapshot) (Analysis, error) {
	rt := retry.New[Analysis](retry.Config{
		MaxAttempts:   r.maxAttempts,
		InitialDelay:  r.initialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[Analysis](timeout.Config{
		DefaultTimeout: r.timeout,
	})
	return t.Execute(ctx, r.timeout, func(ctx context.Context) (Analysis, error) {
		return rt.Do(ctx, func(ctx context.Context) (Analysis, error) {
			return r.inner.Analyze(ctx, snap)
		})
	})
}
