package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/quantpilot/engine/internal/config"
	"github.com/quantpilot/engine/internal/domain"
	"github.com/quantpilot/engine/internal/eventlog"
	"github.com/quantpilot/engine/internal/retry"
)

// demoPipeline builds the built-in paper-trading pipeline: data loading,
// strategy evaluation, order execution. It stands in for the surrounding bot
// so the engine can be exercised end to end; each phase uses retry.Do for
// its flaky sub-operations the way real broker calls would.
func demoPipeline(cfg *config.Config, sink eventlog.Sink) []domain.PhaseSpec {
	retryOpts := func(name string) retry.Options {
		return retry.Options{
			MaxRetries:    cfg.Retry.MaxRetries,
			BaseDelay:     cfg.Retry.BaseDelay.Std(),
			MaxDelay:      cfg.Retry.MaxDelay.Std(),
			OperationName: name,
		}
	}

	return []domain.PhaseSpec{
		{
			Name:    "data_phase",
			Timeout: cfg.PhaseTimeout.Std(),
			Work: func(ctx context.Context, sess domain.SessionHandle) (domain.PhaseResult, error) {
				ex := &retry.Executor{Sink: sink, SessionID: sess.ID(), Phase: "data_phase"}
				candles, err := retry.Do(ctx, ex, retryOpts("load_market_data"), func(ctx context.Context) (int, error) {
					return loadMarketData(ctx)
				})
				if err != nil {
					return domain.PhaseResult{}, fmt.Errorf("load market data: %w", err)
				}
				return domain.PhaseResult{Payload: candles}, nil
			},
		},
		{
			Name:    "strategy_phase",
			Timeout: cfg.PhaseTimeout.Std(),
			Work: func(ctx context.Context, sess domain.SessionHandle) (domain.PhaseResult, error) {
				signals, err := evaluateStrategy(ctx)
				if err != nil {
					return domain.PhaseResult{}, fmt.Errorf("evaluate strategy: %w", err)
				}
				return domain.PhaseResult{Payload: signals}, nil
			},
		},
		{
			Name:    "api_phase",
			Timeout: cfg.PhaseTimeout.Std(),
			Work: func(ctx context.Context, sess domain.SessionHandle) (domain.PhaseResult, error) {
				ex := &retry.Executor{Sink: sink, SessionID: sess.ID(), Phase: "api_phase"}
				filled, err := retry.Do(ctx, ex, retryOpts("place_orders"), func(ctx context.Context) (int, error) {
					return placeOrders(ctx, sess)
				})
				if err != nil {
					return domain.PhaseResult{}, fmt.Errorf("place orders: %w", err)
				}
				return domain.PhaseResult{Payload: filled}, nil
			},
		},
	}
}

// loadMarketData simulates fetching candles from a data provider.
func loadMarketData(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	return 500, nil
}

// evaluateStrategy simulates indicator computation over the loaded data.
func evaluateStrategy(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(30 * time.Millisecond):
	}
	return 3, nil
}

// placeOrders simulates paper-trade execution and books the results.
func placeOrders(ctx context.Context, sess domain.SessionHandle) (int, error) {
	filled := 0
	for i := 0; i < 3; i++ {
		select {
		case <-ctx.Done():
			return filled, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
		// Paper fill with a random small pnl.
		pnl := (rand.Float64() - 0.45) * 100
		sess.RecordTrade(pnl)
		filled++
	}
	return filled, nil
}
