// internal/keeper/keeper.go
package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/engine"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/metrics"
	"github.com/rovshanmuradov/leverage-engine/internal/oracle"
	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// Engine is the part of the position manager the keeper drives.
type Engine interface {
	Accounts() []solana.PublicKey
	Position(account solana.PublicKey) position.Position
	Liquidate(ctx context.Context, liquidator, account solana.PublicKey) (*engine.LiquidationResult, error)
	Params() engine.Params
}

// Config contains configuration for a keeper
type Config struct {
	Engine     Engine
	Feed       engine.PriceFeed
	Account    solana.PublicKey // получает вознаграждения за ликвидацию
	Interval   time.Duration    // интервал между проходами
	Retries    int              // попыток чтения цены за проход
	RetryDelay time.Duration
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

// Keeper periodically liquidates positions whose equity fell to the
// maintenance requirement.
type Keeper struct {
	engine     Engine
	feed       engine.PriceFeed
	account    solana.PublicKey
	interval   time.Duration
	retries    uint
	retryDelay time.Duration
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// New creates a keeper.
func New(cfg Config) (*Keeper, error) {
	if cfg.Engine == nil {
		return nil, errors.New("keeper: engine is required")
	}
	if cfg.Feed == nil {
		return nil, errors.New("keeper: price feed is required")
	}
	if cfg.Account.IsZero() {
		return nil, errors.New("keeper: account is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Keeper{
		engine:     cfg.Engine,
		feed:       cfg.Feed,
		account:    cfg.Account,
		interval:   cfg.Interval,
		retries:    uint(cfg.Retries),
		retryDelay: cfg.RetryDelay,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.Named("keeper"),
	}, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.Info("Starting keeper",
		zap.Stringer("account", k.account),
		zap.Duration("interval", k.interval))

	k.sweepAndLog(ctx)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.sweepAndLog(ctx)
		case <-ctx.Done():
			k.logger.Debug("Keeper stopped")
			return nil
		}
	}
}

func (k *Keeper) sweepAndLog(ctx context.Context) {
	if _, err := k.Sweep(ctx); err != nil && ctx.Err() == nil {
		k.logger.Error("Sweep failed", zap.Error(err))
	}
}

// Sweep evaluates every open position once and liquidates the eligible ones.
// Eligibility is decided at a single price read per pass, retried with
// backoff; Liquidate then re-checks against the engine's own read, so a
// position the price moved away from is skipped. It returns the accounts
// liquidated in this pass.
func (k *Keeper) Sweep(ctx context.Context) ([]solana.PublicKey, error) {
	price, err := k.readPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("keeper: %w", err)
	}

	mmr := k.engine.Params().MaintenanceMarginBps
	var liquidated []solana.PublicKey

	for _, account := range k.engine.Accounts() {
		if ctx.Err() != nil {
			break
		}

		p := k.engine.Position(account)
		if !p.IsOpen() {
			continue
		}
		report, err := valueAt(account, p, price)
		if err != nil {
			k.logger.Warn("Cannot value position", zap.Stringer("account", account), zap.Error(err))
			continue
		}

		eligible, err := Eligible(report, mmr)
		if err != nil {
			k.logger.Warn("Cannot evaluate position", zap.Stringer("account", account), zap.Error(err))
			continue
		}
		if !eligible {
			continue
		}

		res, err := k.engine.Liquidate(ctx, k.account, account)
		switch {
		case err == nil:
			liquidated = append(liquidated, account)
			k.logger.Info("Position liquidated",
				zap.Stringer("account", account),
				zap.String("equity", fixedpoint.Format(res.Equity)),
				zap.String("reward", fixedpoint.Format(res.Reward)),
				zap.Bool("reward_paid", res.RewardPaid))
		case errors.Is(err, engine.ErrNotLiquidatable), errors.Is(err, engine.ErrNoPosition):
			// price moved or the owner closed between the check and the call
			k.logger.Debug("Liquidation skipped", zap.Stringer("account", account), zap.Error(err))
		default:
			k.logger.Warn("Liquidation failed", zap.Stringer("account", account), zap.Error(err))
		}
	}

	k.metrics.RecordKeeperLiquidations(len(liquidated))
	k.logger.Debug("Sweep complete",
		zap.String("price", fixedpoint.Format(price)),
		zap.Int("liquidated", len(liquidated)))

	return liquidated, nil
}

// valueAt values p at price the way GetEquity does, without a second feed read.
func valueAt(account solana.PublicKey, p position.Position, price *uint256.Int) (*engine.EquityReport, error) {
	pnl, err := position.ComputePnL(p.IsLong, p.Size, p.EntryPrice, price)
	if err != nil {
		return nil, err
	}
	return &engine.EquityReport{
		Account:    account,
		IsLong:     p.IsLong,
		Margin:     p.Margin,
		Size:       p.Size,
		EntryPrice: p.EntryPrice,
		Price:      price,
		PnL:        pnl,
		Equity:     position.Equity(p.Margin, pnl),
	}, nil
}

// readPrice retries transient feed failures. An invalid price is final.
func (k *Keeper) readPrice(ctx context.Context) (*uint256.Int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = k.retryDelay
	policy.MaxInterval = k.retryDelay * 10

	notify := func(err error, d time.Duration) {
		k.logger.Info("Повтор чтения цены после ошибки", zap.Error(err), zap.Duration("backoff", d))
	}

	operation := func() (*uint256.Int, error) {
		price, err := k.feed.CurrentPrice(ctx)
		if errors.Is(err, oracle.ErrInvalidPrice) {
			return nil, backoff.Permanent(err)
		}
		return price, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(k.retries),
		backoff.WithNotify(notify))
}

// Eligible reports whether a position valued at report has equity at or
// below its maintenance requirement.
func Eligible(report *engine.EquityReport, maintenanceBps uint64) (bool, error) {
	required, err := fixedpoint.Bps(report.Margin, maintenanceBps)
	if err != nil {
		return false, err
	}
	return report.Equity.Cmp(required.ToBig()) <= 0, nil
}
