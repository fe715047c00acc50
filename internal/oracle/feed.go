// internal/oracle/feed.go
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// ErrInvalidPrice is returned when the oracle reports a zero or negative price.
var ErrInvalidPrice = errors.New("invalid price")

// Reading is a raw oracle answer in the oracle's native precision.
type Reading struct {
	Value     *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// Source is an external read-only price oracle.
type Source interface {
	LatestPrice(ctx context.Context) (Reading, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Reading, error)

// LatestPrice calls f(ctx).
func (f SourceFunc) LatestPrice(ctx context.Context) (Reading, error) {
	return f(ctx)
}

// Feed normalizes oracle readings to canonical 18-decimal prices.
// Every call goes to the source; nothing is cached.
type Feed struct {
	source Source
	logger *zap.Logger
}

// NewFeed wraps a Source.
func NewFeed(source Source, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		source: source,
		logger: logger.Named("price_feed"),
	}
}

// CurrentPrice returns the latest positive price at canonical precision.
func (f *Feed) CurrentPrice(ctx context.Context) (*uint256.Int, error) {
	reading, err := f.source.LatestPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("read oracle: %w", err)
	}
	if reading.Value == nil || reading.Value.Sign() <= 0 {
		f.logger.Warn("Oracle returned non-positive price",
			zap.Stringer("raw", reading.Value),
			zap.Uint8("decimals", reading.Decimals))
		return nil, ErrInvalidPrice
	}

	price, err := fixedpoint.Rescale(reading.Value, reading.Decimals)
	if err != nil {
		return nil, fmt.Errorf("rescale price: %w", err)
	}
	// a positive reading finer than 1e-18 truncates to zero
	if price.IsZero() {
		return nil, ErrInvalidPrice
	}
	return price, nil
}
