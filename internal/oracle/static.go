package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StaticSource reports a price set by the caller. Safe for concurrent use.
type StaticSource struct {
	mu      sync.RWMutex
	reading Reading
	err     error
}

// NewStaticSource returns a source reporting price with the given native precision.
func NewStaticSource(price decimal.Decimal, decimals uint8) *StaticSource {
	s := &StaticSource{}
	s.Set(price, decimals)
	return s
}

// Set stores a human price, e.g. 2000.5, encoded with decimals digits.
func (s *StaticSource) Set(price decimal.Decimal, decimals uint8) {
	raw := price.Shift(int32(decimals)).Truncate(0).BigInt()
	s.SetRaw(raw, decimals)
}

// SetRaw stores a raw oracle answer as-is, including zero or negative values.
func (s *StaticSource) SetRaw(value *big.Int, decimals uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = Reading{
		Value:     new(big.Int).Set(value),
		Decimals:  decimals,
		UpdatedAt: time.Now(),
	}
	s.err = nil
}

// Fail makes subsequent reads return err until the next Set.
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// LatestPrice implements Source.
func (s *StaticSource) LatestPrice(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return Reading{}, s.err
	}
	r := s.reading
	r.Value = new(big.Int).Set(s.reading.Value)
	return r, nil
}

// ErrScheduleExhausted is returned by Advance past the last step.
var ErrScheduleExhausted = errors.New("price schedule exhausted")

// ScheduleSource replays a fixed list of prices. Reads return the current
// step until Advance moves to the next one.
type ScheduleSource struct {
	mu       sync.Mutex
	prices   []decimal.Decimal
	decimals uint8
	pos      int
}

// NewScheduleSource builds a replay source. prices must not be empty.
func NewScheduleSource(prices []decimal.Decimal, decimals uint8) (*ScheduleSource, error) {
	if len(prices) == 0 {
		return nil, errors.New("empty price schedule")
	}
	return &ScheduleSource{
		prices:   append([]decimal.Decimal(nil), prices...),
		decimals: decimals,
	}, nil
}

// Advance moves to the next scheduled price.
func (s *ScheduleSource) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos+1 >= len(s.prices) {
		return ErrScheduleExhausted
	}
	s.pos++
	return nil
}

// Step returns the index of the current price.
func (s *ScheduleSource) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// LatestPrice implements Source.
func (s *ScheduleSource) LatestPrice(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reading{
		Value:     s.prices[s.pos].Shift(int32(s.decimals)).Truncate(0).BigInt(),
		Decimals:  s.decimals,
		UpdatedAt: time.Now(),
	}, nil
}
