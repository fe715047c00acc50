// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/oracle"
	"github.com/rovshanmuradov/leverage-engine/internal/reserve"
)

// Error kinds returned by the engine. Operations wrap them with the
// operation name, match with errors.Is.
var (
	ErrInvalidMarginAmount   = errors.New("invalid margin amount")
	ErrInvalidLeverage       = errors.New("invalid leverage")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidPrice          = oracle.ErrInvalidPrice
	ErrNoPosition            = errors.New("no position")
	ErrNotLiquidatable       = errors.New("position not liquidatable")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrAlreadyInitialized    = reserve.ErrAlreadyInitialized

	ErrUnauthorized  = errors.New("unauthorized")
	ErrReentrantCall = errors.New("reentrant call")
	ErrOverflow      = fixedpoint.ErrOverflow
)

// kinds maps the names used in scenario files to sentinels.
var kinds = []struct {
	name string
	err  error
}{
	{"InvalidMarginAmount", ErrInvalidMarginAmount},
	{"InvalidLeverage", ErrInvalidLeverage},
	{"InsufficientBalance", ErrInsufficientBalance},
	{"InsufficientAllowance", ErrInsufficientAllowance},
	{"InvalidPrice", ErrInvalidPrice},
	{"NoPosition", ErrNoPosition},
	{"NotLiquidatable", ErrNotLiquidatable},
	{"InsufficientLiquidity", ErrInsufficientLiquidity},
	{"TransferFailed", ErrTransferFailed},
	{"AlreadyInitialized", ErrAlreadyInitialized},
	{"Unauthorized", ErrUnauthorized},
	{"ReentrantCall", ErrReentrantCall},
	{"Overflow", ErrOverflow},
}

// ErrorKind names the engine error kind err wraps, or "" if none.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// KindError returns the sentinel registered under name, nil if unknown.
func KindError(name string) error {
	for _, k := range kinds {
		if k.name == name {
			return k.err
		}
	}
	return nil
}

func opError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func transferError(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, ErrTransferFailed)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransferFailed, cause)
}
