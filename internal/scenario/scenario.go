// internal/scenario/scenario.go
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/leverage-engine/internal/engine"
)

// Action is a scenario step kind.
type Action string

const (
	ActionOpen      Action = "open"
	ActionClose     Action = "close"
	ActionLiquidate Action = "liquidate"
	ActionPrice     Action = "price"
	ActionInit      Action = "init"
	ActionSweep     Action = "sweep"
	ActionEquity    Action = "equity"
)

const (
	defaultCustody  = "custody"
	defaultOperator = "operator"
	defaultKeeper   = "keeper"
)

// File is a scenario document.
type File struct {
	Name     string            `yaml:"name"`
	Wallets  []WalletSpec      `yaml:"wallets"`
	Custody  string            `yaml:"custody"`
	Operator string            `yaml:"operator"`
	Keeper   string            `yaml:"keeper"`
	Params   *ParamsSpec       `yaml:"params"`
	Price    PriceSpec         `yaml:"price"`
	Balances map[string]string `yaml:"balances"`
	Steps    []Step            `yaml:"steps"`
	Expect   *Expect           `yaml:"expect"`
}

// WalletSpec names a wallet; without a private key one is generated.
type WalletSpec struct {
	Name       string `yaml:"name"`
	PrivateKey string `yaml:"private_key"`
}

// ParamsSpec overrides engine parameters for one scenario.
type ParamsSpec struct {
	FeeRateBps           *uint64 `yaml:"fee_rate_bps"`
	MaintenanceMarginBps *uint64 `yaml:"maintenance_margin_bps"`
	LiquidationRewardBps *uint64 `yaml:"liquidation_reward_bps"`
	MinLeverage          *uint64 `yaml:"min_leverage"`
	MaxLeverage          *uint64 `yaml:"max_leverage"`
}

// PriceSpec describes the oracle. With a schedule, a price step without a
// value advances to the next scheduled price.
type PriceSpec struct {
	Decimals uint8    `yaml:"decimals"`
	Initial  string   `yaml:"initial"`
	Schedule []string `yaml:"schedule"`
}

// Step is one scenario action.
type Step struct {
	Action      Action `yaml:"action"`
	Account     string `yaml:"account"`
	Liquidator  string `yaml:"liquidator"`
	Margin      string `yaml:"margin"`
	Long        bool   `yaml:"long"`
	Leverage    uint64 `yaml:"leverage"`
	Price       string `yaml:"price"`
	Amount      string `yaml:"amount"`
	ExpectError string `yaml:"expect_error"`
}

// Expect holds end-of-run assertions.
type Expect struct {
	Balances      map[string]string `yaml:"balances"`
	Reserve       string            `yaml:"reserve"`
	OpenPositions *int              `yaml:"open_positions"`
}

// Load reads and validates a scenario file.
func Load(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filepath.IsAbs(path) {
		logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded scenario",
		zap.String("name", f.Name),
		zap.Int("steps", len(f.Steps)),
		zap.Int("wallets", len(f.Wallets)))
	return f, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	f.applyDefaults()
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Custody == "" {
		f.Custody = defaultCustody
	}
	if f.Operator == "" {
		f.Operator = defaultOperator
	}
	if f.Keeper == "" {
		f.Keeper = defaultKeeper
	}
	if f.Price.Decimals == 0 {
		f.Price.Decimals = 8
	}
	if f.Price.Initial == "" && len(f.Price.Schedule) > 0 {
		f.Price.Initial = f.Price.Schedule[0]
	}
}

func (f *File) validate() error {
	if len(f.Steps) == 0 {
		return fmt.Errorf("no steps found in scenario")
	}
	if _, err := decimal.NewFromString(f.Price.Initial); err != nil {
		return fmt.Errorf("price.initial: %w", err)
	}
	for i, p := range f.Price.Schedule {
		if _, err := decimal.NewFromString(p); err != nil {
			return fmt.Errorf("price.schedule[%d]: %w", i, err)
		}
	}
	for name, amount := range f.Balances {
		if _, err := decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("balances.%s: %w", name, err)
		}
	}

	for i, s := range f.Steps {
		if err := s.validate(len(f.Price.Schedule) > 0); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Action, err)
		}
	}
	return nil
}

func (s Step) validate(scheduled bool) error {
	switch s.Action {
	case ActionOpen:
		if s.Account == "" {
			return fmt.Errorf("account is required")
		}
		if _, err := decimal.NewFromString(s.Margin); err != nil {
			return fmt.Errorf("margin: %w", err)
		}
	case ActionClose, ActionEquity:
		if s.Account == "" {
			return fmt.Errorf("account is required")
		}
	case ActionLiquidate:
		if s.Account == "" || s.Liquidator == "" {
			return fmt.Errorf("account and liquidator are required")
		}
	case ActionPrice:
		if scheduled && s.Price != "" {
			return fmt.Errorf("price cannot be set when a schedule is used")
		}
		if !scheduled {
			if _, err := decimal.NewFromString(s.Price); err != nil {
				return fmt.Errorf("price: %w", err)
			}
		}
	case ActionInit:
		if _, err := decimal.NewFromString(s.Amount); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
	case ActionSweep:
	default:
		return fmt.Errorf("unsupported action: %q", s.Action)
	}

	if s.ExpectError != "" && engine.KindError(s.ExpectError) == nil {
		return fmt.Errorf("unknown error kind %q", s.ExpectError)
	}
	return nil
}

// referencedNames lists every wallet name the scenario mentions, sorted.
func (f *File) referencedNames() []string {
	set := map[string]bool{f.Custody: true, f.Operator: true, f.Keeper: true}
	for name := range f.Balances {
		set[name] = true
	}
	for _, s := range f.Steps {
		set[s.Account] = true
		set[s.Liquidator] = true
	}
	if f.Expect != nil {
		for name := range f.Expect.Balances {
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// params applies overrides on top of base.
func (f *File) params(base engine.Params) engine.Params {
	if f.Params == nil {
		return base
	}
	set := func(dst *uint64, v *uint64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&base.FeeRateBps, f.Params.FeeRateBps)
	set(&base.MaintenanceMarginBps, f.Params.MaintenanceMarginBps)
	set(&base.LiquidationRewardBps, f.Params.LiquidationRewardBps)
	set(&base.MinLeverage, f.Params.MinLeverage)
	set(&base.MaxLeverage, f.Params.MaxLeverage)
	return base
}
