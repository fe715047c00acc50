// internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/engine"
	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/keeper"
	"github.com/rovshanmuradov/leverage-engine/internal/metrics"
	"github.com/rovshanmuradov/leverage-engine/internal/oracle"
	"github.com/rovshanmuradov/leverage-engine/internal/token"
)

// Options wires a runner into the surrounding process.
type Options struct {
	Params         engine.Params // zero value means engine.DefaultParams
	Publisher      events.Publisher
	Metrics        *metrics.Collector
	Logger         *zap.Logger
	KeeperInterval time.Duration
	KeeperRetries  int
}

// Runner executes a scenario against a fresh engine, in-memory token ledger
// and scripted price source.
type Runner struct {
	file     *File
	wallets  map[string]*Wallet
	names    map[solana.PublicKey]string
	ledger   *token.MemoryLedger
	static   *oracle.StaticSource
	schedule *oracle.ScheduleSource
	feed     *oracle.Feed
	engine   *engine.Engine
	keeper   *keeper.Keeper
	logger   *zap.Logger
}

// NewRunner builds the engine and its collaborators for f.
func NewRunner(f *File, opts Options) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Params == (engine.Params{}) {
		opts.Params = engine.DefaultParams()
	}
	logger := opts.Logger.Named("scenario")

	wallets, err := resolveWallets(f.Wallets, f.referencedNames())
	if err != nil {
		return nil, err
	}
	r := &Runner{
		file:    f,
		wallets: wallets,
		names:   make(map[solana.PublicKey]string, len(wallets)),
		ledger:  token.NewMemoryLedger(opts.Logger),
		logger:  logger,
	}
	for name, w := range wallets {
		r.names[w.PublicKey] = name
	}

	var source oracle.Source
	if len(f.Price.Schedule) > 0 {
		prices := make([]decimal.Decimal, len(f.Price.Schedule))
		for i, p := range f.Price.Schedule {
			prices[i] = decimal.RequireFromString(p)
		}
		if r.schedule, err = oracle.NewScheduleSource(prices, f.Price.Decimals); err != nil {
			return nil, err
		}
		source = r.schedule
	} else {
		r.static = oracle.NewStaticSource(decimal.RequireFromString(f.Price.Initial), f.Price.Decimals)
		source = r.static
	}
	r.feed = oracle.NewFeed(source, opts.Logger)

	r.engine, err = engine.New(engine.Config{
		Params:    f.params(opts.Params),
		Feed:      r.feed,
		Ledger:    r.ledger,
		Custody:   wallets[f.Custody].PublicKey,
		Operator:  wallets[f.Operator].PublicKey,
		Logger:    opts.Logger,
		Publisher: opts.Publisher,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	r.keeper, err = keeper.New(keeper.Config{
		Engine:   r.engine,
		Feed:     r.feed,
		Account:  wallets[f.Keeper].PublicKey,
		Interval: opts.KeeperInterval,
		Retries:  opts.KeeperRetries,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Engine returns the engine under test.
func (r *Runner) Engine() *engine.Engine { return r.engine }

// Keeper returns the scenario's keeper, which is also used by sweep steps.
func (r *Runner) Keeper() *keeper.Keeper { return r.keeper }

// Ledger returns the token ledger.
func (r *Runner) Ledger() *token.MemoryLedger { return r.ledger }

// Wallet returns the named wallet.
func (r *Runner) Wallet(name string) (*Wallet, bool) {
	w, ok := r.wallets[name]
	return w, ok
}

// Run mints the starting balances, executes every step in order and checks
// the final expectations. Step failures are recorded in the report; the
// returned error is reserved for cancellation and setup problems.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Name: r.file.Name}

	if err := r.fund(); err != nil {
		return report, err
	}

	for i, step := range r.file.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		detail, err := r.execute(ctx, step)
		res := StepResult{
			Index:    i + 1,
			Action:   step.Action,
			Account:  step.Account,
			Detail:   detail,
			Expected: step.ExpectError,
		}
		if err != nil {
			res.Error = err.Error()
			res.ErrorKind = engine.ErrorKind(err)
		}
		res.Passed = matches(step.ExpectError, err)
		if !res.Passed {
			report.Failures = append(report.Failures, res.failure())
		}

		r.logger.Debug("Step executed",
			zap.Int("step", res.Index),
			zap.String("action", string(step.Action)),
			zap.String("detail", detail),
			zap.Bool("passed", res.Passed),
			zap.Error(err))
		report.Steps = append(report.Steps, res)
	}

	r.finalize(ctx, report)

	r.logger.Info("Scenario finished",
		zap.String("name", report.Name),
		zap.Int("steps", len(report.Steps)),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

func matches(expected string, err error) bool {
	if expected == "" {
		return err == nil
	}
	return err != nil && errors.Is(err, engine.KindError(expected))
}

func (r *Runner) fund() error {
	unlimited := new(uint256.Int).SetAllOne()
	custody := r.wallets[r.file.Custody].PublicKey

	names := make([]string, 0, len(r.file.Balances))
	for name := range r.file.Balances {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		amount, err := fixedpoint.Parse(r.file.Balances[name])
		if err != nil {
			return fmt.Errorf("balances.%s: %w", name, err)
		}
		w := r.wallets[name]
		if err := r.ledger.Mint(w.PublicKey, amount); err != nil {
			return fmt.Errorf("balances.%s: %w", name, err)
		}
		r.ledger.Approve(w.PublicKey, custody, unlimited)
	}
	return nil
}

func (r *Runner) key(name string) solana.PublicKey {
	return r.wallets[name].PublicKey
}

func (r *Runner) execute(ctx context.Context, s Step) (string, error) {
	switch s.Action {
	case ActionOpen:
		margin, err := fixedpoint.Parse(s.Margin)
		if err != nil {
			return "", err
		}
		res, err := r.engine.Open(ctx, r.key(s.Account), margin, s.Long, s.Leverage)
		if err != nil {
			return "", err
		}
		detail := fmt.Sprintf("%s %s margin=%s size=%s entry=%s fee=%s",
			res.Kind, res.Position.Direction(),
			fixedpoint.Format(res.Position.Margin),
			fixedpoint.Format(res.Position.Size),
			fixedpoint.Format(res.Position.EntryPrice),
			fixedpoint.Format(res.Fee))
		if res.Closed != nil {
			detail += fmt.Sprintf(" closed_payout=%s", fixedpoint.Format(res.Closed.Payout))
		}
		return detail, nil

	case ActionClose:
		res, err := r.engine.Close(ctx, r.key(s.Account))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("pnl=%s fee=%s payout=%s",
			fixedpoint.SignedToDecimal(res.PnL),
			fixedpoint.Format(res.CloseFee),
			fixedpoint.Format(res.Payout)), nil

	case ActionLiquidate:
		res, err := r.engine.Liquidate(ctx, r.key(s.Liquidator), r.key(s.Account))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("equity=%s reward=%s paid=%t",
			fixedpoint.Format(res.Equity),
			fixedpoint.Format(res.Reward),
			res.RewardPaid), nil

	case ActionPrice:
		if r.schedule != nil {
			if err := r.schedule.Advance(); err != nil {
				return "", err
			}
			step := r.schedule.Step()
			return fmt.Sprintf("price=%s step=%d", r.file.Price.Schedule[step], step), nil
		}
		r.static.Set(decimal.RequireFromString(s.Price), r.file.Price.Decimals)
		return "price=" + s.Price, nil

	case ActionInit:
		amount, err := fixedpoint.Parse(s.Amount)
		if err != nil {
			return "", err
		}
		operator := r.file.Operator
		if s.Account != "" {
			operator = s.Account
		}
		if err := r.engine.InitializeReserve(ctx, r.key(operator), amount); err != nil {
			return "", err
		}
		return "reserve=" + fixedpoint.Format(r.engine.FeeReserve()), nil

	case ActionSweep:
		accounts, err := r.keeper.Sweep(ctx)
		if err != nil {
			return "", err
		}
		names := make([]string, len(accounts))
		for i, a := range accounts {
			names[i] = r.names[a]
		}
		return fmt.Sprintf("liquidated=[%s]", strings.Join(names, ",")), nil

	case ActionEquity:
		rep, err := r.engine.GetEquity(ctx, r.key(s.Account))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("equity=%s pnl=%s price=%s",
			fixedpoint.SignedToDecimal(rep.Equity),
			fixedpoint.SignedToDecimal(rep.PnL),
			fixedpoint.Format(rep.Price)), nil
	}
	return "", fmt.Errorf("unsupported action: %q", s.Action)
}

func (r *Runner) finalize(ctx context.Context, report *Report) {
	names := make([]string, 0, len(r.wallets))
	for name := range r.wallets {
		names = append(names, name)
	}
	sort.Strings(names)

	balances := make(map[string]*uint256.Int, len(names))
	for _, name := range names {
		w := r.wallets[name]
		b, err := r.ledger.BalanceOf(ctx, w.PublicKey)
		if err != nil {
			b = new(uint256.Int)
		}
		balances[name] = b
		report.Balances = append(report.Balances, Balance{
			Name:    name,
			Account: w.String(),
			Amount:  fixedpoint.Format(b),
		})
	}
	report.Reserve = fixedpoint.Format(r.engine.FeeReserve())
	report.ReserveInitialized = r.engine.ReserveInitialized()
	report.OpenPositions = len(r.engine.Accounts())

	exp := r.file.Expect
	if exp == nil {
		return
	}
	for _, name := range sortedKeys(exp.Balances) {
		want, err := fixedpoint.Parse(exp.Balances[name])
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("expect.balances.%s: %v", name, err))
			continue
		}
		if got := balances[name]; !got.Eq(want) {
			report.Failures = append(report.Failures,
				fmt.Sprintf("balance of %s: expected %s, got %s", name, fixedpoint.Format(want), fixedpoint.Format(got)))
		}
	}
	if exp.Reserve != "" {
		want, err := fixedpoint.Parse(exp.Reserve)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("expect.reserve: %v", err))
		} else if got := r.engine.FeeReserve(); !got.Eq(want) {
			report.Failures = append(report.Failures,
				fmt.Sprintf("reserve: expected %s, got %s", fixedpoint.Format(want), fixedpoint.Format(got)))
		}
	}
	if exp.OpenPositions != nil && *exp.OpenPositions != report.OpenPositions {
		report.Failures = append(report.Failures,
			fmt.Sprintf("open positions: expected %d, got %d", *exp.OpenPositions, report.OpenPositions))
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
