// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/leverage-engine/internal/config"
	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/journal"
	"github.com/rovshanmuradov/leverage-engine/internal/logger"
	"github.com/rovshanmuradov/leverage-engine/internal/metrics"
	"github.com/rovshanmuradov/leverage-engine/internal/scenario"
)

// Options are the command-line choices of one run.
type Options struct {
	ConfigPath   string
	ScenarioPath string
	Keeper       bool   // run the keeper loop alongside the scenario
	Hold         bool   // keep keeper and metrics running after the scenario until cancelled
	ExportDir    string // export the journal here after the run
	Pretty       bool
	Stdout       io.Writer

	// Logger replaces the configured logger, mainly for tests.
	Logger *zap.Logger
}

// App is a fully wired engine process.
type App struct {
	cfg      *config.Config
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Collector
	bus      *events.Bus
	journal  *journal.Journal
	runner   *scenario.Runner
	server   *http.Server
	shutdown *ShutdownHandler
}

// New loads configuration and the scenario and wires every component.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	a := &App{cfg: cfg, opts: opts}

	if opts.Logger != nil {
		a.logger = opts.Logger
		a.shutdown = NewShutdownHandler(a.logger, 10*time.Second)
	} else {
		lg, err := logger.New(&logger.Config{
			LogFile:     cfg.LogFile,
			MaxSize:     100,
			MaxAge:      7,
			MaxBackups:  3,
			Compress:    true,
			Development: cfg.DebugLogging,
			Pretty:      opts.Pretty,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		a.logger = lg.Logger
		a.shutdown = NewShutdownHandler(a.logger, 10*time.Second)
		a.shutdown.Add("logger", lg)
	}

	if err := a.build(); err != nil {
		_ = a.shutdown.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	file, err := scenario.Load(a.opts.ScenarioPath, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	a.metrics = metrics.NewCollector()

	a.journal, err = journal.New(journal.Options{
		Dir:    a.cfg.JournalDir,
		Format: journal.ExportFormat(a.cfg.JournalFormat),
	}, a.logger)
	if err != nil {
		return err
	}
	a.shutdown.Add("journal", a.journal)

	a.bus = events.NewBus(a.logger, a.cfg.EventBuffer)
	a.bus.SubscribeAll(a.journal)
	a.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.bus.Shutdown(ctx)
	})

	a.runner, err = scenario.NewRunner(file, scenario.Options{
		Params:         a.cfg.Params(),
		Publisher:      a.bus,
		Metrics:        a.metrics,
		Logger:         a.logger,
		KeeperInterval: a.cfg.KeeperInterval(),
		KeeperRetries:  a.cfg.KeeperRetries,
	})
	if err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		a.server = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return nil
}

// Runner exposes the scenario runner.
func (a *App) Runner() *scenario.Runner { return a.runner }

// Journal exposes the event journal.
func (a *App) Journal() *journal.Journal { return a.journal }

// Run executes the scenario, with the keeper and metrics server alongside
// when enabled, then drains events, exports the journal and prints the report.
// Cancelling ctx stops the run gracefully.
func (a *App) Run(ctx context.Context) (*scenario.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if a.server != nil {
		g.Go(func() error {
			a.logger.Info("Serving metrics", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return a.server.Shutdown(sctx)
		})
	}

	if a.opts.Keeper {
		g.Go(func() error {
			return a.runner.Keeper().Run(gctx)
		})
	}

	var report *scenario.Report
	g.Go(func() error {
		r, err := a.runner.Run(gctx)
		report = r
		if err != nil {
			return err
		}
		if !a.opts.Hold {
			cancel()
		}
		return nil
	})

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("Run interrupted")
		err = nil
	}
	if err != nil {
		return report, err
	}

	// deliver queued events to the journal before reading it
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	if err := a.bus.Shutdown(dctx); err != nil {
		a.logger.Warn("Event bus did not drain", zap.Error(err))
	}

	if a.opts.ExportDir != "" {
		a.export()
	}

	if report != nil {
		if err := report.Print(a.opts.Stdout); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (a *App) export() {
	path, err := a.journal.Export(a.opts.ExportDir, journal.ExportFormat(a.cfg.JournalFormat))
	switch {
	case errors.Is(err, journal.ErrNothingToExport):
		a.logger.Warn("Journal is empty, nothing exported")
	case err != nil:
		a.logger.Error("Journal export failed", zap.Error(err))
	default:
		a.logger.Info("Journal exported", zap.String("file", path))
	}
}

// Close releases every component.
func (a *App) Close(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx)
}
