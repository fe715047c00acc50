// cmd/engine/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rovshanmuradov/leverage-engine/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	var opts app.Options
	flag.StringVar(&opts.ConfigPath, "config", "", "path to config file (json or yaml); defaults and LEVERAGE_ENGINE_* env when empty")
	flag.StringVar(&opts.ScenarioPath, "scenario", "", "path to scenario file (yaml)")
	flag.BoolVar(&opts.Keeper, "keeper", false, "run the liquidation keeper alongside the scenario")
	flag.BoolVar(&opts.Hold, "hold", false, "keep the keeper and metrics server running after the scenario until interrupted")
	flag.StringVar(&opts.ExportDir, "export", "", "export the event journal to this directory after the run")
	flag.BoolVar(&opts.Pretty, "pretty", false, "colored compact console logs")
	flag.Parse()

	if opts.ScenarioPath == "" {
		fmt.Fprintln(os.Stderr, "-scenario is required")
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Close(sctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	report, err := a.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		return 1
	}
	if report != nil && !report.Passed() {
		return 3
	}
	return 0
}
