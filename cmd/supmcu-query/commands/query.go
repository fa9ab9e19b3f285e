package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/supmcu-protocol/supmcu-go/pkg/master"
	"github.com/supmcu-protocol/supmcu-go/pkg/module"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
)

// RunQuery runs the query command. With no positional arguments it sweeps
// every item of every module; with a module reference it limits the sweep
// to that module; further arguments name individual telemetry items.
func RunQuery(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags busFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitCommandError
	}

	cfg, err := flags.buildConfig(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	logger, cleanup, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	defer cleanup()

	m, err := openMaster(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitBusError
	}
	defer m.Close()

	if err := m.LoadDefinitions(); err != nil {
		fmt.Fprintf(stderr, "Error: loading definitions: %v\n", err)
		return exitCommandError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rest := fs.Args()
	if len(rest) == 0 {
		return queryAll(ctx, m, stdout, stderr)
	}

	ref := rest[0]
	names := rest[1:]
	exitCode := exitSuccess
	err = m.WithModule(ref, func(mod *module.Module) error {
		exitCode = queryModule(ctx, mod, names, stdout, stderr)
		return nil
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	return exitCode
}

// queryAll sweeps every module concurrently.
func queryAll(ctx context.Context, m *master.Master, stdout, stderr io.Writer) int {
	exitCode := exitSuccess
	for _, r := range m.GetAllTelemetry(ctx) {
		fmt.Fprintf(stdout, "%#04x %s:\n", r.Module.Address(), r.Module.Name())
		if r.Err != nil {
			fmt.Fprintf(stderr, "  Error: %v\n", r.Err)
			exitCode = exitBusError
			continue
		}
		printValues(stdout, r.Value)
	}
	return exitCode
}

// queryModule fetches from one module: the named items, or everything.
func queryModule(ctx context.Context, mod *module.Module, names []string, stdout, stderr io.Writer) int {
	var (
		values map[string][]telemetry.Value
		err    error
	)
	if len(names) > 0 {
		values, err = mod.GetTelemetryByNames(ctx, names)
	} else {
		values, err = mod.GetAllTelemetry(ctx)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitBusError
	}

	fmt.Fprintf(stdout, "%#04x %s:\n", mod.Address(), mod.Name())
	printValues(stdout, values)
	return exitSuccess
}
