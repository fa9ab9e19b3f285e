package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/supmcu-protocol/supmcu-go/pkg/model"
)

// RunDiscover runs the discover command: walk every module's catalog and
// persist the definition file.
func RunDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := m.DiscoverModules(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		// Partial catalogs are still printed and saved below the error.
	}

	defs := m.Definitions()
	if len(defs) == 0 {
		fmt.Fprintln(stdout, "No modules discovered")
		return exitBusError
	}
	for i := range defs {
		printDefinition(stdout, &defs[i])
	}
	if cfg.DefinitionFile != "" {
		fmt.Fprintf(stdout, "Definitions saved to %s\n", cfg.DefinitionFile)
	}
	return exitSuccess
}

func printDefinition(w io.Writer, def *model.ModuleDefinition) {
	fmt.Fprintf(w, "%s\n", def.String())
	fmt.Fprintf(w, "  mcu: %s, simulatable: %v, response delay: %gs\n",
		def.Mcu, def.Simulatable, def.ResponseDelay)
	fmt.Fprintf(w, "  telemetry: %d SupMCU, %d module\n",
		len(def.SupMCUTelemetry()), len(def.ModuleTelemetry()))
	fmt.Fprintf(w, "  commands: %d\n", len(def.Commands))
}
