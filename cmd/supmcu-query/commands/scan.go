package commands

import (
	"flag"
	"fmt"
	"io"

	"github.com/supmcu-protocol/supmcu-go/pkg/transport"
)

// RunScan runs the scan command: probe the bus and list responsive
// addresses.
func RunScan(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
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

	addresses, err := transport.ScanBus(cfg.Device, cfg.Blacklist)
	if err != nil {
		fmt.Fprintf(stderr, "Error: scanning %s: %v\n", cfg.Device, err)
		return exitBusError
	}

	if len(addresses) == 0 {
		fmt.Fprintf(stdout, "No responsive addresses on %s\n", cfg.Device)
		return exitSuccess
	}
	fmt.Fprintf(stdout, "Responsive addresses on %s:\n", cfg.Device)
	for _, addr := range addresses {
		fmt.Fprintf(stdout, "  %#04x\n", addr)
	}
	return exitSuccess
}
