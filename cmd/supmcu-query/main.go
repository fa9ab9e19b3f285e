// supmcu-query is a CLI tool for discovering and querying SupMCU modules
// on an I2C bus.
package main

import (
	"fmt"
	"os"

	"github.com/supmcu-protocol/supmcu-go/cmd/supmcu-query/commands"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitCommandError)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var exitCode int
	switch cmd {
	case "scan":
		exitCode = commands.RunScan(args, os.Stdout, os.Stderr)
	case "discover":
		exitCode = commands.RunDiscover(args, os.Stdout, os.Stderr)
	case "query":
		exitCode = commands.RunQuery(args, os.Stdout, os.Stderr)
	case "console":
		exitCode = commands.RunConsole(args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage()
		exitCode = exitSuccess
	case "version", "-v", "--version":
		fmt.Println("supmcu-query version 0.1.0")
		exitCode = exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		exitCode = exitCommandError
	}

	os.Exit(exitCode)
}

func printUsage() {
	fmt.Println(`supmcu-query - SupMCU module discovery and telemetry tool

Usage:
  supmcu-query <command> [options] [args...]

Commands:
  scan       Scan an I2C bus for responsive addresses
  discover   Discover module catalogs and save the definition file
  query      Fetch telemetry from modules
  console    Interactive bus console

Options:
  -h, --help     Show this help message
  -v, --version  Show version information

Examples:
  supmcu-query scan --device /dev/i2c-1
  supmcu-query discover --device /dev/i2c-1 --definitions modules.json
  supmcu-query query BM battery_voltage
  supmcu-query query 0x52
  supmcu-query console --capture bus.cbor

For command-specific help, run:
  supmcu-query <command> --help`)
}
