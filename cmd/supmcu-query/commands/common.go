package commands

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/supmcu-protocol/supmcu-go/pkg/config"
	"github.com/supmcu-protocol/supmcu-go/pkg/log"
	"github.com/supmcu-protocol/supmcu-go/pkg/master"
	"github.com/supmcu-protocol/supmcu-go/pkg/module"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
	exitBusError     = 2
)

// busFlags holds the flags shared by every bus-facing command. Flags given
// on the command line override the configuration file.
type busFlags struct {
	configPath    string
	device        string
	addresses     string
	blacklist     string
	definitions   string
	capture       string
	workers       int
	retries       int
	noRetries     bool
	checksum      bool
	recoverPanics bool
	verbose       bool
}

func (f *busFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "configuration file (YAML)")
	fs.StringVar(&f.device, "device", "", "I2C bus device, e.g. /dev/i2c-1")
	fs.StringVar(&f.addresses, "addresses", "", "comma-separated bus addresses (skips scanning)")
	fs.StringVar(&f.blacklist, "blacklist", "", "comma-separated addresses the scan must not probe")
	fs.StringVar(&f.definitions, "definitions", "", "module definition file")
	fs.StringVar(&f.capture, "capture", "", "CBOR bus capture file")
	fs.IntVar(&f.workers, "workers", 0, "fan-out worker count")
	fs.IntVar(&f.retries, "retries", module.DefaultMaxRetries, "not-ready retry budget")
	fs.BoolVar(&f.noRetries, "no-retries", false, "fail immediately on not-ready responses")
	fs.BoolVar(&f.checksum, "checksum", false, "validate response footers")
	fs.BoolVar(&f.recoverPanics, "recover-panics", false, "keep sweeps alive across panicking operations")
	fs.BoolVar(&f.verbose, "verbose", false, "mirror bus events to the console")
}

// buildConfig layers the parsed flags over the configuration file (or the
// defaults when no file is given).
func (f *busFlags) buildConfig(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
	}

	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			cfg.Device = f.device
		case "addresses":
			cfg.Addresses, err = parseAddresses(f.addresses)
		case "blacklist":
			cfg.Blacklist, err = parseAddresses(f.blacklist)
		case "definitions":
			cfg.DefinitionFile = f.definitions
		case "capture":
			cfg.CaptureFile = f.capture
		case "workers":
			cfg.Workers = f.workers
		case "retries":
			retries := f.retries
			cfg.MaxRetries = &retries
		case "no-retries":
			retries := -1
			cfg.MaxRetries = &retries
		case "checksum":
			cfg.ChecksumValidation = f.checksum
		case "recover-panics":
			cfg.RecoverPanics = f.recoverPanics
		case "verbose":
			cfg.Verbose = f.verbose
		}
	})
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// parseAddresses parses a comma-separated address list in decimal or 0x
// hex.
func parseAddresses(s string) ([]uint16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var addrs []uint16
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		addr, err := strconv.ParseUint(part, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid bus address %q", part)
		}
		addrs = append(addrs, uint16(addr))
	}
	return addrs, nil
}

// newLogger assembles the bus event logger from the configuration: a CBOR
// capture file, console mirroring, both, or none. The returned cleanup
// closes the capture file.
func newLogger(cfg config.Config, stderr io.Writer) (log.Logger, func(), error) {
	var loggers []log.Logger
	cleanup := func() {}

	if cfg.CaptureFile != "" {
		fl, err := log.NewFileLogger(cfg.CaptureFile)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening capture file: %w", err)
		}
		loggers = append(loggers, fl)
		cleanup = func() { fl.Close() }
	}
	if cfg.Verbose {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, log.NewSlogAdapter(slog.New(handler)))
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, cleanup, nil
	case 1:
		return loggers[0], cleanup, nil
	default:
		return log.NewMultiLogger(loggers...), cleanup, nil
	}
}

// openMaster opens the bus per the configuration and wraps the modules in
// a Master.
func openMaster(cfg config.Config, logger log.Logger) (*master.Master, error) {
	modOpts := []module.Option{module.WithLogger(logger)}
	if cfg.ChecksumValidation {
		modOpts = append(modOpts, module.WithChecksumValidation())
	}
	if cfg.MaxRetries != nil {
		if *cfg.MaxRetries < 0 {
			modOpts = append(modOpts, module.WithoutRetries())
		} else {
			modOpts = append(modOpts, module.WithMaxRetries(*cfg.MaxRetries))
		}
	}
	if cfg.ResponseDelay > 0 {
		modOpts = append(modOpts, module.WithResponseDelay(cfg.ResponseDelay))
	}

	var (
		modules []*module.Module
		err     error
	)
	if len(cfg.Addresses) > 0 {
		modules, err = master.OpenAddresses(cfg.Device, cfg.Addresses, modOpts...)
	} else {
		modules, err = master.OpenBus(cfg.Device, cfg.Blacklist, modOpts...)
	}
	if err != nil {
		return nil, err
	}

	masterOpts := []master.Option{
		master.WithWorkers(cfg.Workers),
		master.WithLogger(logger),
	}
	if cfg.RecoverPanics {
		masterOpts = append(masterOpts, master.WithRecoverPanics())
	}
	if cfg.DefinitionFile != "" {
		masterOpts = append(masterOpts, master.WithDefinitionFile(cfg.DefinitionFile))
	}
	return master.New(modules, masterOpts...), nil
}

// printValues prints a telemetry sweep result sorted by item name.
func printValues(w io.Writer, values map[string][]telemetry.Value) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parts := make([]string, len(values[name]))
		for i, v := range values[name] {
			parts[i] = v.String()
		}
		fmt.Fprintf(w, "  %s = %s\n", name, strings.Join(parts, ", "))
	}
}
