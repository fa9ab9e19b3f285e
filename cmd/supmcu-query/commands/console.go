package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/supmcu-protocol/supmcu-go/pkg/master"
	"github.com/supmcu-protocol/supmcu-go/pkg/module"
)

// RunConsole runs the interactive bus console.
func RunConsole(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
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

	// A stale or missing definition file is fine here; modules can be
	// discovered from inside the console.
	if cfg.DefinitionFile != "" {
		if err := m.LoadDefinitions(); err != nil {
			fmt.Fprintf(stderr, "Warning: loading definitions: %v\n", err)
		}
	}

	console, err := newConsole(m)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	console.run(ctx)
	return exitSuccess
}

// console is the interactive command loop over one bus master.
type console struct {
	m  *master.Master
	rl *readline.Instance
}

func newConsole(m *master.Master) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bus> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{m: m, rl: rl}, nil
}

func (c *console) run(ctx context.Context) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "modules", "m":
			c.cmdModules()

		case "discover", "d":
			c.cmdDiscover(ctx, args)

		case "get", "g":
			c.cmdGet(ctx, args)

		case "send", "s":
			c.cmdSend(args)

		case "delay":
			c.cmdDelay(args)

		case "save":
			c.cmdSave()

		case "exit", "quit", "q":
			return

		default:
			fmt.Fprintf(c.rl.Stderr(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `Commands:
  modules                 List modules and their discovery state
  discover [module]       Discover one module's catalog, or all
  get <module> [items...] Fetch telemetry (all items when none named)
  send <module> <cmd...>  Send a raw command, e.g. send BM SUP:RESET
  delay <module> <secs>   Set a module's response delay
  save                    Save the definition file
  help                    Show this help
  exit                    Leave the console`)
}

func (c *console) cmdModules() {
	for _, mod := range c.m.Modules() {
		state := "not discovered"
		if d := mod.Definition(); d != nil {
			state = fmt.Sprintf("%d telemetry items, %d commands",
				len(d.Telemetry), len(d.Commands))
		}
		name := mod.Name()
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %#04x %-8s %s\n", mod.Address(), name, state)
	}
}

func (c *console) cmdDiscover(ctx context.Context, args []string) {
	if len(args) == 0 {
		if err := c.m.DiscoverModules(ctx); err != nil {
			fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
		}
		c.cmdModules()
		return
	}
	err := c.m.WithModule(args[0], func(mod *module.Module) error {
		return mod.Discover(ctx)
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
		return
	}
	c.cmdModules()
}

func (c *console) cmdGet(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stderr(), "Usage: get <module> [items...]")
		return
	}
	err := c.m.WithModule(args[0], func(mod *module.Module) error {
		queryModule(ctx, mod, args[1:], c.rl.Stdout(), c.rl.Stderr())
		return nil
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
	}
}

func (c *console) cmdSend(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stderr(), "Usage: send <module> <command...>")
		return
	}
	cmd := strings.Join(args[1:], " ")
	if err := c.m.SendCommand(args[0], cmd); err != nil {
		fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Sent %q\n", cmd)
}

func (c *console) cmdDelay(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stderr(), "Usage: delay <module> <seconds>")
		return
	}
	seconds, err := strconv.ParseFloat(args[1], 64)
	if err != nil || seconds < 0 {
		fmt.Fprintf(c.rl.Stderr(), "Invalid delay %q\n", args[1])
		return
	}
	if err := c.m.SetResponseDelay(args[0], seconds); err != nil {
		fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Response delay set to %gs\n", seconds)
}

func (c *console) cmdSave() {
	if err := c.m.SaveDefinitions(); err != nil {
		fmt.Fprintf(c.rl.Stderr(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Definitions saved")
}
