package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joeycumines/playfeel/internal/command"
	"github.com/joeycumines/playfeel/internal/config"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, env.ToMap(os.Environ()))
	stop()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, environ map[string]string) error {
	configPath, args, err := extractConfigFlag(args)
	if err != nil {
		return err
	}
	if configPath == "" {
		if configPath, err = config.GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := command.NewRegistry()
	helpCmd := command.NewHelpCommand(registry)
	registry.Register(helpCmd)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewInitCommand(configPath))
	registry.Register(command.NewRunCommand(cfg, environ))
	registry.Register(command.NewScenariosCommand(cfg, environ))
	registry.Register(command.NewValidateCommand(cfg, environ))
	registry.Register(command.NewCompletionCommand(registry))
	registry.SetDefault("run")

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return helpCmd.Execute(ctx, nil, stdout, stderr)
	}

	var cmd command.Command
	cmdArgs := args[1:]
	if strings.HasPrefix(args[0], "-") {
		// Flags without a command go to the default command.
		def, _ := registry.Default()
		cmd, cmdArgs = def, args
	} else if cmd, err = registry.Get(args[0]); err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		_, _ = fmt.Fprintln(stderr, "Use 'playfeel help' to see available commands.")
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: playfeel %s\n", cmd.Usage())
		_, _ = fmt.Fprintf(stderr, "\n%s\n\n", cmd.Description())
		_, _ = fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)
	if err := fs.Parse(cmdArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return cmd.Execute(ctx, fs.Args(), stdout, stderr)
}

// extractConfigFlag removes -config/--config (with a separate or "="
// value) from args. Scanning stops at "--".
func extractConfigFlag(args []string) (string, []string, error) {
	var path string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			rest = append(rest, a)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return "", nil, errors.New("flag needs an argument: -config")
			}
			i++
			value = args[i]
		}
		path = value
	}
	return path, rest, nil
}
