package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/browser/chrome"
	"github.com/joeycumines/playfeel/internal/browser/gojapage"
	"github.com/joeycumines/playfeel/internal/choreography"
	"github.com/joeycumines/playfeel/internal/config"
	"github.com/joeycumines/playfeel/internal/harness"
	"github.com/joeycumines/playfeel/internal/level"
	"github.com/joeycumines/playfeel/internal/navigate"
	"github.com/joeycumines/playfeel/internal/signal"
	"github.com/joeycumines/playfeel/internal/tracing"
)

// Page drivers.
const (
	DriverChrome = "chrome"
	DriverGoja   = "goja"
)

// RunCommand executes every selected scenario against every selected level
// and appends one Finding per pair to the findings report.
type RunCommand struct {
	*BaseCommand
	settingsBase

	// timings overrides the navigation waits, for tests.
	timings navigate.Timings
	// styled forces the summary table on or off; nil detects a terminal.
	styled *bool
}

// NewRunCommand creates the run command. environ is the process
// environment, as from env.ToMap(os.Environ()).
func NewRunCommand(cfg *config.Config, environ map[string]string) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run play-feel scenarios against a game build",
			"run --url <url> [options]",
		),
		settingsBase: newSettingsBase(cfg, environ),
	}
}

// SetupFlags registers the shared settings flags.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.bindSettings(c.Name(), fs)
}

// Execute runs the harness. Findings never fail the command; only a run
// that cannot start or complete does.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	s, err := c.resolved(c.Name())
	if err != nil {
		return err
	}

	lc, err := resolveLogConfig(s)
	if err != nil {
		return err
	}
	if lc.logFile != nil {
		defer lc.logFile.Close()
	}
	logger := lc.logger(stderr)

	rc, err := c.runContext(s, logger)
	if err != nil {
		return err
	}

	shutdown, err := tracing.Setup(ctx, tracing.ServiceName, s.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("trace export failed", "error", err)
		}
	}()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	launcher, err := newLauncher(ctx, s, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := launcher.Close(); err != nil {
			logger.Debug("launcher close failed", "error", err)
		}
	}()

	coordinator, err := harness.NewCoordinator(rc, launcher)
	if err != nil {
		return err
	}
	summary, runErr := coordinator.Run(ctx)

	styled := harness.IsTerminal(stdout)
	if c.styled != nil {
		styled = *c.styled
	}
	if err := summary.Render(stdout, styled); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write summary: %w", err))
	}
	if runErr != nil {
		return fmt.Errorf("run %s incomplete: %w", summary.RunID, runErr)
	}
	return nil
}

// runContext validates s and builds the run configuration from it and the
// config file sections.
func (c *RunCommand) runContext(s *config.Settings, logger *slog.Logger) (harness.RunContext, error) {
	if s.URL == "" {
		return harness.RunContext{}, errors.New("a base URL is required (--url or PLAYFEEL_URL)")
	}
	layout, err := level.ParseLayout(s.WorldLayout)
	if err != nil {
		return harness.RunContext{}, err
	}
	levels, err := level.ParseLevels(s.Levels, layout)
	if err != nil {
		return harness.RunContext{}, err
	}
	scenarios, err := signal.ParseScenarios(s.Scenario)
	if err != nil {
		return harness.RunContext{}, err
	}
	buttons, err := choreography.DefaultButtons().With(c.cfg.Buttons)
	if err != nil {
		return harness.RunContext{}, fmt.Errorf("invalid [buttons] config: %w", err)
	}
	return harness.RunContext{
		BaseURL:       s.URL,
		Iterations:    s.Iterations,
		ArtifactsRoot: s.ArtifactsRoot,
		Headless:      s.Headless,
		Scenarios:     scenarios,
		Levels:        levels,
		ContractPath:  s.Contract,
		ScenariosDir:  s.ScenariosDir,
		DebugGlobal:   s.DebugGlobal,
		Layout:        layout,
		SaveKeys:      s.SaveKeys,
		Classifier:    c.cfg.Classifier(),
		Signals:       c.cfg.SignalOverrides(),
		Buttons:       buttons,
		Timings:       c.timings,
		Logger:        logger,
	}, nil
}

// newLauncher opens the page driver selected by s.
func newLauncher(ctx context.Context, s *config.Settings, logger *slog.Logger) (browser.Launcher, error) {
	width, height, err := config.ParseViewport(s.Viewport)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(s.Driver) {
	case DriverChrome, "":
		return chrome.NewLauncher(ctx, chrome.Options{
			Headless:  s.Headless,
			ExecPath:  s.ChromePath,
			RemoteURL: s.ChromeRemoteURL,
			Width:     width,
			Height:    height,
			Logger:    logger.With("component", "chrome"),
		})
	case DriverGoja:
		if s.AppScript == "" {
			return nil, errors.New("the goja driver needs --app-script")
		}
		src, err := os.ReadFile(s.AppScript)
		if err != nil {
			return nil, fmt.Errorf("failed to read app script: %w", err)
		}
		return gojapage.NewLauncher(
			gojapage.WithScript(filepath.Base(s.AppScript), string(src)),
			gojapage.WithViewport(width, height),
			gojapage.WithLogger(logger.With("component", "goja")),
		)
	default:
		return nil, fmt.Errorf("unknown driver %q (want %s or %s)", s.Driver, DriverChrome, DriverGoja)
	}
}
