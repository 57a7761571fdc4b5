package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/playfeel/internal/choreography"
	"github.com/joeycumines/playfeel/internal/config"
	"github.com/joeycumines/playfeel/internal/signal"
)

// ValidateCommand checks the inputs of a run without opening a page: the
// config file, the signal overrides, the contract and the action files.
type ValidateCommand struct {
	*BaseCommand
	settingsBase
	strict bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(cfg *config.Config, environ map[string]string) *ValidateCommand {
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Check the config, contract and scenario files",
			"validate [options]",
		),
		settingsBase: newSettingsBase(cfg, environ),
	}
}

// SetupFlags configures the flags for the validate command.
func (c *ValidateCommand) SetupFlags(fs *flag.FlagSet) {
	c.bindSettings(c.Name(), fs)
	def := false
	if v, ok := c.cfg.Value(c.Name(), "strict"); ok {
		def, _ = config.ParseBool(v)
	}
	fs.BoolVar(&c.strict, "strict", def, "Treat config warnings as errors")
}

// errInvalid is returned when any check fails; the details are printed.
var errInvalid = errors.New("validation failed")

// Execute runs every check and prints one line per check.
func (c *ValidateCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	s, err := c.resolved(c.Name())
	if err != nil {
		return err
	}

	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			_, _ = fmt.Fprintf(stdout, "FAIL  %s: %v\n", name, err)
			return
		}
		_, _ = fmt.Fprintf(stdout, "ok    %s\n", name)
	}
	notice := func(name, msg string) {
		_, _ = fmt.Fprintf(stdout, "note  %s: %s\n", name, msg)
	}

	// Config warnings.
	for _, w := range c.cfg.Warnings {
		if c.strict {
			report("config", errors.New(w))
		} else {
			notice("config", w)
		}
	}

	_, err = signal.NewEvaluator(signal.DefaultSignals().Merge(c.cfg.SignalOverrides()))
	report("signals", err)

	buttons, err := choreography.DefaultButtons().With(c.cfg.Buttons)
	report("buttons", err)
	if err != nil {
		buttons = choreography.DefaultButtons()
	}

	if s.Contract == "" {
		notice("contract", "none configured, defaults in use")
	} else {
		_, err := signal.LoadContract(s.Contract)
		report("contract "+s.Contract, err)
	}

	if s.ScenariosDir == "" {
		notice("scenarios", "no scenarios dir, built-in timelines in use")
	} else {
		for _, id := range signal.Scenarios {
			path := choreography.FilePath(s.ScenariosDir, id)
			_, _, err := choreography.LoadFile(path, buttons)
			switch {
			case errors.Is(err, os.ErrNotExist):
				notice("scenario "+id, "no action file, built-in timeline in use")
			case errors.Is(err, choreography.ErrNoSteps):
				notice("scenario "+id, "action file has no steps, built-in timeline in use")
			default:
				report("scenario "+path, err)
			}
		}
	}

	if failed {
		return errInvalid
	}
	return nil
}
