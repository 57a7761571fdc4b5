package command

import (
	"context"
	"flag"
	"io"

	"github.com/joeycumines/playfeel/internal/config"
)

// Command represents a command that can be executed.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a short description of the command.
	Description() string

	// Usage returns the usage string for the command.
	Usage() string

	// SetupFlags configures the flag.FlagSet for this command.
	// The FlagSet will be used to parse command-specific arguments.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the given arguments.
	// args contains the arguments after flags have been parsed. ctx is
	// cancelled on interrupt.
	Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// BaseCommand provides a basic implementation that other commands can embed.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

// Name returns the command name.
func (c *BaseCommand) Name() string {
	return c.name
}

// Description returns the command description.
func (c *BaseCommand) Description() string {
	return c.description
}

// Usage returns the command usage.
func (c *BaseCommand) Usage() string {
	return c.usage
}

// SetupFlags is a default implementation that does nothing.
// Commands should override this to add their specific flags.
func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}

// settingsBase resolves config.Settings for the commands that take the
// shared run options as flags.
type settingsBase struct {
	cfg      *config.Config
	environ  map[string]string
	settings *config.Settings
	err      error
}

func newSettingsBase(cfg *config.Config, environ map[string]string) settingsBase {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return settingsBase{cfg: cfg, environ: environ}
}

// bindSettings resolves the settings for section and registers them on fs.
// A resolution error is reported by Execute, so help still lists the flags.
func (b *settingsBase) bindSettings(section string, fs *flag.FlagSet) {
	b.settings, b.err = config.LoadSettings(b.cfg, section, b.environ)
	if b.err != nil {
		b.settings = &config.Settings{}
	}
	b.settings.BindFlags(fs)
}

// resolved returns the settings, resolving them without flags if
// SetupFlags was never called.
func (b *settingsBase) resolved(section string) (*config.Settings, error) {
	if b.settings == nil && b.err == nil {
		b.settings, b.err = config.LoadSettings(b.cfg, section, b.environ)
	}
	return b.settings, b.err
}
