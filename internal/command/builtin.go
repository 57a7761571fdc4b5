package command

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/joeycumines/playfeel/internal/config"
	"github.com/joeycumines/playfeel/internal/fsutil"
)

// HelpCommand displays help information for commands.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(
			"help",
			"Display help information for commands",
			"help [command]",
		),
		registry: registry,
	}
}

// Execute displays help information.
func (c *HelpCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "playfeel - play-feel regression runs against a browser game build")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: playfeel [command] [options] [args...]")
		if def, ok := c.registry.Default(); ok {
			_, _ = fmt.Fprintf(stdout, "       playfeel --flag ...  (runs '%s')\n", def.Name())
		}
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Commands:")

		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()

		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'playfeel help <command>' for more information about a specific command (includes flags).")
		return nil
	}

	cmdName := args[0]
	cmd, err := c.registry.Get(cmdName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", cmdName)
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: %s\n", cmd.Usage())

	// Show command-specific flags (if any) by invoking SetupFlags on a temporary FlagSet
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	buf := &bytes.Buffer{}
	fs.SetOutput(buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand displays version information.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand(
			"version",
			"Display version information",
			"version",
		),
		version: version,
	}
}

// Execute displays version information.
func (c *VersionCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	_, _ = fmt.Fprintf(stdout, "playfeel version %s\n", c.version)
	return nil
}

// ConfigCommand inspects and edits the configuration file.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	section    string
	showAll    bool
}

// NewConfigCommand creates a new config command. An empty configPath
// resolves the default location when a value is set.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Show, check or set configuration options",
			"config [options] [key [value] | validate | schema]",
		),
		config:     cfg,
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the config command.
func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.showAll, "all", false, "Show every section, not just global options")
	fs.StringVar(&c.section, "section", "", "Section to read or write (default global)")
}

// Execute manages configuration.
func (c *ConfigCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	switch {
	case len(args) == 0:
		c.show(stdout)
		return nil
	case len(args) == 1 && args[0] == "validate":
		return c.executeValidate(stdout)
	case len(args) == 1 && args[0] == "schema":
		return config.DefaultSchema().WriteHelp(stdout)
	case len(args) == 1:
		key := args[0]
		if c.section != "" {
			if v, ok := c.config.Value(c.section, key); ok {
				_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, v)
				return nil
			}
		}
		if _, known := config.DefaultSchema().Lookup("", key); !known {
			if v, ok := c.config.Value("", key); ok {
				_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, v)
				return nil
			}
			_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
			return nil
		}
		// Schema-aware: env, then file, then default.
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, config.DefaultSchema().Resolve(c.config, key))
		return nil
	case len(args) == 2:
		return c.set(args[0], args[1], stdout, stderr)
	}
	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return fmt.Errorf("invalid arguments")
}

func (c *ConfigCommand) show(stdout io.Writer) {
	_, _ = fmt.Fprintln(stdout, "Global configuration:")
	printOptions(stdout, "  ", c.config.Global)
	if !c.showAll {
		return
	}
	sections := make([]string, 0, len(c.config.Commands))
	for name := range c.config.Commands {
		sections = append(sections, name)
	}
	sort.Strings(sections)
	for _, name := range sections {
		_, _ = fmt.Fprintf(stdout, "[%s]\n", name)
		printOptions(stdout, "  ", c.config.Commands[name])
	}
	if len(c.config.Classify) > 0 {
		_, _ = fmt.Fprintln(stdout, "[classify]")
		for _, r := range c.config.Classify {
			_, _ = fmt.Fprintf(stdout, "  %s: %s\n", r.Class, r.Pattern)
		}
	}
	if len(c.config.Signals) > 0 {
		_, _ = fmt.Fprintln(stdout, "[signals]")
		printOptions(stdout, "  ", c.config.Signals)
	}
	if len(c.config.Buttons) > 0 {
		_, _ = fmt.Fprintln(stdout, "[buttons]")
		printOptions(stdout, "  ", c.config.Buttons)
	}
}

func printOptions(w io.Writer, indent string, opts map[string]string) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s%s: %s\n", indent, k, opts[k])
	}
}

// set validates the option against the schema and persists it.
func (c *ConfigCommand) set(key, value string, stdout, stderr io.Writer) error {
	probe := config.NewConfig()
	if c.section == "" {
		probe.Global[key] = value
	} else {
		probe.Commands[c.section] = map[string]string{key: value}
	}
	if issues := config.DefaultSchema().Validate(probe); len(issues) > 0 {
		_, _ = fmt.Fprintf(stderr, "Refusing to set %s: %s\n", key, issues[0])
		return fmt.Errorf("invalid option %q", key)
	}

	path := c.configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	if err := config.SetOptionInFile(path, c.section, key, value); err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	if c.section == "" {
		c.config.Set(key, value)
	} else {
		if c.config.Commands[c.section] == nil {
			c.config.Commands[c.section] = make(map[string]string)
		}
		c.config.Commands[c.section][key] = value
	}
	_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
	return nil
}

// executeValidate validates the current config against the schema.
func (c *ConfigCommand) executeValidate(stdout io.Writer) error {
	issues := config.DefaultSchema().Validate(c.config)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return nil
}

// InitCommand writes a starter configuration file.
type InitCommand struct {
	*BaseCommand
	configPath string
	force      bool
}

// NewInitCommand creates a new init command. An empty configPath uses the
// default location.
func NewInitCommand(configPath string) *InitCommand {
	return &InitCommand{
		BaseCommand: NewBaseCommand(
			"init",
			"Write a starter configuration file",
			"init [options]",
		),
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the init command.
func (c *InitCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "Overwrite an existing configuration")
}

const starterConfig = `# playfeel configuration file
# Each line is "key value"; the value runs to the end of the line.
# Environment variables (PLAYFEEL_*) and flags override these values.
# Run 'playfeel config schema' for every option.

# url http://localhost:5173/
# driver chrome
# headless true
levels 1-1
iterations 1
artifacts-root artifacts
# contract contracts/playfeel.json
# scenarios-dir scenarios

# Command-specific options override the globals above.
[run]
scenario all

# Console and driver error classes, checked before the built-in rules.
# [classify]
# ignorable analytics
# transient re:(?i)websocket (closed|reset)

# Telemetry predicates (expr-lang) and hit-stop history paths (gjson).
# [signals]
# jump-cut player?.jumpCutApplied == true
# hitstop-history playfeel.stompHitstopTelemetry.history

# Logical buttons used by scenario files, mapped to key names.
# [buttons]
# jump z
`

// Execute writes the starter configuration.
func (c *InitCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	path := c.configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Configuration already exists at: %s\n", path)
		_, _ = fmt.Fprintln(stdout, "Use --force to overwrite existing configuration")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Load it back so a broken template fails here, not on the next run.
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return fmt.Errorf("failed to load created config: %w", err)
	}
	for _, w := range cfg.Warnings {
		_, _ = fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	_, _ = fmt.Fprintf(stdout, "Initialized playfeel configuration at: %s\n", path)
	return nil
}
