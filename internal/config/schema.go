package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Kind is the value type of an Option.
type Kind string

const (
	KindString   Kind = "string"
	KindBool     Kind = "bool"
	KindInt      Kind = "int"
	KindDuration Kind = "duration"
	// KindList is comma separated; empty items are dropped.
	KindList Kind = "list"
)

// Check reports whether value is a valid k.
func (k Kind) Check(value string) error {
	var err error
	switch k {
	case KindString, KindList, "":
	case KindBool:
		_, err = ParseBool(value)
	case KindInt:
		_, err = strconv.Atoi(value)
	case KindDuration:
		_, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown option type %q", k)
	}
	if err != nil {
		return fmt.Errorf("expected %s, got %q", k, value)
	}
	return nil
}

// Option declares one config key. Section is empty for global options.
type Option struct {
	Section string
	Key     string
	Kind    Kind
	Default string
	// EnvVar overrides the file value, and names the Settings field the
	// option feeds.
	EnvVar string
	Usage  string
}

// Schema is the set of known options, in registration order.
type Schema struct {
	options []Option
	index   map[string]map[string]int
}

// NewSchema returns a schema holding opts.
func NewSchema(opts ...Option) *Schema {
	s := &Schema{index: make(map[string]map[string]int)}
	s.Add(opts...)
	return s
}

// Add registers opts. Registering a section and key again replaces the
// earlier option in place.
func (s *Schema) Add(opts ...Option) {
	for _, o := range opts {
		keys := s.index[o.Section]
		if keys == nil {
			keys = make(map[string]int)
			s.index[o.Section] = keys
		}
		if i, ok := keys[o.Key]; ok {
			s.options[i] = o
			continue
		}
		keys[o.Key] = len(s.options)
		s.options = append(s.options, o)
	}
}

// Lookup returns the option registered for exactly section and key.
func (s *Schema) Lookup(section, key string) (Option, bool) {
	i, ok := s.index[section][key]
	if !ok {
		return Option{}, false
	}
	return s.options[i], true
}

// Find is Lookup with the fallback config sections have: a global key may
// be set in any section.
func (s *Schema) Find(section, key string) (Option, bool) {
	if o, ok := s.Lookup(section, key); ok {
		return o, true
	}
	return s.Lookup("", key)
}

// Options returns the options of section in registration order.
func (s *Schema) Options(section string) []Option {
	var out []Option
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, o)
		}
	}
	return out
}

// Sections returns the named sections, sorted.
func (s *Schema) Sections() []string {
	var out []string
	for sec := range s.index {
		if sec != "" {
			out = append(out, sec)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of the global key: its environment
// variable, then the config file, then the default.
func (s *Schema) Resolve(c *Config, key string) string {
	o, known := s.Lookup("", key)
	if known && o.EnvVar != "" {
		if v, ok := os.LookupEnv(o.EnvVar); ok {
			return v
		}
	}
	if v, ok := c.Value("", key); ok {
		return v
	}
	return o.Default
}

// Validate returns one sorted message per unknown or mistyped value in c.
func (s *Schema) Validate(c *Config) []string {
	var issues []string
	for key, value := range c.Global {
		o, ok := s.Lookup("", key)
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
		case o.Kind.Check(value) != nil:
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, o.Kind.Check(value)))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			o, ok := s.Find(section, key)
			if !ok {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			if err := o.Kind.Check(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	slices.Sort(issues)
	return issues
}

// WriteHelp writes a reference of every option, globals first.
func (s *Schema) WriteHelp(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for i, sec := range append([]string{""}, s.Sections()...) {
		opts := s.Options(sec)
		if len(opts) == 0 {
			continue
		}
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		if sec == "" {
			_, _ = fmt.Fprintln(tw, "Global options:")
		} else {
			_, _ = fmt.Fprintf(tw, "[%s] options:\n", sec)
		}
		for _, o := range opts {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", o.Key, o.Usage, o.details())
		}
	}
	return tw.Flush()
}

func (o Option) details() string {
	var parts []string
	if o.Kind != "" && o.Kind != KindString {
		parts = append(parts, "type: "+string(o.Kind))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// DefaultSchema declares every playfeel option. Global options with an
// EnvVar are the Settings; the rest tune single commands.
func DefaultSchema() *Schema {
	return NewSchema(
		Option{Key: "url", Usage: "Base URL of the game build", EnvVar: "PLAYFEEL_URL"},
		Option{Key: "debug-global", Default: "__GAME_DEBUG__", Usage: "Name of the window debug object", EnvVar: "PLAYFEEL_DEBUG_GLOBAL"},
		Option{Key: "world-layout", Kind: KindList, Default: "4,4,4,4,4,4,4", Usage: "Levels per world", EnvVar: "PLAYFEEL_WORLD_LAYOUT"},
		Option{Key: "save-keys", Kind: KindList, Default: "game.save.v2,game.save.v1,game_save", Usage: "Storage keys the synthetic save is written under", EnvVar: "PLAYFEEL_SAVE_KEYS"},

		Option{Key: "scenario", Default: "all", Usage: "Scenario id, comma separated ids, or all", EnvVar: "PLAYFEEL_SCENARIO"},
		Option{Key: "levels", Default: "1-1", Usage: "Comma separated levels (1-1,2-3) or all", EnvVar: "PLAYFEEL_LEVELS"},
		Option{Key: "iterations", Kind: KindInt, Default: "1", Usage: "Choreography passes per pair", EnvVar: "PLAYFEEL_ITERATIONS"},
		Option{Key: "artifacts-root", Default: "artifacts", Usage: "Root directory for evidence and reports", EnvVar: "PLAYFEEL_ARTIFACTS_ROOT"},
		Option{Key: "contract", Usage: "Tolerance contract JSON file", EnvVar: "PLAYFEEL_CONTRACT"},
		Option{Key: "scenarios-dir", Usage: "Directory of <scenario>.json action files", EnvVar: "PLAYFEEL_SCENARIOS_DIR"},
		Option{Key: "timeout", Kind: KindDuration, Usage: "Abort the run after this long", EnvVar: "PLAYFEEL_TIMEOUT"},

		Option{Key: "driver", Default: "chrome", Usage: "Page driver: chrome or goja", EnvVar: "PLAYFEEL_DRIVER"},
		Option{Key: "headless", Kind: KindBool, Default: "true", Usage: "Run the browser headless", EnvVar: "PLAYFEEL_HEADLESS"},
		Option{Key: "viewport", Default: "1280x720", Usage: "Page viewport as WIDTHxHEIGHT", EnvVar: "PLAYFEEL_VIEWPORT"},
		Option{Key: "app-script", Usage: "Game script loaded by the goja driver", EnvVar: "PLAYFEEL_APP_SCRIPT"},
		Option{Key: "chrome.path", Usage: "Chromium binary for the chrome driver", EnvVar: "PLAYFEEL_CHROME_PATH"},
		Option{Key: "chrome.remote-url", Usage: "DevTools websocket of a running browser", EnvVar: "PLAYFEEL_CHROME_REMOTE_URL"},

		Option{Key: "log.file", Usage: "Log file path (JSON output)", EnvVar: "PLAYFEEL_LOG_FILE"},
		Option{Key: "log.level", Default: "info", Usage: "Log level: debug, info, warn, error", EnvVar: "PLAYFEEL_LOG_LEVEL"},
		Option{Key: "otel.endpoint", Usage: "OTLP/HTTP traces endpoint URL", EnvVar: "PLAYFEEL_OTEL_ENDPOINT"},

		Option{Section: "scenarios", Key: "format", Default: "auto", Usage: "Listing format: auto, table, plain"},
		Option{Section: "validate", Key: "strict", Kind: KindBool, Default: "false", Usage: "Treat config warnings as errors"},
	)
}
