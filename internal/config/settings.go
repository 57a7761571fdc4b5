package config

import (
	"flag"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joeycumines/playfeel/internal/classify"
	"github.com/joeycumines/playfeel/internal/signal"
)

// Settings are the resolved options of one command invocation.
//
// Precedence, highest first: flags, the environment, the command's config
// section, the global config options, the schema defaults.
type Settings struct {
	URL           string        `env:"PLAYFEEL_URL"`
	Scenario      string        `env:"PLAYFEEL_SCENARIO"`
	Levels        string        `env:"PLAYFEEL_LEVELS"`
	Iterations    int           `env:"PLAYFEEL_ITERATIONS"`
	ArtifactsRoot string        `env:"PLAYFEEL_ARTIFACTS_ROOT"`
	Contract      string        `env:"PLAYFEEL_CONTRACT"`
	ScenariosDir  string        `env:"PLAYFEEL_SCENARIOS_DIR"`
	Timeout       time.Duration `env:"PLAYFEEL_TIMEOUT"`

	DebugGlobal string   `env:"PLAYFEEL_DEBUG_GLOBAL"`
	WorldLayout string   `env:"PLAYFEEL_WORLD_LAYOUT"`
	SaveKeys    []string `env:"PLAYFEEL_SAVE_KEYS" envSeparator:","`

	Driver          string `env:"PLAYFEEL_DRIVER"`
	Headless        bool   `env:"PLAYFEEL_HEADLESS"`
	Viewport        string `env:"PLAYFEEL_VIEWPORT"`
	AppScript       string `env:"PLAYFEEL_APP_SCRIPT"`
	ChromePath      string `env:"PLAYFEEL_CHROME_PATH"`
	ChromeRemoteURL string `env:"PLAYFEEL_CHROME_REMOTE_URL"`

	LogLevel     string `env:"PLAYFEEL_LOG_LEVEL"`
	LogFile      string `env:"PLAYFEEL_LOG_FILE"`
	OtelEndpoint string `env:"PLAYFEEL_OTEL_ENDPOINT"`
}

// LoadSettings resolves Settings for the command named section. File values
// are mapped onto their schema environment variables and merged under
// environ, so a single env.Parse applies every layer below the flags.
func LoadSettings(cfg *Config, section string, environ map[string]string) (*Settings, error) {
	schema := DefaultSchema()
	merged := make(map[string]string)
	for _, opt := range schema.Options("") {
		if opt.EnvVar == "" {
			continue
		}
		if opt.Default != "" {
			merged[opt.EnvVar] = opt.Default
		}
		if cfg == nil {
			continue
		}
		value, ok := cfg.Value(section, opt.Key)
		if !ok {
			continue
		}
		if opt.Kind == KindBool {
			// env parses with strconv, which has no yes/no/on/off.
			b, err := ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("config option %q: %w", opt.Key, err)
			}
			value = fmt.Sprint(b)
		}
		merged[opt.EnvVar] = value
	}
	maps.Copy(merged, environ)

	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}
	return &s, nil
}

// BindFlags registers a flag for every setting, defaulting to its resolved
// value.
func (s *Settings) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.URL, "url", s.URL, "Base URL of the game build")
	fs.StringVar(&s.Scenario, "scenario", s.Scenario, "Scenario id, comma separated ids, or all")
	fs.StringVar(&s.Levels, "levels", s.Levels, "Comma separated levels (1-1,2-3) or all")
	fs.IntVar(&s.Iterations, "iterations", s.Iterations, "Choreography passes per pair")
	fs.StringVar(&s.ArtifactsRoot, "artifacts-root", s.ArtifactsRoot, "Root directory for evidence and reports")
	fs.StringVar(&s.Contract, "contract", s.Contract, "Tolerance contract JSON file")
	fs.StringVar(&s.ScenariosDir, "scenarios-dir", s.ScenariosDir, "Directory of <scenario>.json action files")
	fs.DurationVar(&s.Timeout, "timeout", s.Timeout, "Abort the run after this long (0 disables)")

	fs.StringVar(&s.DebugGlobal, "debug-global", s.DebugGlobal, "Name of the window debug object")
	fs.StringVar(&s.WorldLayout, "world-layout", s.WorldLayout, "Levels per world, comma separated")
	fs.Func("save-keys", "Storage keys the synthetic save is written under (default "+strings.Join(s.SaveKeys, ",")+")", func(v string) error {
		s.SaveKeys = SplitList(v)
		return nil
	})

	fs.StringVar(&s.Driver, "driver", s.Driver, "Page driver: chrome or goja")
	fs.Func("headless", fmt.Sprintf("Run the browser headless: true or false (default %t)", s.Headless), func(v string) error {
		b, err := ParseBool(v)
		if err != nil {
			return err
		}
		s.Headless = b
		return nil
	})
	fs.StringVar(&s.Viewport, "viewport", s.Viewport, "Page viewport as WIDTHxHEIGHT")
	fs.StringVar(&s.AppScript, "app-script", s.AppScript, "Game script loaded by the goja driver")
	fs.StringVar(&s.ChromePath, "chrome-path", s.ChromePath, "Chromium binary for the chrome driver")
	fs.StringVar(&s.ChromeRemoteURL, "chrome-remote-url", s.ChromeRemoteURL, "DevTools websocket of a running browser")

	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&s.LogFile, "log-file", s.LogFile, "Log file path (JSON output)")
	fs.StringVar(&s.OtelEndpoint, "otel-endpoint", s.OtelEndpoint, "OTLP/HTTP traces endpoint URL")
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid viewport %q: want WIDTHxHEIGHT", s)
	}
	if _, err := fmt.Sscan(w, &width); err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport width in %q", s)
	}
	if _, err := fmt.Sscan(h, &height); err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport height in %q", s)
	}
	return width, height, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// [signals] keys.
const (
	SignalJumpCut        = "jump-cut"
	SignalRun            = "run"
	SignalSkid           = "skid"
	SignalHitstopHistory = "hitstop-history"
)

func isSignalKey(k string) bool {
	switch k {
	case SignalJumpCut, SignalRun, SignalSkid, SignalHitstopHistory:
		return true
	}
	return false
}

// SignalOverrides returns the [signals] section as overrides for
// signal.DefaultSignals.
func (c *Config) SignalOverrides() signal.Signals {
	return signal.Signals{
		JumpCut:        c.Signals[SignalJumpCut],
		Run:            c.Signals[SignalRun],
		Skid:           c.Signals[SignalSkid],
		HitstopHistory: SplitList(c.Signals[SignalHitstopHistory]),
	}
}

// Classifier returns the default classifier with the [classify] rules
// evaluated first.
func (c *Config) Classifier() *classify.Classifier {
	return classify.Default().Prepend(c.Classify...)
}
