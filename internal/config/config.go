package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joeycumines/playfeel/internal/classify"
)

// Config is a parsed config file. Each line is "key value", where the value
// is the rest of the line; "[name]" starts a section.
type Config struct {
	// Global holds the options above the first section header.
	Global map[string]string
	// Commands holds the options of every other section, keyed by command.
	Commands map[string]map[string]string
	// Classify holds [classify] rules, in file order. They are evaluated
	// ahead of the built-in rules.
	Classify []classify.Rule
	// Signals holds [signals] overrides keyed by signal name.
	Signals map[string]string
	// Buttons holds [buttons] overrides: logical button to key name.
	Buttons map[string]string
	// Warnings lists unknown or mistyped options. They never fail a load.
	Warnings []string
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
		Signals:  make(map[string]string),
		Buttons:  make(map[string]string),
		Warnings: make([]string, 0),
	}
}

const (
	sectionClassify = "classify"
	sectionSignals  = "signals"
	sectionButtons  = "buttons"
)

// Load reads the file named by GetConfigPath.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the config file at path. A missing file is an empty
// Config; a symlink is an error.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return NewConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	case fi.Mode()&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses a config file. Malformed [classify] and [buttons]
// lines are errors; anything the schema does not know is a warning.
func LoadFromReader(r io.Reader) (*Config, error) {
	p := parser{cfg: NewConfig()}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		if err := p.parseLine(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range DefaultSchema().Validate(p.cfg) {
		p.cfg.warn("%s", issue)
	}
	return p.cfg, nil
}

type parser struct {
	cfg     *Config
	section string
	line    int
}

func (p *parser) parseLine(line string) error {
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
		p.section = strings.TrimSpace(line[1 : len(line)-1])
		switch p.section {
		case "", sectionClassify, sectionSignals, sectionButtons:
		default:
			if p.cfg.Commands[p.section] == nil {
				p.cfg.Commands[p.section] = make(map[string]string)
			}
		}
		return nil
	}

	key, value, _ := strings.Cut(line, " ")
	value = strings.TrimSpace(value)
	switch p.section {
	case "":
		p.cfg.Global[key] = value
	case sectionClassify:
		rule, err := parseClassifyLine(key, value)
		if err != nil {
			return fmt.Errorf("invalid classify rule: %w", err)
		}
		p.cfg.Classify = append(p.cfg.Classify, rule)
	case sectionSignals:
		if !isSignalKey(key) {
			p.cfg.warn("unknown signal %q on line %d", key, p.line)
			return nil
		}
		p.cfg.Signals[key] = value
	case sectionButtons:
		if value == "" {
			return fmt.Errorf("button %q has no key", key)
		}
		p.cfg.Buttons[strings.ToLower(key)] = value
	default:
		p.cfg.Commands[p.section][key] = value
	}
	return nil
}

// parseClassifyLine parses "<class> <pattern>", e.g.
//
//	ignorable favicon
//	transient re:(?i)websocket closed
func parseClassifyLine(class, pattern string) (classify.Rule, error) {
	c, err := classify.ParseClass(class)
	if err != nil {
		return classify.Rule{}, err
	}
	if pattern == "" {
		return classify.Rule{}, fmt.Errorf("%s rule has no pattern", class)
	}
	return classify.NewRule(c, pattern)
}

func (c *Config) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("config: " + msg)
}

// ParseBool accepts true/false, yes/no, on/off and 1/0, in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

// Value returns key from section, falling back to the global options.
// Section "" reads the globals only.
func (c *Config) Value(section, key string) (string, bool) {
	if v, ok := c.Commands[section][key]; ok {
		return v, true
	}
	v, ok := c.Global[key]
	return v, ok
}

// Set sets a global option.
func (c *Config) Set(key, value string) {
	c.Global[key] = value
}
