package gojapage

import (
	"fmt"
	"log/slog"
)

type pageConfig struct {
	script     string
	scriptName string
	width      int
	height     int
	logger     *slog.Logger
}

// Option configures a Launcher.
type Option interface {
	applyOption(*pageConfig) error
}

// optionFunc is the concrete implementation of Option.
type optionFunc func(*pageConfig) error

func (f optionFunc) applyOption(c *pageConfig) error { return f(c) }

// WithScript sets the page script run after every navigation. name is used
// in stack traces.
func WithScript(name, source string) Option {
	return optionFunc(func(c *pageConfig) error {
		if name == "" {
			name = "page.js"
		}
		c.scriptName = name
		c.script = source
		return nil
	})
}

// WithViewport sets the screenshot dimensions.
// Default is 320x180.
func WithViewport(width, height int) Option {
	return optionFunc(func(c *pageConfig) error {
		if width <= 0 || height <= 0 {
			return fmt.Errorf("viewport must be positive, got %dx%d", width, height)
		}
		c.width, c.height = width, height
		return nil
	})
}

// WithLogger sets the logger receiving non-error console output.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *pageConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	})
}
