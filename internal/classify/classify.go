// Package classify sorts error and console messages into ignorable,
// transient and fatal classes using an explicit, ordered rule list.
package classify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Class is the disposition of a message.
type Class int

const (
	// Fatal is the default for anything no rule matches.
	Fatal Class = iota
	// Transient errors are retried locally.
	Transient
	// Ignorable messages are known-benign noise.
	Ignorable
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Ignorable:
		return "ignorable"
	default:
		return "fatal"
	}
}

// ParseClass parses a class name.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fatal":
		return Fatal, nil
	case "transient", "retry":
		return Transient, nil
	case "ignorable", "ignore":
		return Ignorable, nil
	default:
		return Fatal, fmt.Errorf("unknown class %q", s)
	}
}

// Rule maps a pattern to a class. A pattern prefixed with "re:" is a regular
// expression; anything else is a case-insensitive substring.
type Rule struct {
	Class   Class
	Pattern string

	re *regexp.Regexp
}

// NewRule compiles a rule.
func NewRule(class Class, pattern string) (Rule, error) {
	r := Rule{Class: class, Pattern: pattern}
	if expr, ok := strings.CutPrefix(pattern, "re:"); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid rule pattern %q: %w", pattern, err)
		}
		r.re = re
	} else if strings.TrimSpace(pattern) == "" {
		return Rule{}, errors.New("empty rule pattern")
	}
	return r, nil
}

func (r Rule) match(msg string) bool {
	if r.re != nil {
		return r.re.MatchString(msg)
	}
	return strings.Contains(strings.ToLower(msg), strings.ToLower(r.Pattern))
}

// Classifier evaluates rules in order; the first match wins.
type Classifier struct {
	rules []Rule
}

// New builds a Classifier from rules evaluated in the given order.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Default returns the built-in rule set.
func Default() *Classifier {
	return New(DefaultRules()...)
}

// DefaultRules lists the known-benign console noise and the transient
// navigation races.
func DefaultRules() []Rule {
	return []Rule{
		mustRule(Transient, "Execution context was destroyed"),
		mustRule(Transient, "context was destroyed"),
		mustRule(Transient, "Cannot find context with specified id"),
		mustRule(Transient, "Inspected target navigated or closed"),
		mustRule(Transient, "navigation"),
		mustRule(Transient, "net::ERR_ABORTED"),
		mustRule(Transient, "re:(?i)target (closed|detached) during"),

		mustRule(Ignorable, "favicon"),
		mustRule(Ignorable, "re:(?i)\\.map\\b"),
		mustRule(Ignorable, "source map"),
		mustRule(Ignorable, "net::ERR_FILE_NOT_FOUND"),
		mustRule(Ignorable, "re:(?i)failed to load resource.*\\b404\\b"),
		mustRule(Ignorable, "re:(?i)optional asset"),
		mustRule(Ignorable, "decodeAudioData"),
		mustRule(Ignorable, "Unable to decode audio data"),
		mustRule(Ignorable, "EncodingError"),
		mustRule(Ignorable, "The AudioContext was not allowed to start"),
		mustRule(Ignorable, "play() failed because the user didn't interact"),
	}
}

func mustRule(class Class, pattern string) Rule {
	r, err := NewRule(class, pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// Prepend returns a Classifier whose extra rules are evaluated before the
// receiver's rules.
func (c *Classifier) Prepend(extra ...Rule) *Classifier {
	var base []Rule
	if c != nil {
		base = c.rules
	}
	rules := make([]Rule, 0, len(extra)+len(base))
	rules = append(rules, extra...)
	rules = append(rules, base...)
	return &Classifier{rules: rules}
}

// Rules returns a copy of the rule list.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the class of msg.
func (c *Classifier) Classify(msg string) Class {
	if c == nil {
		return Fatal
	}
	for _, r := range c.rules {
		if r.match(msg) {
			return r.Class
		}
	}
	return Fatal
}

// IsTransient reports whether err should be retried locally. Context
// cancellation is never transient.
func (c *Classifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return c.Classify(err.Error()) == Transient
}

// Unexpected filters out ignorable console messages.
func (c *Classifier) Unexpected(messages []string) []string {
	var out []string
	for _, m := range messages {
		if c.Classify(m) != Ignorable {
			out = append(out, m)
		}
	}
	return out
}
