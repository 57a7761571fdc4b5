// Package choreography turns scenario timelines into frame-stepped key
// input against the target.
package choreography

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/joeycumines/playfeel/internal/browser"
)

// ErrUnknownButton is returned when a step names a button with no mapping.
var ErrUnknownButton = errors.New("unknown button")

// Step holds Buttons down for Frames simulated frames. An empty Buttons list
// is an idle hold.
type Step struct {
	Buttons []string `json:"buttons"`
	Frames  int      `json:"frames"`
}

// ButtonMap maps logical button names, lower case, to keys.
type ButtonMap map[string]browser.Key

// DefaultButtons returns the stock mapping.
func DefaultButtons() ButtonMap {
	return ButtonMap{
		"left":   browser.KeyArrowLeft,
		"right":  browser.KeyArrowRight,
		"up":     browser.KeyArrowUp,
		"down":   browser.KeyArrowDown,
		"space":  browser.KeySpace,
		"jump":   browser.KeySpace,
		"shift":  browser.KeyShift,
		"run":    browser.KeyShift,
		"attack": browser.KeyX,
		"enter":  browser.KeyEnter,
		"escape": browser.KeyEscape,
	}
}

// With returns a copy of m with overrides applied. Override values are DOM
// key or code names.
func (m ButtonMap) With(overrides map[string]string) (ButtonMap, error) {
	out := maps.Clone(m)
	if out == nil {
		out = ButtonMap{}
	}
	for name, keyName := range overrides {
		k, err := browser.LookupKey(keyName)
		if err != nil {
			return nil, fmt.Errorf("button %q: %w", name, err)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = k
	}
	return out, nil
}

// Resolve returns the keys for buttons, in order.
func (m ButtonMap) Resolve(buttons []string) ([]browser.Key, error) {
	keys := make([]browser.Key, 0, len(buttons))
	for _, b := range buttons {
		k, ok := m[strings.ToLower(strings.TrimSpace(b))]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownButton, b)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Names returns the mapped button names, sorted.
func (m ButtonMap) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TotalFrames sums the frames of steps.
func TotalFrames(steps []Step) int {
	n := 0
	for _, s := range steps {
		n += s.Frames
	}
	return n
}
