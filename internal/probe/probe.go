// Package probe decides whether the target has stably arrived at a scene by
// polling its debug contract.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
)

const (
	// DefaultInterval is the poll period.
	DefaultInterval = 50 * time.Millisecond
	// StableReads is the number of consecutive matching polls required.
	StableReads = 2
	// InteractiveFrames is how many frames a scene must have run past its
	// ready frame before input is safe.
	InteractiveFrames = 2
)

// SceneState is one read of the target's scene counters.
type SceneState struct {
	Available       bool     `json:"available"`
	SceneName       string   `json:"sceneName"`
	SceneReady      bool     `json:"sceneReady"`
	SceneFrame      int      `json:"sceneFrame"`
	SceneReadyFrame int      `json:"sceneReadyFrame"`
	ActiveScenes    []string `json:"activeScenes"`
	HasRender       bool     `json:"hasRender"`
	HasDebugState   bool     `json:"hasDebugState"`
}

// Interactive reports whether the scene has run long enough past its ready
// frame to accept input.
func Interactive(s SceneState) bool {
	return s.Available && s.SceneFrame >= 0 && s.SceneFrame-s.SceneReadyFrame >= InteractiveFrames
}

// Config configures a Probe.
type Config struct {
	// DebugGlobal is the window property holding the debug contract.
	DebugGlobal string
	// GameplayScene is the scene eligible for the relaxed readiness check.
	GameplayScene string
	// Interval overrides DefaultInterval.
	Interval time.Duration
	Logger   *slog.Logger
}

// Probe polls one page. It is not safe for concurrent use.
type Probe struct {
	page     browser.Page
	js       browser.DebugJS
	gameplay string
	interval time.Duration
	logger   *slog.Logger

	last SceneState
	seen bool
}

// New returns a Probe reading page.
func New(page browser.Page, cfg Config) *Probe {
	p := &Probe{
		page:     page,
		js:       browser.DebugJS{Global: cfg.DebugGlobal},
		gameplay: cfg.GameplayScene,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Read performs a single state read.
func (p *Probe) Read(ctx context.Context) (SceneState, error) {
	var s SceneState
	if err := p.page.Evaluate(ctx, p.js.SceneState(), &s); err != nil {
		return SceneState{}, fmt.Errorf("failed to read scene state: %w", err)
	}
	p.last = s
	if s.SceneName != "" {
		p.seen = true
	}
	return s, nil
}

// Last returns the most recent successful read.
func (p *Probe) Last() SceneState { return p.last }

// Seen reports whether any read so far has reported a scene name.
func (p *Probe) Seen() bool { return p.seen }

// Match returns the requested scene s has stably arrived at, or "".
func (p *Probe) Match(s SceneState, names []string, allowFallback bool) string {
	if !s.Available {
		return ""
	}
	if slices.Contains(names, s.SceneName) && p.settled(s, s.SceneName, allowFallback) {
		return s.SceneName
	}
	for _, name := range names {
		if name != s.SceneName && slices.Contains(s.ActiveScenes, name) && p.settled(s, name, allowFallback) {
			return name
		}
	}
	return ""
}

func (p *Probe) settled(s SceneState, name string, allowFallback bool) bool {
	if s.SceneReady || s.SceneFrame >= 0 {
		return true
	}
	return allowFallback && name == p.gameplay && gameplayFallback(s)
}

// gameplayFallback accepts a gameplay scene that is already stepping and
// exposes a render or debug hook even though its ready flag is still unset.
func gameplayFallback(s SceneState) bool {
	return s.SceneFrame >= 0 && (s.HasRender || s.HasDebugState)
}

// WaitForScene polls until one of names has matched on StableReads
// consecutive polls, returning it. Failed reads count as no match and reset
// the streak. It returns "" once timeout elapses or ctx is done.
func (p *Probe) WaitForScene(ctx context.Context, names []string, timeout time.Duration, allowFallback bool) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		streakName string
		streak     int
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("scene wait timed out", "want", names, "last", p.last.SceneName, "timeout", timeout)
			return ""
		case <-timer.C:
		}

		s, err := p.Read(ctx)
		var matched string
		if err == nil {
			matched = p.Match(s, names, allowFallback)
		}
		if matched != "" && matched == streakName {
			streak++
		} else {
			streakName, streak = matched, 0
			if matched != "" {
				streak = 1
			}
		}
		if streak >= StableReads {
			p.logger.Debug("scene reached", "scene", matched, "frame", s.SceneFrame)
			return matched
		}
		timer.Reset(p.interval)
	}
}

// WaitInteractive polls until the current scene passes Interactive.
func (p *Probe) WaitInteractive(ctx context.Context, timeout time.Duration) (SceneState, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.last, false
		case <-timer.C:
		}
		if s, err := p.Read(ctx); err == nil && Interactive(s) {
			return s, true
		}
		timer.Reset(p.interval)
	}
}
