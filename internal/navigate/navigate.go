// Package navigate drives the target from a cold load to its level-select
// hub, from the hub into a chosen level, and back again.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/classify"
	"github.com/joeycumines/playfeel/internal/findings"
	"github.com/joeycumines/playfeel/internal/level"
	"github.com/joeycumines/playfeel/internal/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joeycumines/playfeel/internal/navigate"

// BlockerError is a navigation failure carrying the Finding blocker it maps
// to.
type BlockerError struct {
	Code     findings.Blocker
	Rollback bool
	Err      error
}

func newBlocker(code findings.Blocker, err error) *BlockerError {
	rollback := false
	switch code {
	case findings.BlockerBootstrapTitleTimeout,
		findings.BlockerBootstrapWorldMapTimeout,
		findings.BlockerBootstrapPlayTimeout,
		findings.BlockerSelectionDesync:
		rollback = true
	}
	return &BlockerError{Code: code, Rollback: rollback, Err: err}
}

func (e *BlockerError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *BlockerError) Unwrap() error { return e.Err }

// Scenes names the target's scenes.
type Scenes struct {
	Title         string
	Hub           string
	Play          string
	Pause         string
	LevelComplete string
	GameOver      string
	// Narrative scenes auto-advance on a timer and need a settle delay
	// before they accept confirm.
	Narrative []string
}

// DefaultScenes returns the scene names the target ships with.
func DefaultScenes() Scenes {
	return Scenes{
		Title:         "TitleScene",
		Hub:           "WorldMapScene",
		Play:          "PlayScene",
		Pause:         "PauseScene",
		LevelComplete: "LevelCompleteScene",
		GameOver:      "GameOverScene",
		Narrative:     []string{"IntroScene", "StoryScene", "EndingScene"},
	}
}

func (s Scenes) known() []string {
	out := []string{s.Title, s.Hub, s.Play, s.Pause, s.LevelComplete, s.GameOver}
	return append(out, s.Narrative...)
}

// Timings holds every wait budget used while navigating.
type Timings struct {
	SceneWait       time.Duration
	PlayWait        time.Duration
	Reprobe         time.Duration
	SelectBudget    time.Duration
	SelectEvery     time.Duration
	TransientPause  time.Duration
	NarrativeSettle time.Duration
	CompleteSettle  time.Duration
	InteractiveWait time.Duration
	ProbeInterval   time.Duration
}

// DefaultTimings returns the production budgets.
func DefaultTimings() Timings {
	return Timings{
		SceneWait:       15 * time.Second,
		PlayWait:        22 * time.Second,
		Reprobe:         2500 * time.Millisecond,
		SelectBudget:    11 * time.Second,
		SelectEvery:     80 * time.Millisecond,
		TransientPause:  500 * time.Millisecond,
		NarrativeSettle: 1200 * time.Millisecond,
		CompleteSettle:  900 * time.Millisecond,
		InteractiveWait: 2 * time.Second,
		ProbeInterval:   probe.DefaultInterval,
	}
}

// Config configures a Navigator.
type Config struct {
	BaseURL     string
	DebugGlobal string
	// SaveKeys are the localStorage keys the save payload is written under.
	SaveKeys []string
	Layout   level.Layout
	Scenes   Scenes
	Timings  Timings
	// Attempts bounds Bootstrap and EnterPlay. Default 2.
	Attempts int
	// CoercePasses bounds CoerceToHub. Default 12.
	CoercePasses int
	Classifier   *classify.Classifier
	Logger       *slog.Logger
}

// Navigator moves one page between scenes. It is not safe for concurrent use.
type Navigator struct {
	page   browser.Page
	probe  *probe.Probe
	js     browser.DebugJS
	cfg    Config
	tracer trace.Tracer
	logger *slog.Logger
}

// New returns a Navigator for page. Zero fields of cfg take defaults.
func New(page browser.Page, cfg Config) *Navigator {
	if cfg.Scenes.Hub == "" {
		cfg.Scenes = DefaultScenes()
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if len(cfg.Layout) == 0 {
		cfg.Layout = level.DefaultLayout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.CoercePasses <= 0 {
		cfg.CoercePasses = 12
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		page: page,
		probe: probe.New(page, probe.Config{
			DebugGlobal:   cfg.DebugGlobal,
			GameplayScene: cfg.Scenes.Play,
			Interval:      cfg.Timings.ProbeInterval,
			Logger:        logger,
		}),
		js:     browser.DebugJS{Global: cfg.DebugGlobal},
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Probe returns the Navigator's scene probe.
func (n *Navigator) Probe() *probe.Probe { return n.probe }

func (n *Navigator) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (n *Navigator) pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AlignSelection moves the hub's selection to key's campaign ordinal.
// Not-ready and missing-hub answers are retried until the budget runs out;
// any other rejection is a desync.
func (n *Navigator) AlignSelection(ctx context.Context, key level.Key) (err error) {
	ordinal := n.cfg.Layout.Ordinal(key)
	ctx, span := n.span(ctx, "navigate.align_selection",
		attribute.String("level", key.String()), attribute.Int("ordinal", ordinal))
	defer func() { endSpan(span, err) }()

	budget, cancel := context.WithTimeout(ctx, n.cfg.Timings.SelectBudget)
	defer cancel()

	script := n.js.AlignSelection(n.cfg.Scenes.Hub, ordinal)
	var (
		last    browser.SelectionResult
		lastErr error
	)
	ticker := time.NewTicker(n.cfg.Timings.SelectEvery)
	defer ticker.Stop()
	for {
		var res browser.SelectionResult
		if evalErr := n.page.Evaluate(budget, script, &res); evalErr != nil {
			lastErr = evalErr
		} else {
			last, lastErr = res, nil
			switch {
			case res.OK:
				n.logger.Debug("selection aligned", "level", key.String(), "ordinal", ordinal, "method", res.Method)
				return nil
			case res.Reason != browser.SelectionNotReady && res.Reason != browser.SelectionHubNotFound:
				return newBlocker(findings.BlockerSelectionDesync,
					fmt.Errorf("hub rejected ordinal %d for %s: %s (selected %d)", ordinal, key, res.Reason, res.Selected))
			}
		}
		select {
		case <-budget.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("last answer %q with ordinal %d selected", last.Reason, last.Selected)
			}
			return newBlocker(findings.BlockerSelectionTimeout,
				fmt.Errorf("selection of ordinal %d for %s not confirmed within %s: %w", ordinal, key, n.cfg.Timings.SelectBudget, lastErr))
		case <-ticker.C:
		}
	}
}

// EnterPlay selects key on the hub, confirms it and waits for the gameplay
// scene. A failed attempt coerces back to the hub before retrying.
func (n *Navigator) EnterPlay(ctx context.Context, key level.Key) (err error) {
	ctx, span := n.span(ctx, "navigate.enter_play", attribute.String("level", key.String()))
	defer func() { endSpan(span, err) }()

	var last error
	for attempt := 1; attempt <= n.cfg.Attempts; attempt++ {
		last = n.enterPlayOnce(ctx, key)
		if last == nil {
			return nil
		}
		var be *BlockerError
		if errors.As(last, &be) && be.Code == findings.BlockerSelectionDesync {
			return last
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.logger.Info("enter play attempt failed", "level", key.String(), "attempt", attempt, "error", last)
		if attempt < n.cfg.Attempts {
			n.CoerceToHub(ctx, n.cfg.CoercePasses)
		}
	}
	var be *BlockerError
	if errors.As(last, &be) {
		return last
	}
	return newBlocker(findings.BlockerBootstrapPlayTimeout, last)
}

func (n *Navigator) enterPlayOnce(ctx context.Context, key level.Key) error {
	if err := n.AlignSelection(ctx, key); err != nil {
		return err
	}
	if err := browser.Press(ctx, n.page, browser.KeyEnter); err != nil {
		return fmt.Errorf("failed to confirm level %s: %w", key, err)
	}
	if n.probe.WaitForScene(ctx, []string{n.cfg.Scenes.Play}, n.cfg.Timings.PlayWait, true) == "" {
		return fmt.Errorf("%s not reached within %s (last scene %q)", n.cfg.Scenes.Play, n.cfg.Timings.PlayWait, n.probe.Last().SceneName)
	}
	if s, ok := n.probe.WaitInteractive(ctx, n.cfg.Timings.InteractiveWait); !ok {
		n.logger.Debug("gameplay scene not yet interactive", "level", key.String(), "frame", s.SceneFrame, "readyFrame", s.SceneReadyFrame)
	}
	return nil
}

// ReturnToHub unwinds to the hub after a scenario.
func (n *Navigator) ReturnToHub(ctx context.Context) (err error) {
	ctx, span := n.span(ctx, "navigate.return_to_hub")
	defer func() { endSpan(span, err) }()
	if n.CoerceToHub(ctx, n.cfg.CoercePasses) {
		return nil
	}
	return newBlocker(findings.BlockerReturnTimeout,
		fmt.Errorf("hub not reached after %d passes (last scene %q)", n.cfg.CoercePasses, n.probe.Last().SceneName))
}
