// Package evidence writes the per-pass screenshot and state snapshot that
// back each Finding.
package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/fsutil"
	"github.com/joeycumines/playfeel/internal/level"
	"github.com/joeycumines/playfeel/internal/probe"
)

// Snapshot is the diagnostic state recorded alongside a screenshot.
type Snapshot struct {
	Scenario   string           `json:"scenario"`
	Level      level.Key        `json:"level"`
	Iteration  int              `json:"iteration"`
	CapturedAt time.Time        `json:"captured_at"`
	Scene      probe.SceneState `json:"scene"`
	// Telemetry is the last sample of the pass; null when none was read.
	Telemetry json.RawMessage `json:"telemetry"`
	Samples   int             `json:"samples"`
	// Text is the target's render_game_to_text dump.
	Text string `json:"text"`
}

// Evidence holds the paths written by one Capture. A path is empty when its
// artifact could not be written.
type Evidence struct {
	Screenshot string
	State      string
}

// Recorder writes evidence under an artifacts root.
type Recorder struct {
	root   string
	js     browser.DebugJS
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder returns a Recorder writing below root.
func NewRecorder(root, debugGlobal string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{root: root, js: browser.DebugJS{Global: debugGlobal}, logger: logger, now: time.Now}
}

// ScreenshotPath returns <root>/screenshots/<scenario>/lvl_<w>_<l>/shot-<n>.png.
func (r *Recorder) ScreenshotPath(scenario string, key level.Key, n int) string {
	return filepath.Join(r.root, "screenshots", scenario, key.Dir(), "shot-"+strconv.Itoa(n)+".png")
}

// StatePath returns <root>/states/<scenario>/lvl_<w>_<l>/state-<n>.json.
func (r *Recorder) StatePath(scenario string, key level.Key, n int) string {
	return filepath.Join(r.root, "states", scenario, key.Dir(), "state-"+strconv.Itoa(n)+".json")
}

// Capture writes the screenshot and the state snapshot for pass n. The text
// dump is read from the page when snap has none. Both artifacts are attempted
// even if one fails.
func (r *Recorder) Capture(ctx context.Context, page browser.Page, scenario string, key level.Key, n int, snap Snapshot) (Evidence, error) {
	var (
		ev   Evidence
		errs []error
	)

	shot := r.ScreenshotPath(scenario, key, n)
	if png, err := page.Screenshot(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to capture screenshot: %w", err))
	} else if err := fsutil.WriteFileAtomic(shot, png, 0o644); err != nil {
		errs = append(errs, fmt.Errorf("failed to write screenshot: %w", err))
	} else {
		ev.Screenshot = shot
	}

	snap.Scenario, snap.Level, snap.Iteration = scenario, key, n
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = r.now().UTC()
	}
	if snap.Text == "" {
		if err := page.Evaluate(ctx, r.js.RenderText(), &snap.Text); err != nil {
			r.logger.Debug("text dump unavailable", "scenario", scenario, "level", key.String(), "error", err)
		}
	}
	if len(snap.Telemetry) == 0 {
		snap.Telemetry = json.RawMessage("null")
	}
	state := r.StatePath(scenario, key, n)
	if data, err := json.MarshalIndent(snap, "", "  "); err != nil {
		errs = append(errs, fmt.Errorf("failed to encode state snapshot: %w", err))
	} else if err := fsutil.WriteFileAtomic(state, append(data, '\n'), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("failed to write state snapshot: %w", err))
	} else {
		ev.State = state
	}

	return ev, errors.Join(errs...)
}
