// Package harness runs every (scenario, level) pair of a run and records one
// Finding per pair.
package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/choreography"
	"github.com/joeycumines/playfeel/internal/classify"
	"github.com/joeycumines/playfeel/internal/level"
	"github.com/joeycumines/playfeel/internal/navigate"
	"github.com/joeycumines/playfeel/internal/signal"
)

// IdleFramesBetweenPasses separates choreography passes within a pair.
const IdleFramesBetweenPasses = 30

// RunContext is the immutable configuration of one run.
type RunContext struct {
	RunID         string
	BaseURL       string
	Iterations    int
	ArtifactsRoot string
	Headless      bool
	Scenarios     []string
	Levels        []level.Key
	ContractPath  string
	// ScenariosDir holds <scenario>.json action files; empty selects the
	// built-in timelines.
	ScenariosDir string
	DebugGlobal  string
	Layout       level.Layout
	SaveKeys     []string
	Classifier   *classify.Classifier
	Signals      signal.Signals
	Buttons      choreography.ButtonMap
	// Timings overrides the navigation waits; the zero value keeps the
	// defaults.
	Timings navigate.Timings
	Logger  *slog.Logger
}

// DefaultSaveKeys are the storage keys the synthetic save is written under.
var DefaultSaveKeys = []string{"game.save.v2", "game.save.v1", "game_save"}

// NewRunID formats a run id as <UTC timestamp>-<pid>.
func NewRunID(now time.Time, pid int) string {
	return fmt.Sprintf("%s-%d", now.UTC().Format("20060102T150405Z"), pid)
}

// withDefaults fills unset fields and validates the rest.
func (rc RunContext) withDefaults() (RunContext, error) {
	if rc.BaseURL == "" {
		return rc, errors.New("base URL is required")
	}
	if rc.ArtifactsRoot == "" {
		return rc, errors.New("artifacts root is required")
	}
	if rc.Iterations < 1 {
		return rc, fmt.Errorf("iterations must be at least 1, got %d", rc.Iterations)
	}
	if rc.RunID == "" {
		rc.RunID = NewRunID(time.Now(), os.Getpid())
	}
	if len(rc.Layout) == 0 {
		rc.Layout = level.DefaultLayout
	}
	if len(rc.Scenarios) == 0 {
		rc.Scenarios = signal.Scenarios
	}
	for _, id := range rc.Scenarios {
		if !signal.KnownScenario(id) {
			return rc, fmt.Errorf("unknown scenario %q", id)
		}
	}
	if len(rc.Levels) == 0 {
		rc.Levels = []level.Key{{World: 1, Level: 1}}
	}
	if rc.DebugGlobal == "" {
		rc.DebugGlobal = browser.DefaultDebugGlobal
	}
	if rc.SaveKeys == nil {
		rc.SaveKeys = DefaultSaveKeys
	}
	if rc.Classifier == nil {
		rc.Classifier = classify.Default()
	}
	rc.Signals = signal.DefaultSignals().Merge(rc.Signals)
	if rc.Buttons == nil {
		rc.Buttons = choreography.DefaultButtons()
	}
	if rc.Logger == nil {
		rc.Logger = slog.Default()
	}
	return rc, nil
}

// SavePayload is the synthetic save written before each pair, with every
// level of layout unlocked.
type SavePayload struct {
	Version         int      `json:"version"`
	UnlockedOrdinal int      `json:"unlockedOrdinal"`
	UnlockedLevels  []string `json:"unlockedLevels"`
	Completed       []string `json:"completed"`
}

// NewSavePayload returns the fully unlocked save for layout.
func NewSavePayload(layout level.Layout) SavePayload {
	keys := layout.Keys()
	unlocked := make([]string, 0, len(keys))
	for _, k := range keys {
		unlocked = append(unlocked, k.String())
	}
	return SavePayload{
		Version:         1,
		UnlockedOrdinal: layout.Total(),
		UnlockedLevels:  unlocked,
		Completed:       []string{},
	}
}
