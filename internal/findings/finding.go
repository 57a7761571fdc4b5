// Package findings defines the per-(scenario, level) result record and the
// append-only JSONL store that persists it.
package findings

import (
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/playfeel/internal/level"
)

// Status is the verdict of one Finding.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"
)

// Blocker is a taxonomized terminal failure reason.
type Blocker string

const (
	BlockerNone Blocker = ""

	// navigation
	BlockerBootstrapTitleTimeout    Blocker = "BOOTSTRAP_TITLE_TIMEOUT"
	BlockerBootstrapWorldMapTimeout Blocker = "BOOTSTRAP_WORLDMAP_TIMEOUT"
	BlockerBootstrapPlayTimeout     Blocker = "BOOTSTRAP_PLAY_TIMEOUT"
	BlockerSelectionTimeout         Blocker = "WORLD_MAP_SELECTION_TIMEOUT"
	BlockerSelectionDesync          Blocker = "WORLD_MAP_SELECTION_DESYNC"
	BlockerReturnTimeout            Blocker = "WORLD_MAP_RETURN_TIMEOUT"

	// harness
	BlockerExecutionError Blocker = "EXECUTION_ERROR"
	BlockerConsoleError   Blocker = "CONSOLE_ERROR"

	// scenario signals
	BlockerNoSamples       Blocker = "playfeel_no_state_samples"
	BlockerJumpCutMissing  Blocker = "JUMP_CUT_MISSING"
	BlockerJumpCutRepeat   Blocker = "playfeel_jump_cut_repeat"
	BlockerJumpCutLate     Blocker = "playfeel_jump_cut_late"
	BlockerRunNotReached   Blocker = "playfeel_run_not_reached"
	BlockerSkidMissing     Blocker = "SKID_MISSING"
	BlockerSkidTooLong     Blocker = "playfeel_skid_too_long"
	BlockerStompMissing    Blocker = "STOMP_MISSING"
	BlockerStompSpan       Blocker = "playfeel_stomp_hitstop_span"
	BlockerStompMismatch   Blocker = "STOMP_MISMATCH"
	BlockerUnknownScenario Blocker = "playfeel_unknown_scenario"
)

// ActionSource records where a scenario's input timeline came from.
type ActionSource string

const (
	ActionSourceFallback    ActionSource = "fallback"
	ActionSourceFile        ActionSource = "file"
	ActionSourceEmptyFile   ActionSource = "empty_file"
	ActionSourceInvalidFile ActionSource = "invalid_file"
	ActionSourceMissing     ActionSource = "missing"
)

// Evidence lists artifact paths captured for a Finding.
type Evidence struct {
	Screenshots []string `json:"screenshots"`
	States      []string `json:"states"`
}

// IterationResult is the verdict of one choreography pass.
type IterationResult struct {
	Iteration int            `json:"iteration"`
	Passed    bool           `json:"passed"`
	Blocker   Blocker        `json:"blocker"`
	Samples   int            `json:"samples"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// Finding is the result record for one (scenario, level) execution. It is
// mutated in place while the pair runs and never after it is appended.
type Finding struct {
	ID        string    `json:"finding_id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	World     int       `json:"world"`
	Level     int       `json:"level"`
	Ordinal   int       `json:"ordinal"`
	Scenario  string    `json:"scenario"`
	Status    Status    `json:"status"`

	JumpCutOneShot    *bool `json:"jump_cut_one_shot,omitempty"`
	SkidBounded       *bool `json:"skid_bounded,omitempty"`
	StompHitstopExact *bool `json:"stomp_hitstop_exact,omitempty"`
	TelegraphObserved *bool `json:"telegraph_observed,omitempty"`

	Blocker          Blocker           `json:"blocker"`
	Notes            []string          `json:"notes"`
	Evidence         Evidence          `json:"evidence"`
	Metrics          map[string]any    `json:"metrics,omitempty"`
	Iterations       []IterationResult `json:"iterations,omitempty"`
	ConsoleErrors    []string          `json:"console_errors,omitempty"`
	RollbackRequired bool              `json:"rollback_required"`
	ActionSource     ActionSource      `json:"action_source"`
}

// New returns an optimistic PASS Finding for one pair.
func New(runID, scenario string, key level.Key, ordinal int, now time.Time) *Finding {
	return &Finding{
		ID:        uuid.NewString(),
		RunID:     runID,
		Timestamp: now.UTC(),
		World:     key.World,
		Level:     key.Level,
		Ordinal:   ordinal,
		Scenario:  scenario,
		Status:    StatusPass,
		Notes:     []string{},
		Evidence:  Evidence{Screenshots: []string{}, States: []string{}},
	}
}

// Fail marks the Finding failed. The first blocker wins; later failures only
// add notes.
func (f *Finding) Fail(blocker Blocker, note string) {
	f.Status = StatusFail
	if f.Blocker == BlockerNone {
		f.Blocker = blocker
	}
	f.Note(note)
}

// Warn marks the Finding as a warning without overriding a failure.
func (f *Finding) Warn(blocker Blocker, note string) {
	if f.Status == StatusPass {
		f.Status = StatusWarn
	}
	if f.Blocker == BlockerNone {
		f.Blocker = blocker
	}
	f.Note(note)
}

// Note appends a free-text note.
func (f *Finding) Note(note string) {
	if note != "" {
		f.Notes = append(f.Notes, note)
	}
}

// Failed reports whether the Finding is already terminal-failed.
func (f *Finding) Failed() bool {
	return f.Status == StatusFail
}

// SetScenarioFlag records the scenario-specific boolean.
func (f *Finding) SetScenarioFlag(scenario string, v bool) {
	switch scenario {
	case "jump-cut":
		f.JumpCutOneShot = &v
	case "run-skid":
		f.SkidBounded = &v
	case "stomp":
		f.StompHitstopExact = &v
	case "telegraph":
		f.TelegraphObserved = &v
	}
}
