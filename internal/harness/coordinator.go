package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/choreography"
	"github.com/joeycumines/playfeel/internal/evidence"
	"github.com/joeycumines/playfeel/internal/findings"
	"github.com/joeycumines/playfeel/internal/level"
	"github.com/joeycumines/playfeel/internal/navigate"
	"github.com/joeycumines/playfeel/internal/signal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joeycumines/playfeel/internal/harness"

// Coordinator executes a run. It drives one page at a time.
type Coordinator struct {
	rc          RunContext
	launcher    browser.Launcher
	store       *findings.Store
	recorder    *evidence.Recorder
	evaluator   *signal.Evaluator
	contract    signal.Contract
	contractErr error
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewCoordinator validates rc and prepares a run against pages opened by
// launcher. An unusable contract file falls back to the defaults and is
// reported on every Finding.
func NewCoordinator(rc RunContext, launcher browser.Launcher) (*Coordinator, error) {
	rc, err := rc.withDefaults()
	if err != nil {
		return nil, err
	}
	evaluator, err := signal.NewEvaluator(rc.Signals)
	if err != nil {
		return nil, err
	}
	contract, contractErr := signal.LoadContract(rc.ContractPath)
	if contractErr != nil {
		rc.Logger.Warn("using default contract", "path", rc.ContractPath, "error", contractErr)
	}
	return &Coordinator{
		rc:          rc,
		launcher:    launcher,
		store:       findings.NewStore(findings.ReportPath(rc.ArtifactsRoot)),
		recorder:    evidence.NewRecorder(rc.ArtifactsRoot, rc.DebugGlobal, rc.Logger),
		evaluator:   evaluator,
		contract:    contract,
		contractErr: contractErr,
		tracer:      otel.Tracer(tracerName),
		logger:      rc.Logger,
		now:         time.Now,
	}, nil
}

// RunID returns the id stamped on every Finding of the run.
func (c *Coordinator) RunID() string { return c.rc.RunID }

// Run executes every scenario against every level, in that order, appending
// one Finding per pair. Once ctx is done the remaining pairs are recorded as
// not run and ctx's error is returned with the summary. Only a store failure
// stops it early. The summary is read back from the findings log.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	ctx, span := c.tracer.Start(ctx, "harness.run", trace.WithAttributes(
		attribute.String("run_id", c.rc.RunID),
		attribute.String("url", c.rc.BaseURL),
	))
	defer span.End()

	summary := Summary{RunID: c.rc.RunID, ReportPath: c.store.Path()}
	c.logger.Info("run started", "run_id", c.rc.RunID, "scenarios", strings.Join(c.rc.Scenarios, ","), "levels", len(c.rc.Levels))
	var stopped error
	for _, id := range c.rc.Scenarios {
		sc := choreography.Load(c.rc.ScenariosDir, id, c.rc.Buttons)
		if sc.Err != nil && stopped == nil {
			c.logger.Warn("using built-in timeline", "scenario", id, "source", sc.Source, "error", sc.Err)
		}
		for _, key := range c.rc.Levels {
			if stopped == nil {
				stopped = ctx.Err()
			}
			var f *findings.Finding
			if stopped != nil {
				f = c.notRun(sc, key, stopped)
			} else {
				f = c.runPair(ctx, sc, key)
			}
			if err := c.store.Append(f); err != nil {
				return summary, fmt.Errorf("failed to record finding for %s %s: %w", id, key, err)
			}
			summary.Findings = append(summary.Findings, *f)
			c.logger.Info("pair finished", "scenario", id, "level", key.String(), "status", f.Status, "blocker", f.Blocker)
		}
	}

	stored, err := c.store.ReadRun(c.rc.RunID)
	if err != nil {
		return summary, fmt.Errorf("failed to read back findings: %w", err)
	}
	if len(stored) != len(summary.Findings) {
		return summary, fmt.Errorf("findings log holds %d findings for run %s, %d were appended", len(stored), c.rc.RunID, len(summary.Findings))
	}
	summary.Findings = stored
	if stopped != nil {
		c.logger.Warn("run stopped early", "run_id", c.rc.RunID, "error", stopped)
	}
	return summary, stopped
}

// notRun is the Finding of a pair skipped because the run was stopped.
func (c *Coordinator) notRun(sc choreography.Scenario, key level.Key, cause error) *findings.Finding {
	key = c.rc.Layout.Normalize(key)
	f := findings.New(c.rc.RunID, sc.ID, key, c.rc.Layout.Ordinal(key), c.now())
	f.ActionSource = sc.Source
	f.Fail(findings.BlockerExecutionError, fmt.Sprintf("not run: %v", cause))
	f.SetScenarioFlag(sc.ID, false)
	return f
}

// runPair always returns a Finding; failures are recorded on it.
func (c *Coordinator) runPair(ctx context.Context, sc choreography.Scenario, key level.Key) (f *findings.Finding) {
	key = c.rc.Layout.Normalize(key)
	f = findings.New(c.rc.RunID, sc.ID, key, c.rc.Layout.Ordinal(key), c.now())
	f.ActionSource = sc.Source
	if sc.Err != nil && sc.Source != findings.ActionSourceMissing {
		f.Note(fmt.Sprintf("action file not used (%s): %v", sc.Source, sc.Err))
	}
	if sc.Notes != "" {
		f.Note(sc.Notes)
	}
	if c.contractErr != nil {
		f.Note(fmt.Sprintf("default contract in use: %v", c.contractErr))
	}

	ctx, span := c.tracer.Start(ctx, "harness.pair", trace.WithAttributes(
		attribute.String("scenario", sc.ID),
		attribute.String("level", key.String()),
	))
	logger := c.logger.With("scenario", sc.ID, "level", key.String())
	passed := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pair panicked", "panic", r, "stack", string(debug.Stack()))
			f.Fail(findings.BlockerExecutionError, fmt.Sprintf("panic: %v", r))
			passed = false
		}
		f.SetScenarioFlag(sc.ID, passed)
		span.SetAttributes(attribute.String("status", string(f.Status)), attribute.String("blocker", string(f.Blocker)))
		span.End()
	}()

	page, err := c.launcher.NewPage(ctx)
	if err != nil {
		f.Fail(findings.BlockerExecutionError, fmt.Sprintf("failed to open page: %v", err))
		return f
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug("page close failed", "error", err)
		}
	}()

	nav := navigate.New(page, navigate.Config{
		BaseURL:     c.rc.BaseURL,
		DebugGlobal: c.rc.DebugGlobal,
		SaveKeys:    c.rc.SaveKeys,
		Layout:      c.rc.Layout,
		Timings:     c.rc.Timings,
		Classifier:  c.rc.Classifier,
		Logger:      logger.With("phase", "navigate"),
	})
	if err := nav.Bootstrap(ctx, NewSavePayload(c.rc.Layout)); err != nil {
		c.block(f, err)
		return f
	}
	if err := nav.EnterPlay(ctx, key); err != nil {
		c.block(f, err)
		return f
	}

	passed = c.play(ctx, page, nav, sc, key, f, logger.With("phase", "play"))

	if unexpected := c.rc.Classifier.Unexpected(page.ConsoleErrors()); len(unexpected) > 0 {
		f.ConsoleErrors = unexpected
		if !f.Failed() {
			f.Fail(findings.BlockerConsoleError, fmt.Sprintf("%d unexpected console errors", len(unexpected)))
		}
	}

	if err := nav.ReturnToHub(ctx); err != nil {
		var be *navigate.BlockerError
		if errors.As(err, &be) {
			f.Warn(be.Code, err.Error())
		} else {
			f.Warn(findings.BlockerReturnTimeout, err.Error())
		}
	}
	return f
}

// play runs every pass and evaluates each one, reporting whether all passed.
func (c *Coordinator) play(ctx context.Context, page browser.Page, nav *navigate.Navigator, sc choreography.Scenario, key level.Key, f *findings.Finding, logger *slog.Logger) bool {
	player := choreography.NewPlayer(page, choreography.PlayerConfig{
		DebugGlobal: c.rc.DebugGlobal,
		Buttons:     c.rc.Buttons,
		Classifier:  c.rc.Classifier,
		Logger:      logger,
	})
	js := browser.DebugJS{Global: c.rc.DebugGlobal}
	allPassed := true
	for i := 1; i <= c.rc.Iterations; i++ {
		if i > 1 {
			if err := player.Idle(ctx, IdleFramesBetweenPasses); err != nil {
				f.Fail(findings.BlockerExecutionError, fmt.Sprintf("iteration %d: idle failed: %v", i, err))
				return false
			}
		}

		var samples []signal.Sample
		playErr := player.Play(ctx, sc.Steps, func(ctx context.Context, frame int) error {
			var state json.RawMessage
			if err := page.Evaluate(ctx, js.StateWithDebug(), &state); err != nil {
				if c.rc.Classifier.IsTransient(err) {
					logger.Debug("telemetry read skipped", "frame", frame, "error", err)
					return nil
				}
				return fmt.Errorf("failed to read telemetry at frame %d: %w", frame, err)
			}
			if len(state) == 0 || string(state) == "null" {
				return nil
			}
			samples = append(samples, signal.Sample{Iteration: i, Frame: frame, State: state})
			return nil
		})

		c.capture(ctx, page, nav, sc.ID, key, i, samples, f, logger)

		if playErr != nil {
			f.Fail(findings.BlockerExecutionError, fmt.Sprintf("iteration %d: %v", i, playErr))
			return false
		}

		res := c.evaluator.Evaluate(sc.ID, samples, c.contract)
		f.Iterations = append(f.Iterations, findings.IterationResult{
			Iteration: i,
			Passed:    res.Passed,
			Blocker:   res.Blocker,
			Samples:   len(samples),
			Metrics:   res.Metrics,
		})
		if f.Metrics == nil || (!res.Passed && allPassed) {
			f.Metrics = res.Metrics
		}
		for _, n := range res.Notes {
			f.Note(fmt.Sprintf("iteration %d: %s", i, n))
		}
		if !res.Passed {
			allPassed = false
			f.Fail(res.Blocker, "")
		}
		logger.Debug("iteration evaluated", "iteration", i, "passed", res.Passed, "blocker", res.Blocker, "samples", len(samples))
	}
	return allPassed
}

func (c *Coordinator) capture(ctx context.Context, page browser.Page, nav *navigate.Navigator, scenario string, key level.Key, n int, samples []signal.Sample, f *findings.Finding, logger *slog.Logger) {
	snap := evidence.Snapshot{Samples: len(samples)}
	if len(samples) > 0 {
		snap.Telemetry = samples[len(samples)-1].State
	}
	if s, err := nav.Probe().Read(ctx); err == nil {
		snap.Scene = s
	}
	ev, err := c.recorder.Capture(ctx, page, scenario, key, n, snap)
	if ev.Screenshot != "" {
		f.Evidence.Screenshots = append(f.Evidence.Screenshots, ev.Screenshot)
	}
	if ev.State != "" {
		f.Evidence.States = append(f.Evidence.States, ev.State)
	}
	if err != nil {
		logger.Warn("evidence incomplete", "iteration", n, "error", err)
		f.Note(fmt.Sprintf("iteration %d: evidence incomplete: %v", n, err))
	}
}

// block records a navigation failure.
func (c *Coordinator) block(f *findings.Finding, err error) {
	var be *navigate.BlockerError
	if errors.As(err, &be) {
		f.Fail(be.Code, err.Error())
		f.RollbackRequired = be.Rollback
		return
	}
	f.Fail(findings.BlockerExecutionError, err.Error())
}
