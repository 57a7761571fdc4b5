// Package signal converts millisecond tolerances into frame budgets and
// judges telemetry series recorded during a scenario against them.
package signal

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr/vm"
	"github.com/joeycumines/playfeel/internal/findings"
	"github.com/tidwall/gjson"
)

// LateSlackFrames is added to the jump-cut window to absorb sampling jitter.
const LateSlackFrames = 2

// Sample is one frame's telemetry. Frame is 1-based within a pass.
type Sample struct {
	Iteration int             `json:"iteration"`
	Frame     int             `json:"frame"`
	State     json.RawMessage `json:"state"`
}

// Result is the verdict for one series.
type Result struct {
	Passed  bool
	Blocker findings.Blocker
	Notes   []string
	Metrics map[string]any
}

func (r *Result) fail(blocker findings.Blocker, format string, args ...any) {
	r.Passed = false
	r.Blocker = blocker
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Evaluator judges series using one compiled set of Signals.
type Evaluator struct {
	signals Signals
	preds   *predicates
}

// NewEvaluator compiles s.
func NewEvaluator(s Signals) (*Evaluator, error) {
	preds, err := compileSignals(s)
	if err != nil {
		return nil, err
	}
	return &Evaluator{signals: s, preds: preds}, nil
}

// Evaluate judges samples, one pass of scenario, against c.
func (e *Evaluator) Evaluate(scenario string, samples []Sample, c Contract) Result {
	res := Result{Passed: true, Metrics: map[string]any{"samples": len(samples)}}
	if len(samples) == 0 {
		res.fail(findings.BlockerNoSamples, "no telemetry samples were captured")
		return res
	}
	switch scenario {
	case JumpCut:
		e.jumpCut(&res, samples, c)
	case RunSkid:
		e.runSkid(&res, samples, c)
	case Stomp:
		e.stomp(&res, samples, c)
	case Telegraph:
		res.Metrics["telegraph_observed"] = true
		res.Notes = append(res.Notes, "telegraph is recorded as observed only; no telemetry is verified")
	default:
		res.fail(findings.BlockerUnknownScenario, "unknown scenario %q", scenario)
	}
	return res
}

// flags evaluates program over every sample. Evaluation errors count as
// false and are noted once.
func flags(res *Result, name string, program *vm.Program, samples []Sample) []bool {
	out := make([]bool, len(samples))
	var (
		failed   int
		firstErr error
	)
	for i, s := range samples {
		v, err := run(program, decodeEnv(s.State))
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = v
	}
	if failed > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("%s signal failed on %d samples: %v", name, failed, firstErr))
	}
	return out
}

func (e *Evaluator) jumpCut(res *Result, samples []Sample, c Contract) {
	cut := flags(res, "jump-cut", e.preds.jumpCut, samples)
	var transitions []int
	prev := false
	for i, v := range cut {
		if v && !prev {
			transitions = append(transitions, samples[i].Frame)
		}
		prev = v
	}
	maxCuts := c.AllowedCuts()
	budget := CeilFrames(c.JumpCutWindowMs) + LateSlackFrames
	res.Metrics["cut_transitions"] = len(transitions)
	res.Metrics["max_cuts"] = maxCuts
	res.Metrics["late_budget_frames"] = budget
	res.Metrics["jump_cut_frames"] = c.JumpCutFrames
	if len(transitions) > 0 {
		res.Metrics["first_cut_frame"] = transitions[0]
	}
	switch {
	case len(transitions) == 0:
		res.fail(findings.BlockerJumpCutMissing, "jump-cut flag never turned on")
	case len(transitions) > maxCuts:
		res.fail(findings.BlockerJumpCutRepeat, "jump-cut applied %d times at frames %v; at most %d allowed", len(transitions), transitions, maxCuts)
	case transitions[0] > budget:
		res.fail(findings.BlockerJumpCutLate, "jump-cut applied at frame %d; budget is %d frames (%gms window + %d slack)",
			transitions[0], budget, c.JumpCutWindowMs, LateSlackFrames)
	}
}

func (e *Evaluator) runSkid(res *Result, samples []Sample, c Contract) {
	running := flags(res, "run", e.preds.run, samples)
	skidding := flags(res, "skid", e.preds.skid, samples)
	firstRun, firstSkid := -1, -1
	longest, current, prevFrame, unsampled := 0, 0, 0, 0
	for i, s := range samples {
		if running[i] && firstRun < 0 {
			firstRun = s.Frame
		}
		if !skidding[i] {
			current = 0
			continue
		}
		if firstSkid < 0 {
			firstSkid = s.Frame
		}
		// Frames missing between two skid samples are counted as skid.
		if current > 0 {
			unsampled += s.Frame - prevFrame - 1
			current += s.Frame - prevFrame
		} else {
			current = 1
		}
		prevFrame = s.Frame
		longest = max(longest, current)
	}
	limit := CeilFrames(c.SkidDurationMsMax)
	res.Metrics["first_run_frame"] = firstRun
	res.Metrics["first_skid_frame"] = firstSkid
	res.Metrics["skid_frames"] = longest
	res.Metrics["skid_limit_frames"] = limit
	if unsampled > 0 {
		res.Metrics["skid_unsampled_frames"] = unsampled
		res.Notes = append(res.Notes, fmt.Sprintf("%d unsampled frames inside a skid were counted as skid", unsampled))
	}
	switch {
	case firstRun < 0 || (firstSkid >= 0 && firstRun >= firstSkid):
		res.fail(findings.BlockerRunNotReached, "no grounded run state observed before the skid")
	case firstSkid < 0:
		res.fail(findings.BlockerSkidMissing, "skid flag never observed after reaching run state at frame %d", firstRun)
	case longest > limit:
		res.fail(findings.BlockerSkidTooLong, "skid lasted %d frames; limit is %d (%gms)", longest, limit, c.SkidDurationMsMax)
	}
}

func (e *Evaluator) stomp(res *Result, samples []Sample, c Contract) {
	last := samples[len(samples)-1].State
	var (
		history []gjson.Result
		path    string
	)
	for _, p := range e.signals.HitstopHistory {
		if h := gjson.GetBytes(last, p); h.IsArray() && len(h.Array()) > 0 {
			history, path = h.Array(), p
			break
		}
	}
	res.Metrics["hitstop_events"] = len(history)
	if len(history) == 0 {
		res.fail(findings.BlockerStompMissing, "no stomp hit-stop history in the final sample")
		return
	}
	res.Metrics["hitstop_path"] = path
	applied := history[len(history)-1].Get("appliedMs")
	if !applied.Exists() || applied.Float() <= 0 {
		res.fail(findings.BlockerStompMissing, "last stomp hit-stop has no applied duration")
		return
	}
	ms := applied.Float()
	span := NormalizeMsToFrames(ms)
	res.Metrics["hitstop_ms"] = ms
	res.Metrics["hitstop_min_frames"] = span.MinFrames
	res.Metrics["hitstop_max_frames"] = span.MaxFrames
	if span.MinFrames < c.StompHitstopFramesMin || span.MaxFrames > c.StompHitstopFramesMax {
		res.fail(findings.BlockerStompSpan, "hit-stop of %gms spans %d-%d frames; contract allows %d-%d",
			ms, span.MinFrames, span.MaxFrames, c.StompHitstopFramesMin, c.StompHitstopFramesMax)
		return
	}
	if c.StompHitstopMs != nil && ms != *c.StompHitstopMs {
		res.fail(findings.BlockerStompMismatch, "hit-stop applied %gms; contract requires exactly %gms", ms, *c.StompHitstopMs)
	}
}
