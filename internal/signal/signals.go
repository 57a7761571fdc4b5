package signal

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Signals are the expressions that read scenario flags out of a telemetry
// sample. Predicates are expr-lang boolean expressions evaluated against the
// decoded sample; undefined fields evaluate to nil. HitstopHistory lists
// gjson paths tried in order for the stomp hit-stop history.
type Signals struct {
	JumpCut        string
	Run            string
	Skid           string
	HitstopHistory []string
}

// DefaultSignals covers the field names the target has used across
// versions.
func DefaultSignals() Signals {
	return Signals{
		JumpCut: `playfeel?.jumpCutApplied == true || playfeel?.jumpCut == true || ` +
			`movement?.jumpCutApplied == true || player?.jumpCutApplied == true`,
		Run: `(playfeel?.runActive == true || player?.state == "run" || movement?.state == "run" || player?.running == true) && ` +
			`player?.grounded != false`,
		Skid: `playfeel?.skidActive == true || playfeel?.skid == true || movement?.skidding == true || ` +
			`player?.state == "skid" || movement?.state == "skid"`,
		HitstopHistory: []string{
			"stompHitstopTelemetry.history",
			"playfeel.stompHitstopTelemetry.history",
			"combat.stompHitstopTelemetry.history",
		},
	}
}

// Merge returns s with the non-empty fields of o applied.
func (s Signals) Merge(o Signals) Signals {
	if o.JumpCut != "" {
		s.JumpCut = o.JumpCut
	}
	if o.Run != "" {
		s.Run = o.Run
	}
	if o.Skid != "" {
		s.Skid = o.Skid
	}
	if len(o.HitstopHistory) > 0 {
		s.HitstopHistory = o.HitstopHistory
	}
	return s
}

// predicates holds the compiled programs for one Signals value.
type predicates struct {
	jumpCut *vm.Program
	run     *vm.Program
	skid    *vm.Program
}

func compilePredicate(name, src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid %s signal %q: %w", name, src, err)
	}
	return program, nil
}

func compileSignals(s Signals) (*predicates, error) {
	var (
		p   predicates
		err error
	)
	if p.jumpCut, err = compilePredicate("jump-cut", s.JumpCut); err != nil {
		return nil, err
	}
	if p.run, err = compilePredicate("run", s.Run); err != nil {
		return nil, err
	}
	if p.skid, err = compilePredicate("skid", s.Skid); err != nil {
		return nil, err
	}
	return &p, nil
}

// decodeEnv decodes a sample into an expression environment. Non-object
// samples produce an empty environment.
func decodeEnv(state json.RawMessage) map[string]any {
	var env map[string]any
	if err := json.Unmarshal(state, &env); err != nil || env == nil {
		return map[string]any{}
	}
	return env
}

func run(program *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}
