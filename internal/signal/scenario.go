package signal

import (
	"fmt"
	"slices"
	"strings"
)

// Scenario ids.
const (
	JumpCut   = "jump-cut"
	RunSkid   = "run-skid"
	Stomp     = "stomp"
	Telegraph = "telegraph"
)

// Scenarios lists every scenario in run order.
var Scenarios = []string{JumpCut, RunSkid, Stomp, Telegraph}

// KnownScenario reports whether id names a scenario.
func KnownScenario(id string) bool {
	return slices.Contains(Scenarios, id)
}

// ParseScenarios parses "all" or a comma separated list of scenario ids.
// Duplicates are dropped; order follows the input.
func ParseScenarios(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return slices.Clone(Scenarios), nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		id := strings.ToLower(strings.TrimSpace(part))
		if id == "" {
			continue
		}
		if id == "all" {
			return slices.Clone(Scenarios), nil
		}
		if !KnownScenario(id) {
			return nil, fmt.Errorf("unknown scenario %q (want one of %s or all)", part, strings.Join(Scenarios, ", "))
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenarios in %q", s)
	}
	return out, nil
}
