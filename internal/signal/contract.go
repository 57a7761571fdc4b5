package signal

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed contract.schema.json
var contractSchemaSource []byte

const contractSchemaURL = "https://playfeel.invalid/contract.schema.json"

var contractSchema = mustSchema(contractSchemaURL, contractSchemaSource)

func mustSchema(url string, src []byte) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(src)); err != nil {
		panic(fmt.Errorf("add schema resource: %w", err))
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Errorf("compile schema: %w", err))
	}
	return schema
}

// Contract holds the tolerance thresholds scenarios are judged against.
type Contract struct {
	// JumpCutFrames is the number of cut transitions allowed per pass.
	JumpCutFrames   int     `json:"jump_cut_frames"`
	JumpCutWindowMs float64 `json:"jump_cut_window_ms"`
	// JumpCutMaxCuts overrides JumpCutFrames when non-zero.
	JumpCutMaxCuts        int      `json:"jump_cut_max_cuts,omitempty"`
	SkidDurationMsMax     float64  `json:"skid_duration_ms_max"`
	StompHitstopFramesMin int      `json:"stomp_hitstop_frames_min"`
	StompHitstopFramesMax int      `json:"stomp_hitstop_frames_max"`
	StompHitstopMs        *float64 `json:"stomp_hitstop_ms,omitempty"`
}

// DefaultContract returns the built-in thresholds.
func DefaultContract() Contract {
	return Contract{
		JumpCutFrames:         1,
		JumpCutWindowMs:       90,
		SkidDurationMsMax:     200,
		StompHitstopFramesMin: 2,
		StompHitstopFramesMax: 4,
	}
}

// AllowedCuts is the number of jump-cut transitions a pass may show. It is
// never below 1.
func (c Contract) AllowedCuts() int {
	if c.JumpCutMaxCuts > 0 {
		return c.JumpCutMaxCuts
	}
	return max(1, c.JumpCutFrames)
}

// contractFile distinguishes unset fields from zero values.
type contractFile struct {
	JumpCutFrames         *int     `json:"jump_cut_frames"`
	JumpCutWindowMs       *float64 `json:"jump_cut_window_ms"`
	JumpCutMaxCuts        *int     `json:"jump_cut_max_cuts"`
	SkidDurationMsMax     *float64 `json:"skid_duration_ms_max"`
	StompHitstopFramesMin *int     `json:"stomp_hitstop_frames_min"`
	StompHitstopFramesMax *int     `json:"stomp_hitstop_frames_max"`
	StompHitstopMs        *float64 `json:"stomp_hitstop_ms"`
}

// ParseContract validates data and overlays the fields it sets onto the
// defaults.
func ParseContract(data []byte) (Contract, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return DefaultContract(), fmt.Errorf("invalid contract JSON: %w", err)
	}
	if err := contractSchema.Validate(doc); err != nil {
		return DefaultContract(), fmt.Errorf("contract does not match schema: %w", err)
	}
	var f contractFile
	if err := json.Unmarshal(data, &f); err != nil {
		return DefaultContract(), fmt.Errorf("invalid contract: %w", err)
	}
	c := DefaultContract()
	if f.JumpCutFrames != nil {
		c.JumpCutFrames = *f.JumpCutFrames
	}
	if f.JumpCutWindowMs != nil {
		c.JumpCutWindowMs = *f.JumpCutWindowMs
	}
	if f.JumpCutMaxCuts != nil {
		c.JumpCutMaxCuts = *f.JumpCutMaxCuts
	}
	if f.SkidDurationMsMax != nil {
		c.SkidDurationMsMax = *f.SkidDurationMsMax
	}
	if f.StompHitstopFramesMin != nil {
		c.StompHitstopFramesMin = *f.StompHitstopFramesMin
	}
	if f.StompHitstopFramesMax != nil {
		c.StompHitstopFramesMax = *f.StompHitstopFramesMax
	}
	c.StompHitstopMs = f.StompHitstopMs
	if c.StompHitstopFramesMin > c.StompHitstopFramesMax {
		return DefaultContract(), fmt.Errorf("stomp_hitstop_frames_min %d exceeds stomp_hitstop_frames_max %d",
			c.StompHitstopFramesMin, c.StompHitstopFramesMax)
	}
	return c, nil
}

// LoadContract reads the contract at path. It always returns a usable
// contract: an empty path, a missing or unreadable file, or an invalid
// document yield the defaults, with the reason returned as the error for
// callers that want to report it.
func LoadContract(path string) (Contract, error) {
	if path == "" {
		return DefaultContract(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultContract(), fmt.Errorf("failed to read contract: %w", err)
	}
	c, err := ParseContract(data)
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
