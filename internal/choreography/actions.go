package choreography

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/joeycumines/playfeel/internal/findings"
	"github.com/joeycumines/playfeel/internal/signal"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxActionFileSize bounds action files, which are a few hundred bytes in
// practice.
const maxActionFileSize = 1 << 20

//go:embed actions.schema.json
var actionSchemaSource []byte

const actionSchemaURL = "https://playfeel.invalid/actions.schema.json"

var actionSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(actionSchemaURL, bytes.NewReader(actionSchemaSource)); err != nil {
		panic(fmt.Errorf("add schema resource: %w", err))
	}
	return compiler.MustCompile(actionSchemaURL)
}()

// ErrNoSteps is returned for a well-formed action file with no steps.
var ErrNoSteps = errors.New("action file has no steps")

// Scenario is a resolved input timeline.
type Scenario struct {
	ID     string
	Steps  []Step
	Notes  string
	Source findings.ActionSource
	// Path is the action file consulted, if any.
	Path string
	// Err explains why the file was not used.
	Err error
}

var fallbacks = map[string][]Step{
	signal.JumpCut: {
		{Buttons: []string{"right"}, Frames: 6},
		{Buttons: []string{"right", "space"}, Frames: 8},
		{Buttons: []string{"right"}, Frames: 10},
		{Buttons: []string{"left", "shift"}, Frames: 8},
		{Buttons: []string{"right"}, Frames: 12},
	},
	signal.RunSkid: {
		{Buttons: []string{"right", "shift"}, Frames: 36},
		{Buttons: []string{"left"}, Frames: 14},
		{Frames: 10},
	},
	signal.Stomp: {
		{Buttons: []string{"right", "shift"}, Frames: 24},
		{Buttons: []string{"right", "space"}, Frames: 10},
		{Buttons: []string{"right"}, Frames: 26},
		{Frames: 20},
	},
	signal.Telegraph: {
		{Frames: 45},
		{Buttons: []string{"right"}, Frames: 30},
	},
}

// Fallback returns a copy of the built-in timeline for id.
func Fallback(id string) []Step {
	steps := fallbacks[id]
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = Step{Buttons: slices.Clone(s.Buttons), Frames: s.Frames}
	}
	return out
}

// FilePath returns where the action file for id lives under dir.
func FilePath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// Load resolves the timeline for id. The built-in timeline is used unless dir
// holds a valid, non-empty action file; Source records which case applied.
func Load(dir, id string, buttons ButtonMap) Scenario {
	sc := Scenario{ID: id, Source: findings.ActionSourceFallback}
	if dir == "" {
		sc.Steps = Fallback(id)
		return sc
	}
	sc.Path = FilePath(dir, id)
	steps, notes, err := LoadFile(sc.Path, buttons)
	switch {
	case err == nil:
		sc.Steps, sc.Notes, sc.Source = steps, notes, findings.ActionSourceFile
		return sc
	case errors.Is(err, os.ErrNotExist):
		sc.Source = findings.ActionSourceMissing
	case errors.Is(err, ErrNoSteps):
		sc.Source, sc.Notes = findings.ActionSourceEmptyFile, notes
	default:
		sc.Source = findings.ActionSourceInvalidFile
	}
	sc.Err = err
	sc.Steps = Fallback(id)
	return sc
}

type actionFile struct {
	Notes string `json:"notes"`
	Steps []Step `json:"steps"`
}

// LoadFile reads and validates one action file. Every button must resolve
// through buttons.
func LoadFile(path string, buttons ButtonMap) ([]Step, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.Size() > maxActionFileSize {
		return nil, "", fmt.Errorf("action file %q is too large (%d bytes, max %d)", path, info.Size(), maxActionFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read action file %q: %w", path, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("failed to parse action file %q: %w", path, err)
	}
	if err := actionSchema.Validate(doc); err != nil {
		return nil, "", fmt.Errorf("action file %q does not match schema: %w", path, err)
	}
	var f actionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("failed to decode action file %q: %w", path, err)
	}
	if len(f.Steps) == 0 {
		return nil, f.Notes, fmt.Errorf("%q: %w", path, ErrNoSteps)
	}
	for i, s := range f.Steps {
		if _, err := buttons.Resolve(s.Buttons); err != nil {
			return nil, "", fmt.Errorf("action file %q step %d: %w", path, i+1, err)
		}
	}
	return f.Steps, f.Notes, nil
}
