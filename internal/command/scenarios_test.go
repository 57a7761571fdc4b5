package command

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/playfeel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCommand(t *testing.T, cmd Command, args ...string) []string {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs.Args()
}

func TestScenariosCommand_Plain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jump-cut.json"), []byte(`{"notes":"short hop","steps":[{"buttons":["space"],"frames":3},{"frames":2}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stomp.json"), []byte(`{"steps":[]}`), 0o644))

	cmd := NewScenariosCommand(nil, map[string]string{"PLAYFEEL_SCENARIOS_DIR": dir})
	args := setupCommand(t, cmd, "--format", "plain")
	out, _, err := execute(t, cmd, args...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Regexp(t, `^ID\s+NAME\s+SOURCE\s+STEPS\s+FRAMES\s+NOTE$`, lines[0])
	assert.Regexp(t, `^jump-cut\s+Jump Cut\s+file\s+2\s+5\s+short hop$`, lines[1])
	assert.Regexp(t, `^run-skid\s+Run Skid\s+missing\s+\d+\s+60\s*$`, lines[2])
	assert.Regexp(t, `^stomp\s+Stomp\s+empty_file\s+\d+\s+80\s+.*no steps`, lines[3])
	assert.Regexp(t, `^telegraph\s+Telegraph\s+missing\s+\d+\s+75\s*$`, lines[4])
}

func TestScenariosCommand_Fallback(t *testing.T) {
	cmd := NewScenariosCommand(nil, nil)
	args := setupCommand(t, cmd, "--format=plain")
	out, _, err := execute(t, cmd, args...)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^jump-cut\s+Jump Cut\s+fallback\s+\d+\s+44\s*$`, out)
}

func TestScenariosCommand_Table(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("[scenarios]\nformat table\n"))
	require.NoError(t, err)
	cmd := NewScenariosCommand(cfg, nil)
	args := setupCommand(t, cmd)
	out, _, err := execute(t, cmd, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Frames")
	assert.Contains(t, out, "Run Skid")
	assert.Contains(t, out, "┌")
}

func TestScenariosCommand_Errors(t *testing.T) {
	cmd := NewScenariosCommand(nil, nil)
	args := setupCommand(t, cmd, "--format", "xml")
	_, _, err := execute(t, cmd, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)

	_, stderr, err := execute(t, NewScenariosCommand(nil, nil), "extra")
	require.Error(t, err)
	assert.Contains(t, stderr, "unexpected arguments")
}
