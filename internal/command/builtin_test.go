package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/joeycumines/playfeel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(NewHelpCommand(r))
	r.Register(NewVersionCommand("1.2.3"))
	r.Register(NewRunCommand(cfg, nil))
	r.Register(NewScenariosCommand(cfg, nil))
	r.SetDefault("run")
	return r
}

func execute(t *testing.T, cmd Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestHelpCommand(t *testing.T) {
	r := testRegistry(nil)
	help, err := r.Get("help")
	require.NoError(t, err)

	t.Run("general", func(t *testing.T) {
		out, _, err := execute(t, help)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage: playfeel [command] [options] [args...]")
		assert.Contains(t, out, "(runs 'run')")
		assert.Regexp(t, `(?m)^  scenarios\s+List scenarios and their action sources$`, out)
		assert.Regexp(t, `(?m)^  version\s+Display version information$`, out)
	})

	t.Run("command flags", func(t *testing.T) {
		out, _, err := execute(t, help, "run")
		require.NoError(t, err)
		assert.Contains(t, out, "Command: run")
		assert.Contains(t, out, "Flags:")
		for _, f := range []string{"-url", "-scenario", "-levels", "-artifacts-root", "-headless", "-iterations", "-contract", "-scenarios-dir", "-driver", "-app-script", "-log-level", "-log-file"} {
			assert.Regexp(t, `(?m)^  `+regexp.QuoteMeta(f)+`( |$)`, out)
		}
	})

	t.Run("no flags", func(t *testing.T) {
		out, _, err := execute(t, help, "version")
		require.NoError(t, err)
		assert.NotContains(t, out, "Flags:")
	})

	t.Run("unknown", func(t *testing.T) {
		_, stderr, err := execute(t, help, "fly")
		require.Error(t, err)
		assert.Contains(t, stderr, "Unknown command: fly")
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	out, _, err := execute(t, cmd)
	require.NoError(t, err)
	assert.Equal(t, "playfeel version 1.2.3\n", out)

	_, stderr, err := execute(t, cmd, "extra")
	require.Error(t, err)
	assert.Contains(t, stderr, "unexpected arguments")
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("url http://x\ncolour red\n[run]\niterations 4\n[signals]\nskid hero.skid\n"), 0o644))
	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)

	t.Run("show", func(t *testing.T) {
		out, _, err := execute(t, NewConfigCommand(cfg, path))
		require.NoError(t, err)
		assert.Equal(t, "Global configuration:\n  colour: red\n  url: http://x\n", out)
	})

	t.Run("show all", func(t *testing.T) {
		cmd := NewConfigCommand(cfg, path)
		cmd.showAll = true
		out, _, err := execute(t, cmd)
		require.NoError(t, err)
		assert.Contains(t, out, "[run]\n  iterations: 4\n")
		assert.Contains(t, out, "[signals]\n  skid: hero.skid\n")
	})

	t.Run("get", func(t *testing.T) {
		out, _, err := execute(t, NewConfigCommand(cfg, path), "url")
		require.NoError(t, err)
		assert.Equal(t, "url: http://x\n", out)

		out, _, err = execute(t, NewConfigCommand(cfg, path), "levels")
		require.NoError(t, err)
		assert.Equal(t, "levels: 1-1\n", out, "schema default")

		cmd := NewConfigCommand(cfg, path)
		cmd.section = "run"
		out, _, err = execute(t, cmd, "iterations")
		require.NoError(t, err)
		assert.Equal(t, "iterations: 4\n", out)

		out, _, err = execute(t, NewConfigCommand(cfg, path), "nope")
		require.NoError(t, err)
		assert.Contains(t, out, "'nope' not found")
	})

	t.Run("validate", func(t *testing.T) {
		out, _, err := execute(t, NewConfigCommand(cfg, path), "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration has 1 issue(s):")
		assert.Contains(t, out, `unknown global option: "colour"`)
	})

	t.Run("schema", func(t *testing.T) {
		out, _, err := execute(t, NewConfigCommand(cfg, path), "schema")
		require.NoError(t, err)
		assert.Contains(t, out, "PLAYFEEL_URL")
	})
}

func TestConfigCommand_Set(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config")
	cfg := config.NewConfig()

	out, _, err := execute(t, NewConfigCommand(cfg, path), "iterations", "3")
	require.NoError(t, err)
	assert.Equal(t, "Set configuration: iterations = 3\n", out)
	assert.Equal(t, "3", cfg.Global["iterations"])

	cmd := NewConfigCommand(cfg, path)
	cmd.section = "validate"
	_, _, err = execute(t, cmd, "strict", "yes")
	require.NoError(t, err)
	assert.Equal(t, "yes", cfg.Commands["validate"]["strict"])

	_, stderr, err := execute(t, NewConfigCommand(cfg, path), "iterations", "lots")
	require.Error(t, err)
	assert.Contains(t, stderr, "expected int")

	_, _, err = execute(t, NewConfigCommand(cfg, path), "colour", "red")
	require.Error(t, err)

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Warnings)
	assert.Equal(t, "3", loaded.Global["iterations"])
	assert.Equal(t, "yes", loaded.Commands["validate"]["strict"])
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".playfeel", "config")
	cmd := NewInitCommand(path)

	out, stderr, err := execute(t, cmd)
	require.NoError(t, err)
	assert.Empty(t, stderr, "starter config has no warnings")
	assert.Contains(t, out, "Initialized playfeel configuration at: "+path)

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "1-1", cfg.Global["levels"])
	v, ok := cfg.Value("run", "scenario")
	require.True(t, ok)
	assert.Equal(t, "all", v)

	require.NoError(t, os.WriteFile(path, []byte("url http://mine\n"), 0o644))
	out, _, err = execute(t, cmd)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "url http://mine\n", string(data))

	cmd.force = true
	_, _, err = execute(t, cmd)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# playfeel configuration file"))
}

func TestCompletionCommand(t *testing.T) {
	r := testRegistry(nil)
	cmd := NewCompletionCommand(r)

	out, _, err := execute(t, cmd)
	require.NoError(t, err)
	assert.Contains(t, out, "complete -F _playfeel_completion playfeel")
	assert.Contains(t, out, `"help run scenarios version"`)
	assert.Contains(t, out, `"jump-cut run-skid stomp telegraph all"`)

	out, _, err = execute(t, cmd, "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "#compdef playfeel")
	assert.Contains(t, out, "'--driver=[driver]:value:(chrome goja)'")

	out, _, err = execute(t, cmd, "fish")
	require.NoError(t, err)
	assert.Contains(t, out, "complete -c playfeel -n '__fish_seen_subcommand_from run' -l url -r")

	_, _, err = execute(t, cmd, "tcsh")
	require.Error(t, err)
}
