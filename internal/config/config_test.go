package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/playfeel/internal/classify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigParsing(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`# target
url http://localhost:5173
iterations 2

[run]
iterations 3
levels all

[scenarios]
format plain`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings)

	v, ok := cfg.Value("", "url")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:5173", v)

	v, ok = cfg.Value("run", "iterations")
	require.True(t, ok)
	assert.Equal(t, "3", v, "section value shadows the global one")

	v, ok = cfg.Value("scenarios", "iterations")
	require.True(t, ok)
	assert.Equal(t, "2", v, "falls back to global")

	_, ok = cfg.Value("validate", "levels")
	assert.False(t, ok)
}

func TestEmptyConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("\n# only comments\n\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Global)
	assert.Empty(t, cfg.Commands)
	assert.Empty(t, cfg.Classify)
	assert.Empty(t, cfg.Warnings)
}

func TestValueKeepsInnerSpaces(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("url   http://host/a b  \nheadless"))
	require.NoError(t, err)
	assert.Equal(t, "http://host/a b", cfg.Global["url"])
	v, ok := cfg.Value("", "headless")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestUnknownOptionWarns(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("verbose true\niterations many\n"))
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Warnings)
	assert.Len(t, cfg.Warnings, 2)
	joined := strings.Join(cfg.Warnings, "\n")
	assert.Contains(t, joined, `unknown global option: "verbose"`)
	assert.Contains(t, joined, `global option "iterations": expected int`)
}

func TestClassifySection(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`[classify]
ignorable analytics beacon
transient re:(?i)socket hang up
`))
	require.NoError(t, err)
	require.Len(t, cfg.Classify, 2)
	assert.Empty(t, cfg.Commands, "dedicated sections are not command sections")

	c := cfg.Classifier()
	assert.Equal(t, classify.Ignorable, c.Classify("POST /analytics beacon failed"))
	assert.Equal(t, classify.Transient, c.Classify("Socket Hang Up"))
	assert.Equal(t, classify.Ignorable, c.Classify("GET /favicon.ico 404"), "defaults still apply")
	assert.Equal(t, classify.Fatal, c.Classify("TypeError: x is undefined"))
}

func TestClassifySectionErrors(t *testing.T) {
	for _, content := range []string{
		"[classify]\nsometimes favicon",
		"[classify]\nignorable",
		"[classify]\ntransient re:(unclosed",
	} {
		_, err := LoadFromReader(strings.NewReader(content))
		require.Error(t, err, content)
		assert.Contains(t, err.Error(), "line 2")
	}
}

func TestSignalsSection(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`[signals]
jump-cut hero?.cut == true
hitstop-history hero.hitstop.history, fx.hitstop
wobble true
`))
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], `unknown signal "wobble"`)

	s := cfg.SignalOverrides()
	assert.Equal(t, "hero?.cut == true", s.JumpCut)
	assert.Empty(t, s.Run)
	assert.Equal(t, []string{"hero.hitstop.history", "fx.hitstop"}, s.HitstopHistory)
}

func TestButtonsSection(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("[buttons]\nJump z\nrun shift\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"jump": "z", "run": "shift"}, cfg.Buttons)

	_, err = LoadFromReader(strings.NewReader("[buttons]\njump\n"))
	require.Error(t, err)
}

func TestSet(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("levels", "1-2")
	v, ok := cfg.Value("run", "levels")
	require.True(t, ok)
	assert.Equal(t, "1-2", v)
}

func TestLoadFromPathExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("url http://x\n[run]\nheadless false"), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://x", cfg.Global["url"])
	assert.Equal(t, "false", cfg.Commands["run"]["headless"])
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("driver goja"), 0o600))
	t.Setenv(ConfigPathEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "goja", cfg.Global["driver"])
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{
		"true": true, "YES": true, "1": true, "on": true,
		"false": false, "No": false, "0": false, "off": false,
	} {
		got, err := ParseBool(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBool("maybe")
	require.Error(t, err)
}
