package config

import (
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(nil, "run", nil)
	require.NoError(t, err)
	assert.Equal(t, "", s.URL)
	assert.Equal(t, "all", s.Scenario)
	assert.Equal(t, "1-1", s.Levels)
	assert.Equal(t, 1, s.Iterations)
	assert.Equal(t, "artifacts", s.ArtifactsRoot)
	assert.True(t, s.Headless)
	assert.Equal(t, "chrome", s.Driver)
	assert.Equal(t, "__GAME_DEBUG__", s.DebugGlobal)
	assert.Equal(t, []string{"game.save.v2", "game.save.v1", "game_save"}, s.SaveKeys)
	assert.Equal(t, "info", s.LogLevel)
	assert.Zero(t, s.Timeout)
}

func TestLoadSettings_Precedence(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`url http://file
iterations 2
headless off
levels 1-2
timeout 90s

[run]
iterations 3
`))
	require.NoError(t, err)

	s, err := LoadSettings(cfg, "run", map[string]string{
		"PLAYFEEL_LEVELS":    "2-1,2-2",
		"PLAYFEEL_SAVE_KEYS": "a,b",
		"UNRELATED":          "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://file", s.URL, "file over default")
	assert.Equal(t, 3, s.Iterations, "command section over global")
	assert.False(t, s.Headless, "file booleans accept on/off")
	assert.Equal(t, "2-1,2-2", s.Levels, "environment over file")
	assert.Equal(t, []string{"a", "b"}, s.SaveKeys)
	assert.Equal(t, 90*time.Second, s.Timeout)

	other, err := LoadSettings(cfg, "scenarios", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, other.Iterations, "other commands see the global value")

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	s.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--levels", "all", "--headless", "off", "--save-keys", "k1, k2"}))
	assert.Equal(t, "all", s.Levels, "flag over environment")
	assert.False(t, s.Headless, "headless takes a value")
	assert.Equal(t, []string{"k1", "k2"}, s.SaveKeys)
	assert.Equal(t, 3, s.Iterations, "unset flags keep the resolved value")
}

func TestBindFlags_Headless(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want bool
	}{
		{[]string{"--headless", "false"}, false},
		{[]string{"--headless=false"}, false},
		{[]string{"-headless", "no"}, false},
		{[]string{"--headless", "true"}, true},
		{nil, true},
	} {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			s, err := LoadSettings(nil, "run", nil)
			require.NoError(t, err)
			fs := flag.NewFlagSet("run", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			s.BindFlags(fs)
			require.NoError(t, fs.Parse(tc.args))
			assert.Empty(t, fs.Args())
			assert.Equal(t, tc.want, s.Headless)
		})
	}

	s, err := LoadSettings(nil, "run", nil)
	require.NoError(t, err)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	s.BindFlags(fs)
	assert.Error(t, fs.Parse([]string{"--headless", "maybe"}))
	assert.Error(t, fs.Parse([]string{"--headless"}), "a value is required")
}

func TestLoadSettings_Errors(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("headless", "sometimes")
	_, err := LoadSettings(cfg, "run", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headless")

	_, err = LoadSettings(nil, "run", map[string]string{"PLAYFEEL_ITERATIONS": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Iterations")
}

func TestParseViewport(t *testing.T) {
	w, h, err := ParseViewport(" 1280X720 ")
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	for _, bad := range []string{"", "1280", "0x720", "axb", "1280x-1"} {
		_, _, err := ParseViewport(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}
