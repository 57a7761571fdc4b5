package config

import (
	"strings"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaLookup(t *testing.T) {
	t.Parallel()
	s := NewSchema(
		Option{Key: "url", Default: "http://x"},
		Option{Section: "scenarios", Key: "format"},
	)

	opt, ok := s.Lookup("", "url")
	require.True(t, ok)
	assert.Equal(t, "http://x", opt.Default)
	_, ok = s.Lookup("", "format")
	assert.False(t, ok)
	_, ok = s.Lookup("scenarios", "format")
	assert.True(t, ok)
	_, ok = s.Lookup("missing", "format")
	assert.False(t, ok)

	opt, ok = s.Find("scenarios", "url")
	assert.True(t, ok, "globals are known in every section")
	assert.Empty(t, opt.Section)
	_, ok = s.Find("", "format")
	assert.False(t, ok)
	assert.Equal(t, []string{"scenarios"}, s.Sections())
}

func TestSchemaAddReplaces(t *testing.T) {
	t.Parallel()
	s := NewSchema(Option{Key: "driver", Default: "chrome"}, Option{Key: "url"})
	s.Add(Option{Key: "driver", Default: "goja"})
	opts := s.Options("")
	require.Len(t, opts, 2)
	assert.Equal(t, "driver", opts[0].Key, "position kept")
	assert.Equal(t, "goja", opts[0].Default)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()
	for _, tc := range []struct {
		name    string
		content string
		want    []string
	}{
		{name: "valid", content: "url http://x\nheadless no\niterations 3\ntimeout 5m\n[run]\nlevels all\n[validate]\nstrict on"},
		{name: "unknown global", content: "colour auto", want: []string{`unknown global option: "colour"`}},
		{name: "unknown in section", content: "[run]\npager less", want: []string{`unknown option for command "run": "pager"`}},
		{name: "section type", content: "[validate]\nstrict sometimes", want: []string{`option "strict" in [validate]: expected bool`}},
		{name: "global type in section", content: "[run]\ntimeout forever", want: []string{`option "timeout" in [run]: expected duration`}},
		{name: "lists accept anything", content: "save-keys a, b ,c\nworld-layout 1,2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(tc.content))
			require.NoError(t, err)
			issues := s.Validate(cfg)
			require.Len(t, issues, len(tc.want), "%v", issues)
			for i, want := range tc.want {
				assert.Contains(t, issues[i], want)
			}
		})
	}
}

func TestKindCheck(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		kind  Kind
		value string
		ok    bool
	}{
		{KindString, "", true},
		{KindList, "a,,b", true},
		{KindBool, "yes", true},
		{KindBool, "2", false},
		{KindInt, "-4", true},
		{KindInt, "4.5", false},
		{KindDuration, "250ms", true},
		{KindDuration, "250", false},
		{Kind("color"), "red", false},
	} {
		err := tc.kind.Check(tc.value)
		if tc.ok {
			assert.NoError(t, err, "%s %q", tc.kind, tc.value)
		} else {
			assert.Error(t, err, "%s %q", tc.kind, tc.value)
		}
	}
}

func TestSchemaResolve(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()
	assert.Equal(t, "info", s.Resolve(c, "log.level"), "schema default")

	c.Set("log.level", "debug")
	assert.Equal(t, "debug", s.Resolve(c, "log.level"))

	t.Setenv("PLAYFEEL_LOG_LEVEL", "warn")
	assert.Equal(t, "warn", s.Resolve(c, "log.level"))

	assert.Empty(t, s.Resolve(c, "nonexistent"))
}

func TestDefaultSchema_CoversSettings(t *testing.T) {
	t.Parallel()
	params, err := env.GetFieldParams(&Settings{})
	require.NoError(t, err)

	byEnv := make(map[string]Option)
	for _, opt := range DefaultSchema().Options("") {
		if opt.EnvVar != "" {
			byEnv[opt.EnvVar] = opt
		}
	}
	require.Len(t, byEnv, len(params), "one schema option per setting")
	for _, p := range params {
		opt, ok := byEnv[p.Key]
		if assert.True(t, ok, "no schema option for %s", p.Key) && opt.Default != "" {
			assert.NoError(t, opt.Kind.Check(opt.Default), "default of %s", opt.Key)
		}
	}
}

func TestWriteHelp(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	require.NoError(t, DefaultSchema().WriteHelp(&b))
	help := b.String()
	assert.True(t, strings.HasPrefix(help, "Global options:\n"))
	assert.Regexp(t, `(?m)^  iterations\s+Choreography passes per pair\s+\(type: int, default: 1, env: PLAYFEEL_ITERATIONS\)$`, help)
	assert.Contains(t, help, "\n\n[scenarios] options:\n")
	assert.Contains(t, help, "[validate] options:")

	b.Reset()
	require.NoError(t, NewSchema().WriteHelp(&b))
	assert.Empty(t, b.String())
}
