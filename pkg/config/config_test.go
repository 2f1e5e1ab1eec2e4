package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

const sample = `
[Optimize]
Level = 2
CSE = true

[Dump]
CFG = true
Stages = ["deadcode", "cse"]
Format = "spew"

[Visualize]
Functions = ["Fac.ComputeFac"]
Dir = "out"

[RegAlloc]
Strategy = "stack"
`

func TestDecode(t *testing.T) {
	cfg := Defaults
	require.NoError(t, Decode(strings.NewReader(sample), &cfg))

	assert.Equal(t, Optimize{Level: 2, CSE: true}, cfg.Optimize)
	assert.Equal(t, []string{"deadcode", "cse"}, cfg.Dump.Stages)
	assert.Equal(t, FormatSpew, cfg.Dump.Format)
	assert.Equal(t, Visualize{Functions: []string{"Fac.ComputeFac"}, Dir: "out"}, cfg.Visualize)
	assert.Equal(t, "stack", cfg.RegAlloc.Strategy)
	// untouched sections keep their defaults
	assert.Equal(t, Defaults.Log, cfg.Log)
	assert.NoError(t, cfg.Validate())
}

func TestDecodeUnknownField(t *testing.T) {
	cfg := Defaults
	err := Decode(strings.NewReader("[Optimize]\nLevl = 2\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Levl' is not defined in config.Optimize")
}

func TestLoadAddsFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tigerc.toml")
	require.NoError(t, os.WriteFile(path, []byte("[Optimize]\nLevel = \"two\"\n"), 0o644))

	cfg := Defaults
	err := Load(path, &cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), path+", "), err.Error())

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.toml"), &cfg))
}

func TestWriteReadsBack(t *testing.T) {
	cfg := Defaults
	cfg.Dump.Stages = []string{"constprop"}
	cfg.Visualize.Functions = []string{"A.m"}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &cfg))

	var got Config
	require.NoError(t, Decode(&buf, &got))
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("config changed through TOML (-want +got):\n%s", diff)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAllocator, "stack")
	t.Setenv(EnvOptLevel, "2")
	t.Setenv(EnvCSE, "true")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvDumpCFG, "true")

	cfg := Defaults
	cfg.ApplyEnv()

	assert.Equal(t, "stack", cfg.RegAlloc.Strategy)
	assert.Equal(t, 2, cfg.Optimize.Level)
	assert.True(t, cfg.Optimize.CSE)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, Defaults.Log.Format, cfg.Log.Format)
	assert.True(t, cfg.Dump.CFG)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"level too high", func(c *Config) { c.Optimize.Level = 3 }, "optimization level 3 out of range 0..2"},
		{"negative level", func(c *Config) { c.Optimize.Level = -1 }, "out of range"},
		{"strategy", func(c *Config) { c.RegAlloc.Strategy = "coloring" }, `unknown allocation strategy "coloring"`},
		{"dump format", func(c *Config) { c.Dump.Format = "yaml" }, `unknown dump format "yaml"`},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, `unknown log level "loud"`},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, `unknown log format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Defaults
	cfg.Optimize.Level = 9
	cfg.RegAlloc.Strategy = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, strings.Split(err.Error(), "\n"), 2, "errors are joined")
}

func TestLoggerConfig(t *testing.T) {
	cfg := Defaults
	cfg.Log = Log{Level: "Debug", Format: "JSON", File: "x.log", AddSource: true}

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, logger.LevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "x.log", lc.LogFile)
	assert.True(t, lc.AddSource)

	cfg.Log.Level = "nope"
	_, err = cfg.LoggerConfig()
	assert.Error(t, err)
}
