package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: LevelDebug, Format: "json", Output: &buf}))
	t.Cleanup(func() { defaultLogger = nil })

	LogAllocation("S.sum", 3, 1, 16)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Register allocation complete", rec["msg"])
	assert.Equal(t, "S.sum", rec["function"])
	assert.Equal(t, float64(1), rec["spills"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: LevelWarn, Output: &buf}))
	t.Cleanup(func() { defaultLogger = nil })

	LogPhase("optimize")
	assert.Empty(t, buf.String())

	LogUninitialized("F.f", "x")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "id=x")
}
