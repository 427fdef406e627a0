package entities

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "error", want: LogError},
		{in: "Warning", want: LogWarning},
		{in: "warn", want: LogWarning},
		{in: "notice", want: LogNotice},
		{in: "info", want: LogNotice},
		{in: " DEBUG ", want: LogDebug},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "error", LogError.String())
	assert.Equal(t, "debug", LogDebug.String())
	assert.Equal(t, "level(9)", LogLevel(9).String())
	assert.False(t, LogLevel(0).Valid())
}

func TestMeasureOptions_ScriptParts(t *testing.T) {
	opts := MeasureOptions{ScriptPath: "/skins/cpu/usage.js"}
	dir, base, ext := opts.ScriptParts()
	assert.Equal(t, "/skins/cpu", dir)
	assert.Equal(t, "usage", base)
	assert.Equal(t, ".js", ext)

	opts = MeasureOptions{ScriptPath: "plain"}
	dir, base, ext = opts.ScriptParts()
	assert.Equal(t, ".", dir)
	assert.Equal(t, "plain", base)
	assert.Empty(t, ext)
}

func TestNewBridgeConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewBridgeConfig()
		assert.Equal(t, EngineAuto, cfg.Engine)
		assert.False(t, cfg.SharedContext)
		assert.Equal(t, slog.LevelWarn, cfg.CallErrorLevel(OpUpdate))
	})

	t.Run("per operation levels", func(t *testing.T) {
		cfg := NewBridgeConfig(
			WithCallErrorLevel(OpUpdate, LevelDiscard),
			WithDefaultCallErrorLevel(slog.LevelError),
			WithMaxStringBytes(-5),
		)
		assert.Equal(t, LevelDiscard, cfg.CallErrorLevel(OpUpdate))
		assert.Equal(t, slog.LevelError, cfg.CallErrorLevel(OpReload))
		assert.Equal(t, DefaultBridgeConfig().MaxStringBytes, cfg.MaxStringBytes)
	})
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Std())

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "250ms", string(out))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestErrorDetail_Error(t *testing.T) {
	d := NewErrorDetail("load", "Script class not found").WithCode("class_not_found")
	assert.Equal(t, "load: Script class not found [class_not_found]", d.Error())

	var nilDetail *ErrorDetail
	assert.Empty(t, nilDetail.Error())
}

func TestParseCallErrorLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"error+2": slog.LevelError + 2,
		"Discard": LevelDiscard,
	}
	for in, want := range tests {
		got, err := ParseCallErrorLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCallErrorLevel("loud")
	assert.Error(t, err)
}
