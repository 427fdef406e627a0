package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestBridgeOptionsFromEnv(t *testing.T) {
	opts, err := bridgeOptionsFromEnv(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultBridgeConfig(), entities.NewBridgeConfig(opts...))

	opts, err = bridgeOptionsFromEnv(envOf(map[string]string{
		envEngine:         "WAZERO",
		envScriptRoot:     "/skins",
		envShared:         "true",
		envCallErrorLevel: "discard",
		envMaxStringBytes: "128",
	}))
	require.NoError(t, err)
	cfg := entities.NewBridgeConfig(opts...)
	assert.Equal(t, entities.EngineWazero, cfg.Engine)
	assert.Equal(t, "/skins", cfg.ScriptRoot)
	assert.True(t, cfg.SharedContext)
	assert.Equal(t, entities.LevelDiscard, cfg.DefaultCallErrorLevel)
	assert.Equal(t, 128, cfg.MaxStringBytes)
}

func TestBridgeOptionsFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"shared", map[string]string{envShared: "maybe"}},
		{"level", map[string]string{envCallErrorLevel: "loud"}},
		{"max bytes", map[string]string{envMaxStringBytes: "-4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bridgeOptionsFromEnv(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}
