package wazero_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/host"
	wazeroengine "github.com/reglet-dev/scriptmeasure/infrastructure/wazero"
	"github.com/reglet-dev/scriptmeasure/internal/testutil"
)

func TestMeasureLifecycle_Wazero(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := testutil.WriteScript(t, dir, "measure.wasm", string(measureModule()))

	engine, err := wazeroengine.NewEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(ctx) })
	mgr := host.NewManager(engine)

	api := testutil.NewFakeHostAPI("Wasm", map[string]string{entities.OptionScriptPath: path})
	m, err := host.NewMeasure(ctx, mgr, api)
	require.NoError(t, err)

	maxValue := 1.0
	m.Reload(ctx, api, &maxValue)
	require.Equal(t, entities.StateReady, m.State())
	assert.Equal(t, 99.0, maxValue)

	assert.Equal(t, 42.5, m.Update(ctx))
	s := m.Stringify(ctx)
	require.NotNil(t, s)
	assert.Equal(t, "hello", s.String())

	m.Command(ctx, "ping")

	// No Finalize export: destroy still succeeds.
	require.NoError(t, m.Destroy(ctx))
	assert.True(t, s.Freed())
	assert.False(t, mgr.State().Initialized)
}

func TestMeasureLifecycle_WazeroClassNotFound(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteScript(t, t.TempDir(), "measure.wasm", string(measureModule()))

	engine, err := wazeroengine.NewEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(ctx) })
	mgr := host.NewManager(engine)

	api := testutil.NewFakeHostAPI("Wasm", map[string]string{
		entities.OptionScriptPath: path,
		entities.OptionClassName:  "Gauge",
	})
	m, err := host.NewMeasure(ctx, mgr, api)
	require.NoError(t, err)
	defer func() { _ = m.Destroy(ctx) }()

	m.Reload(ctx, api, nil)
	s := m.Stringify(ctx)
	require.NotNil(t, s)
	assert.Equal(t, "Script class not found", s.String())
}
