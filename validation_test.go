package scriptmeasure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/internal/testutil"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       entities.BridgeConfig
		wantField string
	}{
		{name: "default", cfg: entities.DefaultBridgeConfig()},
		{name: "explicit engine", cfg: entities.NewBridgeConfig(entities.WithEngine(entities.EngineWazero))},
		{name: "empty engine", cfg: entities.BridgeConfig{}},
		{name: "unknown engine", cfg: entities.BridgeConfig{Engine: "lua"}, wantField: "BridgeConfig.Engine"},
		{name: "negative string cap", cfg: entities.BridgeConfig{MaxStringBytes: -1}, wantField: "BridgeConfig.MaxStringBytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Equal(t, "config", ToErrorDetail(err).Type)
		})
	}
}

func TestValidateOptions(t *testing.T) {
	home := t.TempDir()
	tests := []struct {
		name    string
		opts    entities.MeasureOptions
		wantErr string
	}{
		{name: "defaults", opts: entities.DefaultMeasureOptions()},
		{name: "dotted class", opts: entities.MeasureOptions{ScriptPath: "a.js", ClassName: "widgets.Clock"}},
		{name: "home directory", opts: entities.MeasureOptions{ScriptPath: "a.js", ClassName: "M", RuntimeHome: home}},
		{name: "missing path", opts: entities.MeasureOptions{ClassName: "M"}, wantErr: "ScriptPath"},
		{name: "class with space", opts: entities.MeasureOptions{ScriptPath: "a.js", ClassName: "My Class"}, wantErr: "ClassName"},
		{name: "class with trailing dot", opts: entities.MeasureOptions{ScriptPath: "a.js", ClassName: "widgets."}, wantErr: "ClassName"},
		{name: "class starting with digit", opts: entities.MeasureOptions{ScriptPath: "a.js", ClassName: "1st"}, wantErr: "ClassName"},
		{name: "home not a directory", opts: entities.MeasureOptions{ScriptPath: "a.js", ClassName: "M", RuntimeHome: home + "/missing"}, wantErr: "RuntimeHome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOptions(tt.opts)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSkin(t *testing.T) {
	valid := func() *entities.Skin {
		return &entities.Skin{
			Name: "Clock",
			Measures: []entities.SkinMeasure{
				{Name: "Time", Options: map[string]string{"ScriptPath": "clock.js"}},
				{Name: "Date"},
			},
		}
	}

	assert.NoError(t, ValidateSkin(valid()))
	assert.Error(t, ValidateSkin(nil))

	noName := valid()
	noName.Name = ""
	assert.ErrorContains(t, ValidateSkin(noName), "Skin.Name")

	duplicate := valid()
	duplicate.Measures[1].Name = "Time"
	assert.ErrorContains(t, ValidateSkin(duplicate), "Measures")

	empty := valid()
	empty.Measures = nil
	assert.ErrorContains(t, ValidateSkin(empty), "Measures")

	unnamed := valid()
	unnamed.Measures[0].Name = ""
	assert.ErrorContains(t, ValidateSkin(unnamed), "Measures[0].Name")

	badEngine := valid()
	badEngine.Bridge.Engine = "lua"
	assert.ErrorContains(t, ValidateSkin(badEngine), "Bridge.Engine")
}

func TestReadMeasureOptions(t *testing.T) {
	dir := t.TempDir()

	opts := ReadMeasureOptions(testutil.NewFakeHostAPI("m", nil))
	assert.Equal(t, entities.DefaultMeasureOptions(), opts)

	api := testutil.NewFakeHostAPI("m", map[string]string{
		"scriptpath": "/abs/clock.js",
		"ClassName":  "Clock",
		"PythonHome": dir,
	})
	opts = ReadMeasureOptions(api)
	assert.Equal(t, "/abs/clock.js", opts.ScriptPath)
	assert.Equal(t, "Clock", opts.ClassName)
	assert.Equal(t, dir, opts.RuntimeHome)

	api.Options.Set(entities.OptionRuntimeHome, "/preferred")
	assert.Equal(t, "/preferred", ReadMeasureOptions(api).RuntimeHome)
}
