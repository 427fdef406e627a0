package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/reglet-dev/scriptmeasure/domain/errors"
)

func TestOptions_ReadString(t *testing.T) {
	vars := NewVariables(map[string]string{"Unit": "°C", "Empty": ""})
	opts := NewOptions(map[string]string{
		"ScriptPath": "weather.js",
		"Label":      "Temp #Unit#",
		"Blank":      "",
	}, WithVariables(vars))

	tests := []struct {
		name       string
		option     string
		def        string
		substitute bool
		want       string
	}{
		{name: "exact key", option: "ScriptPath", want: "weather.js"},
		{name: "case insensitive", option: "scriptpath", want: "weather.js"},
		{name: "missing uses default", option: "ClassName", def: "Measure", want: "Measure"},
		{name: "empty uses default", option: "Blank", def: "x", want: "x"},
		{name: "no substitution", option: "Label", want: "Temp #Unit#"},
		{name: "substitution", option: "label", substitute: true, want: "Temp °C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := opts.ReadString(tt.option, tt.def, tt.substitute)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariables_Substitute(t *testing.T) {
	vars := NewVariables(map[string]string{"A": "1", "b": "two"})

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "#A#", want: "1"},
		{in: "#a##B#", want: "1two"},
		{in: "x#unknown#y", want: "x#unknown#y"},
		{in: "50# of #A#", want: "50# of 1"},
		{in: "trailing #", want: "trailing #"},
		{in: "##", want: "##"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, vars.Substitute(tt.in))
		})
	}
}

func TestOptions_ReadPath(t *testing.T) {
	base := t.TempDir()
	opts := NewOptions(map[string]string{
		"Rel": "scripts/a.js",
		"Abs": filepath.Join(base, "b.js"),
	}, WithBaseDir(base))

	got, ok := opts.ReadPath("Rel", "")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(base, "scripts", "a.js"), got)

	got, _ = opts.ReadPath("Abs", "")
	assert.Equal(t, filepath.Join(base, "b.js"), got)

	got, _ = opts.ReadPath("Missing", "")
	assert.Empty(t, got)

	got, _ = opts.ReadPath("Missing", "default.js")
	assert.Equal(t, filepath.Join(base, "default.js"), got)
}

func TestOptions_ReadNumbers(t *testing.T) {
	opts := NewOptions(map[string]string{
		"Float": " 2.5 ",
		"Int":   "42",
		"Frac":  "7.9",
		"Bad":   "abc",
		"Var":   "#N#",
	}, WithVariables(NewVariables(map[string]string{"N": "3"})))

	assert.InDelta(t, 2.5, opts.ReadDouble("Float", 0), 1e-9)
	assert.InDelta(t, 1.5, opts.ReadDouble("Bad", 1.5), 1e-9)
	assert.InDelta(t, 3.0, opts.ReadDouble("Var", 0), 1e-9)

	assert.Equal(t, 42, opts.ReadInt("Int", 0))
	assert.Equal(t, 7, opts.ReadInt("Frac", 0))
	assert.Equal(t, -1, opts.ReadInt("Bad", -1))
	assert.Equal(t, 9, opts.ReadInt("Missing", 9))
}

func TestOptions_SetAndRequire(t *testing.T) {
	opts := NewOptions(nil)

	_, err := opts.Require("ScriptPath")
	require.Error(t, err)
	var cfgErr *domainerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ScriptPath", cfgErr.Field)

	opts.Set("SCRIPTPATH", "x.js")
	v, err := opts.Require("ScriptPath")
	require.NoError(t, err)
	assert.Equal(t, "x.js", v)
	assert.Equal(t, map[string]string{"scriptpath": "x.js"}, opts.Snapshot())
}

func TestVariables_SharedAcrossOptions(t *testing.T) {
	vars := NewVariables(nil)
	a := NewOptions(map[string]string{"Text": "#Msg#"}, WithVariables(vars))
	b := NewOptions(map[string]string{"Text": "[#Msg#]"}, WithVariables(vars))

	vars.Set("msg", "hi")

	got, _ := a.ReadString("Text", "", true)
	assert.Equal(t, "hi", got)
	got, _ = b.ReadString("Text", "", true)
	assert.Equal(t, "[hi]", got)
	assert.Same(t, vars, a.Variables())
}
