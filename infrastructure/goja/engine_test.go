package goja_test

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
	gojaengine "github.com/reglet-dev/scriptmeasure/infrastructure/goja"
	"github.com/reglet-dev/scriptmeasure/internal/testutil"
)

func startedContext(t *testing.T, opts ...gojaengine.Option) ports.ScriptContext {
	t.Helper()
	ctx := context.Background()
	e, err := gojaengine.NewEngine(opts...)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx, ports.StartOptions{}))
	sc, err := e.NewContext(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close(ctx) })
	return sc
}

func instantiate(t *testing.T, sc ports.ScriptContext, src, class string) ports.ScriptObject {
	t.Helper()
	ctx := context.Background()
	ns, err := sc.RunSource(ctx, "test.js", []byte(src))
	require.NoError(t, err)
	sym, ok := ns.Lookup(ctx, class)
	require.True(t, ok, "symbol %s", class)
	obj, err := sym.Instantiate(ctx)
	require.NoError(t, err)
	return obj
}

func TestEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	e, err := gojaengine.NewEngine()
	require.NoError(t, err)
	assert.Equal(t, "goja", e.Name())

	_, err = e.NewContext(ctx)
	assert.ErrorIs(t, err, errors.ErrRuntimeNotStarted)

	file := testutil.WriteScript(t, t.TempDir(), "not-a-dir.js", "")
	assert.Error(t, e.Start(ctx, ports.StartOptions{Home: file}))
	assert.Error(t, e.Start(ctx, ports.StartOptions{Home: filepath.Join(t.TempDir(), "missing")}))

	home := t.TempDir()
	require.NoError(t, e.Start(ctx, ports.StartOptions{Home: home}))
	sc, err := e.NewContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{home}, sc.SearchPath())

	require.NoError(t, sc.Close(ctx))
	assert.Error(t, sc.Close(ctx))
	require.NoError(t, e.Shutdown(ctx))

	_, err = e.NewContext(ctx)
	assert.ErrorIs(t, err, errors.ErrRuntimeNotStarted)
}

func TestEngine_RegistryMustServeAccessor(t *testing.T) {
	empty, err := hostfuncs.NewRegistry()
	require.NoError(t, err)
	_, err = gojaengine.NewEngine(gojaengine.WithRegistry(empty))
	assert.ErrorContains(t, err, "lacks accessor function")
}

func TestContext_CallMethods(t *testing.T) {
	ctx := context.Background()
	sc := startedContext(t)
	obj := instantiate(t, sc, `
class Measure {
	constructor() { this.n = 0; this.last = ""; }
	Update() { this.n++; return 42; }
	GetString() { return "calls=" + this.n + " last=" + this.last; }
	ExecuteBang(args) { this.last = args; }
}`, "Measure")

	v, err := obj.Call(ctx, "Update")
	require.NoError(t, err)
	f, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 42.0, f)

	_, err = obj.Call(ctx, "ExecuteBang", "Toggle")
	require.NoError(t, err)

	v, err = obj.Call(ctx, "GetString")
	require.NoError(t, err)
	assert.Equal(t, "calls=1 last=Toggle", v.String())

	_, err = obj.Call(ctx, "Finalize")
	assert.ErrorIs(t, err, errors.ErrMethodNotFound)
}

func TestContext_ResultConversion(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		kind    ports.ValueKind
		text    string
		numeric bool
	}{
		{"float", "1.5", ports.KindNumber, "1.5", true},
		{"integer", "7", ports.KindNumber, "7", true},
		{"string", `"25°C"`, ports.KindString, "25°C", false},
		{"numeric string", `"42"`, ports.KindString, "42", false},
		{"bool", "true", ports.KindBool, "true", false},
		{"null", "null", ports.KindNull, "null", false},
		{"undefined", "undefined", ports.KindUndefined, "undefined", false},
		{"object", "({})", ports.KindObject, "[object Object]", false},
		{"array", "[1, 2]", ports.KindObject, "1,2", false},
		{"NaN", "NaN", ports.KindNumber, "NaN", false},
	}

	sc := startedContext(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := instantiate(t, sc, "class Measure { Update() { return "+tt.expr+"; } }", "Measure")
			v, err := obj.Call(context.Background(), "Update")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.String())
			_, numeric := v.Float()
			assert.Equal(t, tt.numeric, numeric)
		})
	}
}

func TestContext_RunSourceTwice(t *testing.T) {
	sc := startedContext(t)
	src := `
const base = 10;
let counter = 0;
class Measure { Update() { return base + (++counter); } }`

	first := instantiate(t, sc, src, "Measure")
	second := instantiate(t, sc, src, "Measure")

	v, err := first.Call(context.Background(), "Update")
	require.NoError(t, err)
	assert.Equal(t, "11", v.String())

	v, err = second.Call(context.Background(), "Update")
	require.NoError(t, err)
	assert.Equal(t, "11", v.String(), "each load has its own top-level scope")
}

func TestContext_ContextsAreIsolated(t *testing.T) {
	ctx := context.Background()
	e, err := gojaengine.NewEngine()
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx, ports.StartOptions{}))

	a, err := e.NewContext(ctx)
	require.NoError(t, err)
	b, err := e.NewContext(ctx)
	require.NoError(t, err)

	_, err = a.RunSource(ctx, "a.js", []byte(`globalThis.shared = "from a";`))
	require.NoError(t, err)

	obj := instantiate(t, b, `class Measure { GetString() { return typeof shared; } }`, "Measure")
	v, err := obj.Call(ctx, "GetString")
	require.NoError(t, err)
	assert.Equal(t, "undefined", v.String())
}

func TestNamespace_Lookup(t *testing.T) {
	ctx := context.Background()
	sc := startedContext(t)
	ns, err := sc.RunSource(ctx, "lookup.js", []byte(`
class Measure {}
const widgets = { Clock: class { Update() { return 12; } } };
var plain = 5;
function factory() { return { Update() { return 3; } }; }
const arrow = () => ({ Update() { return 4; } });
const Map = class { Update() { return 7; } };
globalThis.Installed = class {};
`))
	require.NoError(t, err)

	tests := []struct {
		name  string
		found bool
	}{
		{"Map", true},
		{"Installed", true},
		{"Date", false},
		{"Math.max", false},
		{"print", false},
		{"require", false},
		{"__symbol", false},
		{"arguments", false},
		{"this", false},
		{"Measure", true},
		{"widgets.Clock", true},
		{"plain", true},
		{"factory", true},
		{"arrow", true},
		{"Missing", false},
		{"widgets.Missing", false},
		{"1bad", false},
		{"Measure; throw 1", false},
		{"", false},
		{"a..b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ns.Lookup(ctx, tt.name)
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestSymbol_Instantiate(t *testing.T) {
	ctx := context.Background()
	sc := startedContext(t)
	ns, err := sc.RunSource(ctx, "inst.js", []byte(`
const widgets = { Clock: class { Update() { return 12; } } };
var plain = 5;
function factory() { return { Update() { return 3; } }; }
const arrow = () => ({ Update() { return 4; } });
const nothing = () => undefined;
class Broken { constructor() { throw new Error("cannot construct"); } }
`))
	require.NoError(t, err)

	tests := []struct {
		name    string
		want    string
		wantErr string
	}{
		{"widgets.Clock", "12", ""},
		{"factory", "3", ""},
		{"arrow", "4", ""},
		{"plain", "", "plain is not callable"},
		{"nothing", "", "returned undefined"},
		{"Broken", "", "cannot construct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, ok := ns.Lookup(ctx, tt.name)
			require.True(t, ok)
			obj, err := sym.Instantiate(ctx)
			if tt.wantErr != "" {
				require.Error(t, err)
				var se *gojaengine.ScriptError
				assert.ErrorAs(t, err, &se)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			v, err := obj.Call(ctx, "Update")
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestContext_ScriptErrors(t *testing.T) {
	ctx := context.Background()
	sc := startedContext(t)

	_, err := sc.RunSource(ctx, "syntax.js", []byte("class {"))
	var se *gojaengine.ScriptError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "SyntaxError")

	_, err = sc.RunSource(ctx, "throws.js", []byte(`throw new Error("top level failure");`))
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "top level failure")

	obj := instantiate(t, sc, `class Measure { Update() { return 1 / undefinedVariable; } Bad() {} }`, "Measure")
	_, err = obj.Call(ctx, "Update")
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "ReferenceError")
	assert.NotErrorIs(t, err, errors.ErrMethodNotFound)

	obj = instantiate(t, sc, `class Measure { constructor() { this.Update = 5; } }`, "Measure")
	_, err = obj.Call(ctx, "Update")
	assert.ErrorContains(t, err, "is not a function")
}

func TestContext_ThrowingMethodLookup(t *testing.T) {
	ctx := context.Background()
	sc := startedContext(t)
	obj := instantiate(t, sc, `
class Measure {
	get Update() { throw new Error("boom"); }
	get GetString() { throw "plain value"; }
}`, "Measure")

	var se *gojaengine.ScriptError
	assert.NotPanics(t, func() {
		_, err := obj.Call(ctx, "Update")
		require.ErrorAs(t, err, &se)
		assert.Contains(t, se.Message, "boom")
		assert.NotErrorIs(t, err, errors.ErrMethodNotFound)
	})
	assert.NotPanics(t, func() {
		_, err := obj.Call(ctx, "GetString")
		require.ErrorAs(t, err, &se)
		assert.Contains(t, se.Message, "plain value")
	})
}

func TestContext_Globals(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sc := startedContext(t, gojaengine.WithLogger(logger))
	sc.AddSearchPath("/scripts")

	obj := instantiate(t, sc, `
class Measure {
	Update() {
		print("hello", 1);
		console.warn("careful");
		console.log("%d items", 3);
		console.error("failed");
		return LOG_DEBUG;
	}
	GetString() {
		const copy = __searchPath;
		copy.push("/tampered");
		return __searchPath.join(",");
	}
}`, "Measure")

	v, err := obj.Call(context.Background(), "Update")
	require.NoError(t, err)
	assert.Equal(t, "4", v.String())

	out := buf.String()
	assert.Contains(t, out, `msg="hello 1"`)
	assert.Contains(t, out, "level=WARN msg=careful")
	assert.Contains(t, out, `level=INFO msg="3 items"`)
	assert.Contains(t, out, "level=ERROR msg=failed")
	assert.Contains(t, out, "engine=goja")

	v, err = obj.Call(context.Background(), "GetString")
	require.NoError(t, err)
	assert.Equal(t, "/scripts", v.String())
}

func TestContext_Require(t *testing.T) {
	ctx := context.Background()
	lib := t.TempDir()
	testutil.WriteScript(t, lib, "mathutil.js", `module.exports = { twice: x => x * 2 };`)
	testutil.WriteScript(t, lib, "helper.js", `exports.name = "helper"; exports.util = require("mathutil");`)
	testutil.WriteScript(t, lib, "broken.js", `throw new Error("module init failed");`)

	sc := startedContext(t)
	sc.AddSearchPath(filepath.Join(lib, "nowhere"))
	sc.AddSearchPath(lib)

	obj := instantiate(t, sc, `
const util = require("mathutil");
const helper = require("./helper.js");
class Measure {
	Update() { return util.twice(21); }
	GetString() { return helper.name + ":" + (helper.util === util); }
	Missing() { return require("does-not-exist"); }
	Broken() { try { require("broken"); } catch (e) { return "caught " + e.message; } }
}`, "Measure")

	v, err := obj.Call(ctx, "Update")
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())

	v, err = obj.Call(ctx, "GetString")
	require.NoError(t, err)
	assert.Equal(t, "helper:true", v.String(), "modules are cached per context")

	_, err = obj.Call(ctx, "Missing")
	assert.ErrorContains(t, err, "Invalid module")

	v, err = obj.Call(ctx, "Broken")
	require.NoError(t, err)
	assert.Equal(t, "caught module init failed", v.String())
}

func TestContext_RequireReadFailure(t *testing.T) {
	ctx := context.Background()
	sc := startedContext(t, gojaengine.WithReadFile(func(name string) ([]byte, error) {
		if name == filepath.FromSlash("/lib/locked.js") {
			return nil, fs.ErrPermission
		}
		return nil, fs.ErrNotExist
	}))
	sc.AddSearchPath("/lib")

	obj := instantiate(t, sc, `
class Measure {
	Update() { return require("locked"); }
	GetString() { return require("absent"); }
}`, "Measure")

	_, err := obj.Call(ctx, "Update")
	assert.ErrorContains(t, err, "read module /lib/locked.js")
	_, err = obj.Call(ctx, "GetString")
	assert.ErrorContains(t, err, "Invalid module")
}

func TestContext_Accessor(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewFakeHostAPI("Weather", map[string]string{
		"Unit":     "#Deg#C",
		"Scale":    "2.5",
		"Samples":  "7",
		"DataFile": "data.txt",
	})
	api.Options.Variables().Set("Deg", "°")

	sc := startedContext(t)
	obj := instantiate(t, sc, `
class Measure {
	Reload(rm, maxValue) {
		this.rm = rm;
		this.unit = rm.RmReadString("Unit", "K");
		this.raw = rm.RmReadString("Unit", "K", false);
		this.fallback = rm.RmReadString("Missing", "dflt", false);
		this.scale = rm.RmReadDouble("Scale", 1);
		this.samples = rm.RmReadInt("Samples", 1);
		this.missingNum = rm.RmReadDouble("Nope");
		this.path = rm.RmReadPath("DataFile", "");
		this.before = maxValue.value;
		maxValue.value = 250;
		rm.RmExecute("!Refresh");
		rm.RmLog(rm.LOG_WARNING, "reloaded");
		try { rm.RmLog(9, "bad level"); } catch (e) { this.logErr = e.message; }
		try { rm.RmReadString(42); } catch (e) { this.typeErr = e.message; }
	}
	GetString() {
		return [this.unit, this.raw, this.fallback, this.scale, this.samples, this.missingNum,
			this.path, this.before, this.rm.RmGetMeasureName(), rm_levels(this.rm)].join("|");
	}
	Errors() { return this.logErr + " / " + this.typeErr; }
}
function rm_levels(rm) { return [rm.LOG_ERROR, rm.LOG_WARNING, rm.LOG_NOTICE, rm.LOG_DEBUG].join(","); }
`, "Measure")

	acc := hostfuncs.NewAccessor(api)
	box := &ports.MaxValue{Value: 100}
	callCtx := hostfuncs.WithMaxValue(hostfuncs.WithAccessor(ctx, acc), box)
	_, err := obj.Call(callCtx, "Reload", acc, box)
	require.NoError(t, err)

	assert.True(t, box.Set)
	assert.Equal(t, 250.0, box.Value)
	assert.Equal(t, []string{"!Refresh"}, api.Commands())
	assert.Equal(t, []string{"reloaded"}, api.LogMessages(entities.LogWarning))

	v, err := obj.Call(ctx, "GetString")
	require.NoError(t, err)
	assert.Equal(t, "°C|#Deg#C|dflt|2.5|7|0|data.txt|100|Weather|1,2,3,4", v.String())

	v, err = obj.Call(ctx, "Errors")
	require.NoError(t, err)
	assert.Contains(t, v.String(), "invalid log level 9")
	assert.Contains(t, v.String(), "RmReadString: option must be a string")
}

func TestContext_AccessorWithoutBoundContext(t *testing.T) {
	api := testutil.NewFakeHostAPI("Bare", nil)
	sc := startedContext(t)
	obj := instantiate(t, sc, `
class Measure {
	Reload(rm, maxValue) { maxValue.value = 9; this.name = rm.RmGetMeasureName(); }
	GetString() { return this.name; }
}`, "Measure")

	box := &ports.MaxValue{}
	_, err := obj.Call(context.Background(), "Reload", hostfuncs.NewAccessor(api), box)
	require.NoError(t, err)
	assert.Equal(t, 9.0, box.Value)

	v, err := obj.Call(context.Background(), "GetString")
	require.NoError(t, err)
	assert.Equal(t, "Bare", v.String())
}

func TestContext_ClosedContext(t *testing.T) {
	ctx := context.Background()
	e, err := gojaengine.NewEngine()
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx, ports.StartOptions{}))
	sc, err := e.NewContext(ctx)
	require.NoError(t, err)

	obj := instantiate(t, sc, "class Measure { Update() { return 1; } }", "Measure")
	require.NoError(t, sc.Close(ctx))

	_, err = obj.Call(ctx, "Update")
	assert.ErrorContains(t, err, "closed")
	_, err = sc.RunSource(ctx, "x.js", nil)
	assert.ErrorContains(t, err, "closed")
}

func TestContext_NaNUpdateIsNotNumeric(t *testing.T) {
	sc := startedContext(t)
	obj := instantiate(t, sc, "class Measure { Update() { return 0 / 0; } }", "Measure")
	v, err := obj.Call(context.Background(), "Update")
	require.NoError(t, err)
	f, ok := v.Float()
	assert.False(t, ok)
	assert.Zero(t, f)
	assert.False(t, math.IsInf(f, 0))
}
