package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineBundles(t *testing.T) {
	handler := func(ctx context.Context, payload []byte) ([]byte, error) { return []byte(`"a"`), nil }
	override := func(ctx context.Context, payload []byte) ([]byte, error) { return []byte(`"b"`), nil }

	combined := CombineBundles(
		AccessorBundle(),
		&staticBundle{handlers: map[string]ByteHandler{"extra": handler}},
		&staticBundle{handlers: map[string]ByteHandler{"extra": override}},
	)

	handlers := combined.Handlers()
	assert.Len(t, handlers, 9)

	out, err := handlers["extra"](context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(out))
}

func TestWithBundle_Duplicate(t *testing.T) {
	_, err := NewRegistry(
		WithBundle(AccessorBundle()),
		WithBundle(AccessorBundle()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate handler name")
}

func TestWithHandler_Generic(t *testing.T) {
	type CustomReq struct {
		Input string `json:"input"`
	}
	type CustomResp struct {
		Output string `json:"output"`
	}

	reg, err := NewRegistry(
		WithHandler("custom", func(ctx context.Context, req CustomReq) CustomResp {
			return CustomResp{Output: "processed: " + req.Input}
		}),
	)
	require.NoError(t, err)

	assert.True(t, reg.Has("custom"))

	reqBytes, _ := json.Marshal(CustomReq{Input: "test"})
	respBytes, err := reg.Invoke(context.Background(), "custom", reqBytes)
	require.NoError(t, err)

	var resp CustomResp
	require.NoError(t, json.Unmarshal(respBytes, &resp))
	assert.Equal(t, "processed: test", resp.Output)
}

func TestNewAccessorRegistry_ExtraHandlers(t *testing.T) {
	type CustomReq struct {
		Value int `json:"value"`
	}
	type CustomResp struct {
		Doubled int `json:"doubled"`
	}

	reg, err := NewAccessorRegistry(
		WithHandler("double", func(ctx context.Context, req CustomReq) CustomResp {
			return CustomResp{Doubled: req.Value * 2}
		}),
	)
	require.NoError(t, err)

	assert.Contains(t, reg.Names(), "double")
	assert.Contains(t, reg.Names(), FuncReadString)

	resp, err := Call[CustomReq, CustomResp](context.Background(), reg, "double", CustomReq{Value: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, resp.Doubled)
}
