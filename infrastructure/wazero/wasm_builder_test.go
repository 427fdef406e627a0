package wazero_test

import (
	"encoding/binary"
	"math"
)

// Value types and opcodes used by the hand-assembled test modules.
const (
	i32 byte = 0x7f
	i64 byte = 0x7e
	f64 byte = 0x7c

	opUnreachable byte = 0x00
	opCall        byte = 0x10
	opDrop        byte = 0x1a
	opLocalGet    byte = 0x20
	opGlobalGet   byte = 0x23
	opGlobalSet   byte = 0x24
	opI32Const    byte = 0x41
	opI64Const    byte = 0x42
	opF64Const    byte = 0x44
	opEnd         byte = 0x0b
)

type funcType struct {
	params, results []byte
}

type wasmImport struct {
	module, name string
	typ          int
}

type wasmFunc struct {
	export string
	typ    int
	body   []byte
}

type dataSegment struct {
	offset int32
	data   []byte
}

// wasmModule is a minimal WebAssembly binary writer: one memory, optional
// mutable i64 globals, functions, imports and active data segments.
type wasmModule struct {
	types   []funcType
	imports []wasmImport
	funcs   []wasmFunc
	data    []dataSegment
	globals int
}

func (m *wasmModule) typeIndex(params, results []byte) int {
	for i, t := range m.types {
		if string(t.params) == string(params) && string(t.results) == string(results) {
			return i
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return len(m.types) - 1
}

func (m *wasmModule) importFunc(module, name string, params, results []byte) int {
	m.imports = append(m.imports, wasmImport{module: module, name: name, typ: m.typeIndex(params, results)})
	return len(m.imports) - 1
}

func (m *wasmModule) function(export string, params, results []byte, body ...[]byte) {
	var code []byte
	for _, b := range body {
		code = append(code, b...)
	}
	m.funcs = append(m.funcs, wasmFunc{export: export, typ: m.typeIndex(params, results), body: code})
}

func (m *wasmModule) segment(offset int32, data string) {
	m.data = append(m.data, dataSegment{offset: offset, data: []byte(data)})
}

func (m *wasmModule) bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var types []byte
	types = uleb(types, uint64(len(m.types)))
	for _, t := range m.types {
		types = append(types, 0x60)
		types = vec(types, t.params)
		types = vec(types, t.results)
	}
	out = section(out, 1, types)

	if len(m.imports) > 0 {
		var imps []byte
		imps = uleb(imps, uint64(len(m.imports)))
		for _, im := range m.imports {
			imps = name(imps, im.module)
			imps = name(imps, im.name)
			imps = append(imps, 0x00)
			imps = uleb(imps, uint64(im.typ))
		}
		out = section(out, 2, imps)
	}

	var fns []byte
	fns = uleb(fns, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		fns = uleb(fns, uint64(f.typ))
	}
	out = section(out, 3, fns)

	out = section(out, 5, []byte{0x01, 0x00, 0x01}) // one memory, min 1 page

	if m.globals > 0 {
		var gs []byte
		gs = uleb(gs, uint64(m.globals))
		for i := 0; i < m.globals; i++ {
			gs = append(gs, i64, 0x01, opI64Const, 0x00, opEnd)
		}
		out = section(out, 6, gs)
	}

	var exps []byte
	exps = uleb(exps, uint64(len(m.funcs)+1))
	exps = name(exps, "memory")
	exps = append(exps, 0x02, 0x00)
	for i, f := range m.funcs {
		exps = name(exps, f.export)
		exps = append(exps, 0x00)
		exps = uleb(exps, uint64(len(m.imports)+i))
	}
	out = section(out, 7, exps)

	var code []byte
	code = uleb(code, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		body := append([]byte{0x00}, f.body...) // no locals
		body = append(body, opEnd)
		code = vec(code, body)
	}
	out = section(out, 10, code)

	if len(m.data) > 0 {
		var ds []byte
		ds = uleb(ds, uint64(len(m.data)))
		for _, d := range m.data {
			ds = append(ds, 0x00, opI32Const)
			ds = sleb(ds, int64(d.offset))
			ds = append(ds, opEnd)
			ds = vec(ds, d.data)
		}
		out = section(out, 11, ds)
	}
	return out
}

func section(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	return vec(out, content)
}

func vec(out, b []byte) []byte {
	out = uleb(out, uint64(len(b)))
	return append(out, b...)
}

func name(out []byte, s string) []byte {
	return vec(out, []byte(s))
}

func uleb(out []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// Instruction helpers.

func i32Const(v int32) []byte { return sleb([]byte{opI32Const}, int64(v)) }

func i64Const(v int64) []byte { return sleb([]byte{opI64Const}, v) }

func f64Const(v float64) []byte {
	b := []byte{opF64Const, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint64(b[1:], math.Float64bits(v))
	return b
}

func localGet(i int) []byte { return uleb([]byte{opLocalGet}, uint64(i)) }

func call(i int) []byte { return uleb([]byte{opCall}, uint64(i)) }

func globalGet(i int) []byte { return uleb([]byte{opGlobalGet}, uint64(i)) }

func globalSet(i int) []byte { return uleb([]byte{opGlobalSet}, uint64(i)) }

func packed(ptr, length int) int64 { return int64(ptr)<<32 | int64(length) }
