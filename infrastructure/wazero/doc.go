// Package wazero runs measure "scripts" compiled to WebAssembly.
//
// A module exposes a class C through its function exports:
//
//	C.new() -> i32                     optional; returns the instance handle
//	C.Reload(self i32, max f64)
//	C.Update(self i32) -> f64
//	C.GetString(self i32) -> i64       packed ptr<<32|len of UTF-8 text, 0 for none
//	C.ExecuteBang(self i32, args i64)  packed ptr<<32|len
//	C.Finalize(self i32)
//
// plus allocate(size i32) -> i32 and, optionally, deallocate(ptr i32, size i32).
// Every method is optional. Strings returned by the guest are copied and
// then handed to deallocate.
//
// The host accessor is imported from the "measure_host" module. Each
// function takes and returns a packed JSON document:
//
//	(import "measure_host" "read_string" (func (param i64) (result i64)))
//
// Responses are written into memory obtained from the guest's allocate.
// Errors come back as {"error": TYPE, "message": ..., "code": ...}.
//
// The runtime is WASI enabled. Directories on the context search path are
// mounted read-only at the same path for modules loaded afterwards, and the
// runtime home, when set, is mounted at /home.
package wazero
