// Package scriptmeasure lets a polling host delegate measures to scripts.
//
// A host creates one measure per configured entry and drives it through
// the Plugin entry points:
//
//	p, err := scriptmeasure.New()
//	h, err := p.Create(ctx, api)     // runtime started, context created
//	p.Reload(ctx, h, api, &maxValue) // script loaded once, Reload called
//	v := p.Update(ctx, h)            // numeric value, 0 when not a number
//	s, ok := p.StringifyText(ctx, h) // GetString, or the load diagnostic
//	p.Command(ctx, h, "reset")       // ExecuteBang
//	err = p.Destroy(ctx, h)          // Finalize, buffers freed
//
// Scripts ending in .js run on goja; .wasm modules run on wazero. Every
// script call is serialized through one execution lock shared by all
// engines.
package scriptmeasure
