// Package ports defines the interfaces the bridge depends on.
// The host API and the scripting engine are both collaborators: the bridge
// drives them through these narrow contracts, and infrastructure adapters
// (goja, wazero, in-memory hosts) implement them.
package ports
