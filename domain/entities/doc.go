// Package entities provides the core domain types of the measure bridge.
// They carry no behavior beyond small helpers and have no dependencies on the
// application or infrastructure layers.
package entities
