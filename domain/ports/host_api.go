package ports

import "github.com/reglet-dev/scriptmeasure/domain/entities"

// HostAPI is the set of functions the host provides to a measure.
// The bridge only forwards to it; it never caches results.
type HostAPI interface {
	// ReadString reads an option as a string. When substitute is true the
	// host replaces variables and measure references. ok is false when the
	// host has no value at all (not even a default).
	ReadString(option, defValue string, substitute bool) (value string, ok bool)

	// ReadPath reads an option as a path resolved by the host.
	ReadPath(option, defValue string) (value string, ok bool)

	// ReadDouble reads an option as a number.
	ReadDouble(option string, defValue float64) float64

	// ReadInt reads an option as an integer.
	ReadInt(option string, defValue int) int

	// MeasureName returns the name of the measure.
	MeasureName() string

	// Execute runs a host command (bang). It must not call back into the
	// bridge synchronously: the caller holds the execution lock.
	Execute(command string)

	// Log writes a message to the host log.
	Log(level entities.LogLevel, message string)
}
