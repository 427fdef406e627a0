package scriptmeasure

import (
	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// Handle identifies a measure across the host boundary. It is an index into
// the plugin's handle table, never a Go pointer, so C code may keep it.
type Handle uintptr

// HostAPI is the set of functions the host provides to a measure.
type HostAPI = ports.HostAPI

// BridgeConfig controls process-wide bridge behavior.
type BridgeConfig = entities.BridgeConfig

// BridgeOption is a functional option for BridgeConfig.
type BridgeOption = entities.BridgeOption

// Snapshot describes a measure for diagnostics.
type Snapshot = entities.MeasureSnapshot

// ErrorDetail is re-exported from entities for callers of ToErrorDetail.
// Error Types: "load", "runtime", "init", "config", "internal"
type ErrorDetail = entities.ErrorDetail

// ErrUnknownHandle is returned for handles that were never issued or were
// already destroyed.
var ErrUnknownHandle = errors.ErrUnknownHandle

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *ErrorDetail {
	return errors.ToErrorDetail(err)
}
