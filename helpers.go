package scriptmeasure

import (
	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// ReadMeasureOptions reads the bridge options of one measure from the host.
// Absent or empty options take their defaults.
func ReadMeasureOptions(api ports.HostAPI) entities.MeasureOptions {
	opts := entities.DefaultMeasureOptions()
	if v, _ := api.ReadPath(entities.OptionScriptPath, opts.ScriptPath); v != "" {
		opts.ScriptPath = v
	}
	if v, _ := api.ReadString(entities.OptionClassName, opts.ClassName, false); v != "" {
		opts.ClassName = v
	}
	opts.RuntimeHome = readHome(api)
	return opts
}

// readHome returns the runtime home option, accepting the legacy alias.
func readHome(api ports.HostAPI) string {
	if v, _ := api.ReadString(entities.OptionRuntimeHome, "", false); v != "" {
		return v
	}
	v, _ := api.ReadString(entities.OptionRuntimeHomeAlias, "", false)
	return v
}
