package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
)

// Environment variables read when the library creates its plugin.
const (
	envEngine         = "SCRIPTMEASURE_ENGINE"
	envScriptRoot     = "SCRIPTMEASURE_SCRIPT_ROOT"
	envShared         = "SCRIPTMEASURE_SHARED"
	envCallErrorLevel = "SCRIPTMEASURE_CALL_ERROR_LEVEL"
	envMaxStringBytes = "SCRIPTMEASURE_MAX_STRING_BYTES"
)

// bridgeOptionsFromEnv turns the environment into bridge options. Unset
// variables keep the defaults.
func bridgeOptionsFromEnv(getenv func(string) string) ([]entities.BridgeOption, error) {
	var opts []entities.BridgeOption
	if v := getenv(envEngine); v != "" {
		opts = append(opts, entities.WithEngine(strings.ToLower(v)))
	}
	if v := getenv(envScriptRoot); v != "" {
		opts = append(opts, entities.WithScriptRoot(v))
	}
	if v := getenv(envShared); v != "" {
		shared, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envShared, err)
		}
		opts = append(opts, entities.WithSharedContext(shared))
	}
	if v := getenv(envCallErrorLevel); v != "" {
		level, err := entities.ParseCallErrorLevel(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envCallErrorLevel, err)
		}
		opts = append(opts, entities.WithDefaultCallErrorLevel(level))
	}
	if v := getenv(envMaxStringBytes); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: invalid byte count %q", envMaxStringBytes, v)
		}
		opts = append(opts, entities.WithMaxStringBytes(n))
	}
	return opts, nil
}
