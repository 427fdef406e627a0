package hostfuncs

import (
	"path/filepath"
	"slices"
	"strings"
)

var (
	// Dynamic linker injection vectors; never passed to a child process.
	alwaysBlockedEnvPrefixes = []string{"LD_", "DYLD_"}

	alwaysBlockedEnvExact = []string{"IFS", "LOCPATH", "BASH_ENV", "ENV"}

	shells = []string{"sh", "bash", "dash", "zsh", "ksh", "csh", "tcsh", "fish", "cmd", "cmd.exe", "powershell", "pwsh"}

	// interpreter -> flags that take inline code
	codeFlags = map[string][]string{
		"python":  {"-c", "--command"},
		"python3": {"-c", "--command"},
		"perl":    {"-e", "-E"},
		"ruby":    {"-e"},
		"node":    {"-e", "--eval"},
		"php":     {"-r"},
		"lua":     {"-e"},
		"tclsh":   {"-c"},
	}
)

// SanitizeEnv drops variables that can inject code into the child process.
func SanitizeEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if IsAlwaysBlockedEnv(strings.ToUpper(key)) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// IsAlwaysBlockedEnv checks if an environment variable key is always blocked.
func IsAlwaysBlockedEnv(upperKey string) bool {
	for _, prefix := range alwaysBlockedEnvPrefixes {
		if strings.HasPrefix(upperKey, prefix) {
			return true
		}
	}
	return slices.Contains(alwaysBlockedEnvExact, upperKey)
}

type executionType string

const (
	execTypeSafe        executionType = "safe"
	execTypeShell       executionType = "shell"
	execTypeInterpreter executionType = "interpreter code execution"
)

// DetectExecutionType classifies a command line.
func DetectExecutionType(command string, args []string) executionType {
	if IsShellExecution(command) && len(args) > 0 {
		return execTypeShell
	}
	if hasCodeFlags(command, args) {
		return execTypeInterpreter
	}
	return execTypeSafe
}

// IsShellExecution detects if a command is a shell invocation.
func IsShellExecution(command string) bool {
	return slices.Contains(shells, strings.ToLower(basename(command)))
}

// IsDangerousExecution reports whether the command runs inline code.
func IsDangerousExecution(command string, args []string) bool {
	return DetectExecutionType(command, args) != execTypeSafe
}

func basename(command string) string {
	return filepath.Base(strings.ReplaceAll(command, `\`, "/"))
}

func hasCodeFlags(command string, args []string) bool {
	base := strings.TrimSuffix(strings.ToLower(basename(command)), ".exe")
	// python3.12 and friends
	if strings.HasPrefix(base, "python") {
		base = "python"
	}
	flags, ok := codeFlags[base]
	if !ok {
		return false
	}
	for _, arg := range args {
		for _, flag := range flags {
			if arg == flag || strings.HasPrefix(arg, flag+"=") {
				return true
			}
		}
	}
	return false
}
