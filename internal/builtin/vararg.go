package builtin

import "runtime"

// variadicABISupported reports whether this process's architecture matches
// the AMD64 SysV calling convention the variadic call-site unrolling in
// original_source/templates assumes (spec.md §9: "a reimplementation
// should guard or document it"). This build registers no variadic-call
// command; Register checks this once and only logs a warning when it
// reports false.
func variadicABISupported() bool {
	return runtime.GOARCH == "amd64"
}
