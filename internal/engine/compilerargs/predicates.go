package compilerargs

import "strings"

// MaxValueLength bounds a flag value. Longer values are almost always a
// second command line glued onto the first by a truncated transcript.
const MaxValueLength = 2048

var compilerMarkers = []string{"swiftc", "swift-frontend"}

// Fragments that show a value swallowed part of a nested driver invocation.
var nestedInvocationMarkers = []string{" -cc1", `clang"`}

// IsCompilerInvocation reports whether a transcript line mentions the compiler.
func IsCompilerInvocation(line string) bool {
	for _, marker := range compilerMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// IsBareCompilerPath reports whether a line is nothing but a path to the
// compiler binary, e.g. "/usr/bin/swift-frontend" printed while the
// toolchain bootstraps.
func IsBareCompilerPath(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 1 {
		return false
	}
	for _, marker := range compilerMarkers {
		if strings.HasSuffix(fields[0], marker) {
			return true
		}
	}
	return false
}

// IsFlagToken reports whether a token looks like a flag rather than a value.
func IsFlagToken(token string) bool {
	return strings.HasPrefix(token, "-")
}

// IsValidValue guards values consumed by singleton, ordered and cumulative flags.
func IsValidValue(val string) bool {
	if val == "" {
		return false
	}
	if len(val) > MaxValueLength {
		return false
	}
	for _, marker := range nestedInvocationMarkers {
		if strings.Contains(val, marker) {
			return false
		}
	}
	return true
}
