package compilerargs

import "strings"

// FlagKind classifies a transcript token against the static flag tables.
type FlagKind int

const (
	KindUnknown FlagKind = iota
	KindIgnored
	KindSingleton
	KindOrdered
	KindCumulative
	KindBoolean
	KindDefine
)

func (k FlagKind) String() string {
	switch k {
	case KindIgnored:
		return "ignored"
	case KindSingleton:
		return "singleton"
	case KindOrdered:
		return "ordered"
	case KindCumulative:
		return "cumulative"
	case KindBoolean:
		return "boolean"
	case KindDefine:
		return "define"
	default:
		return "unknown"
	}
}

// DefineFlag is the macro-define prefix. Its values are collected as a set.
const DefineFlag = "-D"

var ignoredFlags = map[string]struct{}{
	"-o":                                {},
	"-output-file-map":                  {},
	"-emit-module-path":                 {},
	"-emit-module-doc-path":             {},
	"-emit-dependencies-path":           {},
	"-emit-reference-dependencies-path": {},
	"-emit-objc-header-path":            {},
	"-primary-file":                     {},
	"-main-file":                        {},
	"-num-threads":                      {},
	"-enable-objc-interop":              {},
	"-empty-abi-descriptor":             {},
	"-target-sdk-version":               {},
	"-target-sdk-name":                  {},
	"-incremental":                      {},
	"-module-name":                      {},
	"-j":                                {},
}

var singletonFlags = map[string]struct{}{
	"-sdk":                         {},
	"-target":                      {},
	"-swift-version":               {},
	"-package-description-version": {},
	"-module-cache-path":           {},
}

var orderedFlags = map[string]struct{}{
	"-Xcc": {},
}

var cumulativeFlags = map[string]struct{}{
	"-F":                    {},
	"-I":                    {},
	"-L":                    {},
	"-vfsoverlay":           {},
	"-Xllvm":                {},
	"-external-plugin-path": {},
	"-plugin-path":          {},
}

// -incremental is deliberately absent: it is ignored, not recorded.
var booleanFlags = map[string]struct{}{
	"-parse-as-library":          {},
	"-track-system-dependencies": {},
	"-suppress-remarks":          {},
	"-suppress-warnings":         {},
	"-stack-check":               {},
	"-disable-clang-spi":         {},
	"-no-color-diagnostics":      {},
	"-enable-testing":            {},
	"-enable-library-evolution":  {},
}

// Classify returns the table a token belongs to. Exact-match tables are
// consulted before the -D prefix rule.
func Classify(token string) FlagKind {
	if _, ok := ignoredFlags[token]; ok {
		return KindIgnored
	}
	if _, ok := singletonFlags[token]; ok {
		return KindSingleton
	}
	if _, ok := orderedFlags[token]; ok {
		return KindOrdered
	}
	if _, ok := cumulativeFlags[token]; ok {
		return KindCumulative
	}
	if _, ok := booleanFlags[token]; ok {
		return KindBoolean
	}
	if strings.HasPrefix(token, DefineFlag) {
		return KindDefine
	}
	return KindUnknown
}
