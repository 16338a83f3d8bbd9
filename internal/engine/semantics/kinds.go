package semantics

import "strings"

// SourceKit entity and dependency kinds consumed by the parsers.
// See swift/tools/SourceKit/docs/SwiftSupport.txt for the full list.
const (
	KindImportClang = "source.lang.swift.import.module.clang"
	KindImportSwift = "source.lang.swift.import.module.swift"

	KindDeclClass          = "source.lang.swift.decl.class"
	KindDeclProtocol       = "source.lang.swift.decl.protocol"
	KindDeclMethodInstance = "source.lang.swift.decl.function.method.instance"

	KindRefClass    = "source.lang.swift.ref.class"
	KindRefProtocol = "source.lang.swift.ref.protocol"
	KindRefEnum     = "source.lang.swift.ref.enum"

	// StageParse marks a structure response produced by a successful parse.
	StageParse = "source.diagnostic.stage.swift.parse"
)

// TestModuleSuffix marks test targets, which never appear in a slice.
const TestModuleSuffix = "Tests"

// ignorableTypes are built-ins too common to say anything about a file.
var ignorableTypes = map[string]struct{}{
	"Bool":      {},
	"Error?":    {},
	"AnyObject": {},
	"()":        {},
	"Any?":      {},
	"Void":      {},
	"[String]":  {},
	"String?":   {},
	"String":    {},
}

// IsIgnorableType reports whether a type name is on the built-in ignore list.
func IsIgnorableType(name string) bool {
	_, ok := ignorableTypes[name]
	return ok
}

// Sanitize rewrites a target or symbol name the way the compiler mangles it:
// every '+' becomes '_' (HAKit+PromiseKit -> HAKit_PromiseKit).
func Sanitize(name string) string {
	return strings.ReplaceAll(name, "+", "_")
}

// IsTestModule reports whether a module name denotes a test target.
func IsTestModule(name string) bool {
	return strings.HasSuffix(name, TestModuleSuffix)
}
