// Package semantics parses SwiftPM and SourceKitten output into the records
// that make up a semantics slice.
package semantics

import "encoding/json"

// Platform is a deployment constraint declared in Package.swift.
type Platform struct {
	PlatformName string   `json:"platformName"`
	Version      string   `json:"version"`
	Options      []string `json:"options,omitempty"`
}

// TargetDependency is one edge set of the target graph.
type TargetDependency struct {
	Ref       string   `json:"ref"`
	DependsOn []string `json:"dependsOn"`
}

// PackageMetadata is what dump-package tells us about the package.
type PackageMetadata struct {
	RootModule   string             `json:"rootModule"`
	RootDir      string             `json:"rootDir,omitempty"`
	Platforms    []Platform         `json:"platforms,omitempty"`
	Dependencies []TargetDependency `json:"dependencies"`

	targets []string
}

// ModuleSymbols is the coarse symbol list derived from one output-file-map.
type ModuleSymbols struct {
	ModuleName    string   `json:"moduleName"`
	ModuleSymbols []string `json:"moduleSymbols"`
}

// FileStructure lists the types a source file refers to or inherits from.
type FileStructure struct {
	ReferredTypes []string `json:"referredTypes,omitempty"`
}

// FileIndex is the per-file result of `sourcekitten index`.
type FileIndex struct {
	SwiftModules      []string          `json:"swiftModules"`
	ClangModules      []string          `json:"clangModules"`
	ObfuscatedSymbols map[string]string `json:"obfuscatedSymbols"`
	SymbolLocations   map[string][]int  `json:"symbolLocations"`
}

// ModuleInfo is the public surface of one module from `sourcekitten module-info`.
type ModuleInfo struct {
	Classes         []string            `json:"classes"`
	Protocols       []string            `json:"protocols"`
	Enums           []string            `json:"enums"`
	ObfuscationMap  map[string]string   `json:"obfuscationMap"`
	ClassMethods    map[string][]string `json:"classMethods"`
	ProtocolMethods map[string][]string `json:"protocolMethods"`
	ImportedModules []string            `json:"importedModules"`
}

// Slice is the aggregate semantic model of one Swift package.
type Slice struct {
	ProjectDir      string                    `json:"projectDir"`
	CompilerArgs    []string                  `json:"compilerArgs,omitempty"`
	PackageMetadata *PackageMetadata          `json:"packageMetadata,omitempty"`
	BuildSymbols    map[string][]string       `json:"buildSymbols"`
	ModuleInfos     map[string]*ModuleInfo    `json:"moduleInfos"`
	FileStructures  map[string]*FileStructure `json:"fileStructures"`
	FileIndexes     map[string]*FileIndex     `json:"fileIndexes"`
}

func NewSlice(projectDir string) *Slice {
	return &Slice{
		ProjectDir:     projectDir,
		BuildSymbols:   make(map[string][]string),
		ModuleInfos:    make(map[string]*ModuleInfo),
		FileStructures: make(map[string]*FileStructure),
		FileIndexes:    make(map[string]*FileIndex),
	}
}

// MarshalIndent renders the slice as stable, indented JSON. Go sorts map
// keys, so two runs over the same project produce identical bytes.
func (s *Slice) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
