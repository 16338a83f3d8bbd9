package semantics

import (
	"bytes"
	"encoding/json"
	"swiftslice/internal/core/errors"
)

type IndexDependency struct {
	Kind         string            `json:"key.kind"`
	Name         string            `json:"key.name"`
	Dependencies []IndexDependency `json:"key.dependencies"`
}

type IndexEntity struct {
	Kind     string        `json:"key.kind"`
	Name     string        `json:"key.name"`
	USR      string        `json:"key.usr"`
	Line     int           `json:"key.line"`
	Entities []IndexEntity `json:"key.entities"`
}

// IndexDocument is the top level of `sourcekitten index`.
type IndexDocument struct {
	Dependencies []IndexDependency `json:"key.dependencies"`
	Entities     []IndexEntity     `json:"key.entities"`
}

// ParseIndex extracts module edges, the name->USR map and symbol line numbers.
// ok is false for an empty response.
func ParseIndex(data []byte) (*FileIndex, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	var doc IndexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeMalformedOutput, "decode index")
	}
	return CollectIndex(&doc), true, nil
}

type moduleSets struct {
	swift map[string]struct{}
	clang map[string]struct{}
}

// symbolIndex accumulates entity data across the recursive walk.
type symbolIndex struct {
	obfuscated map[string]string
	locations  map[string][]int
}

// CollectIndex walks a decoded document. A module may appear in both sets.
func CollectIndex(doc *IndexDocument) *FileIndex {
	modules := moduleSets{
		swift: make(map[string]struct{}),
		clang: make(map[string]struct{}),
	}
	collectIndexedModules(doc.Dependencies, &modules)

	symbols := symbolIndex{
		obfuscated: make(map[string]string),
		locations:  make(map[string][]int),
	}
	collectIndexedSymbols(doc.Entities, &symbols)

	return &FileIndex{
		SwiftModules:      sortedKeys(modules.swift),
		ClangModules:      sortedKeys(modules.clang),
		ObfuscatedSymbols: symbols.obfuscated,
		SymbolLocations:   symbols.locations,
	}
}

func collectIndexedModules(deps []IndexDependency, acc *moduleSets) {
	for _, dep := range deps {
		switch dep.Kind {
		case KindImportSwift:
			if dep.Name != "" {
				acc.swift[dep.Name] = struct{}{}
			}
		case KindImportClang:
			if dep.Name != "" {
				acc.clang[dep.Name] = struct{}{}
			}
		}
		collectIndexedModules(dep.Dependencies, acc)
	}
}

func collectIndexedSymbols(entities []IndexEntity, acc *symbolIndex) {
	for _, entity := range entities {
		// Later entities overwrite earlier ones with the same name.
		if entity.Name != "" && entity.USR != "" {
			acc.obfuscated[entity.Name] = entity.USR
		}
		if entity.Line > 0 {
			if key := locationKey(entity); key != "" {
				acc.addLocation(key, entity.Line)
			}
		}
		collectIndexedSymbols(entity.Entities, acc)
	}
}

func locationKey(entity IndexEntity) string {
	if entity.Name != "" {
		return entity.Name
	}
	return entity.USR
}

func (acc *symbolIndex) addLocation(key string, line int) {
	for _, seen := range acc.locations[key] {
		if seen == line {
			return
		}
	}
	acc.locations[key] = append(acc.locations[key], line)
}
