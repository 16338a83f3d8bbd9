package semantics

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"swiftslice/internal/core/errors"
)

const importPrefix = "import "

type Annotation struct {
	Kind string `json:"key.kind"`
	Name string `json:"key.name"`
	USR  string `json:"key.usr"`
}

// ModuleInfoDocument is the top level of `sourcekitten module-info`.
// Annotations is a pointer so that an absent key can be told apart from an
// empty list.
type ModuleInfoDocument struct {
	Annotations *[]Annotation `json:"key.annotations"`
	Entities    []IndexEntity `json:"key.entities"`
	SourceText  string        `json:"key.sourcetext"`
}

// ParseModuleInfo decodes a module-info response. ok is false when the
// response carries no annotations.
func ParseModuleInfo(data []byte) (*ModuleInfo, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	var doc ModuleInfoDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeMalformedOutput, "decode module info")
	}
	info, ok := CollectModuleInfo(&doc)
	return info, ok, nil
}

type typeSets struct {
	classes   map[string]struct{}
	protocols map[string]struct{}
	enums     map[string]struct{}
}

// CollectModuleInfo builds the interface view of one module.
func CollectModuleInfo(doc *ModuleInfoDocument) (*ModuleInfo, bool) {
	if doc == nil || doc.Annotations == nil {
		return nil, false
	}

	sets := typeSets{
		classes:   make(map[string]struct{}),
		protocols: make(map[string]struct{}),
		enums:     make(map[string]struct{}),
	}
	info := &ModuleInfo{
		ObfuscationMap:  make(map[string]string),
		ClassMethods:    make(map[string][]string),
		ProtocolMethods: make(map[string][]string),
	}

	for _, annot := range *doc.Annotations {
		var target map[string]struct{}
		switch annot.Kind {
		case KindRefClass:
			target = sets.classes
		case KindRefProtocol:
			target = sets.protocols
		case KindRefEnum:
			target = sets.enums
		default:
			continue
		}
		target[annot.Name] = struct{}{}
		info.ObfuscationMap[annot.Name] = annot.USR
	}

	for _, entity := range doc.Entities {
		collectInstanceMethods(entity, info)
	}

	info.Classes = sortedKeys(sets.classes)
	info.Protocols = sortedKeys(sets.protocols)
	info.Enums = sortedKeys(sets.enums)
	info.ImportedModules = ImportedModules(doc.SourceText)
	return info, true
}

// collectInstanceMethods looks one level down from a class or protocol.
func collectInstanceMethods(parent IndexEntity, info *ModuleInfo) {
	if len(parent.Entities) == 0 {
		return
	}
	var methods map[string][]string
	switch parent.Kind {
	case KindDeclClass:
		methods = info.ClassMethods
	case KindDeclProtocol:
		methods = info.ProtocolMethods
	default:
		return
	}
	for _, child := range parent.Entities {
		if child.Kind != KindDeclMethodInstance {
			continue
		}
		methods[parent.Name] = append(methods[parent.Name], child.Name)
		info.ObfuscationMap[child.Name] = child.USR
	}
}

// ImportedModules returns the sorted module names imported by a generated
// interface. Duplicates are kept.
func ImportedModules(sourceText string) []string {
	modules := make([]string, 0)
	for _, line := range strings.Split(sourceText, "\n") {
		if !strings.HasPrefix(line, importPrefix) {
			continue
		}
		name := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(line, importPrefix), "\r", ""))
		if name != "" {
			modules = append(modules, name)
		}
	}
	sort.Strings(modules)
	return modules
}
