package semantics

import (
	"bytes"
	"encoding/json"
	"sort"
	"swiftslice/internal/core/errors"
)

// Substructure holds the children of a structure node. SourceKitten emits
// them as an array, but some responses nest a single object that carries its
// own key.substructure. Exactly one of Nodes or Single is set.
type Substructure struct {
	Nodes  []StructureNode
	Single *StructureNode
}

// UnmarshalJSON accepts both shapes. Anything else decodes to an empty value.
func (s *Substructure) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var nodes []StructureNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return err
		}
		s.Nodes = nodes
	case '{':
		var node StructureNode
		if err := json.Unmarshal(trimmed, &node); err != nil {
			return err
		}
		s.Single = &node
	}
	return nil
}

// Empty reports whether there is nothing to visit.
func (s *Substructure) Empty() bool {
	return s == nil || (len(s.Nodes) == 0 && s.Single == nil)
}

type InheritedType struct {
	Name string `json:"key.name"`
}

type StructureNode struct {
	TypeName       string          `json:"key.typename"`
	InheritedTypes []InheritedType `json:"key.inheritedtypes"`
	Substructure   *Substructure   `json:"key.substructure"`
}

// StructureDocument is the top level of `sourcekitten structure`.
type StructureDocument struct {
	DiagnosticStage string        `json:"key.diagnostic_stage"`
	Substructure    *Substructure `json:"key.substructure"`
}

// ParseStructure collects referred and inherited type names. ok is false when
// the response is not a parse-stage document or has no substructure.
func ParseStructure(data []byte) (*FileStructure, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	var doc StructureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeMalformedOutput, "decode structure")
	}
	result, ok := CollectStructure(&doc)
	return result, ok, nil
}

// CollectStructure walks a decoded document.
func CollectStructure(doc *StructureDocument) (*FileStructure, bool) {
	if doc == nil || doc.DiagnosticStage != StageParse || doc.Substructure.Empty() {
		return nil, false
	}
	refTypes := make(map[string]struct{})
	collectStructureTypes(doc.Substructure, refTypes)

	result := &FileStructure{}
	if len(refTypes) > 0 {
		result.ReferredTypes = sortedKeys(refTypes)
	}
	return result, true
}

func collectStructureTypes(sub *Substructure, refTypes map[string]struct{}) {
	if sub.Empty() {
		return
	}
	for i := range sub.Nodes {
		visitStructureNode(&sub.Nodes[i], refTypes)
	}
	if sub.Single != nil {
		visitStructureNode(sub.Single, refTypes)
	}
}

func visitStructureNode(node *StructureNode, refTypes map[string]struct{}) {
	addReferredType(node.TypeName, refTypes)
	for _, inherited := range node.InheritedTypes {
		addReferredType(inherited.Name, refTypes)
	}
	collectStructureTypes(node.Substructure, refTypes)
}

func addReferredType(name string, refTypes map[string]struct{}) {
	if name == "" || IsIgnorableType(name) {
		return
	}
	refTypes[name] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
