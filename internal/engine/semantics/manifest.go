package semantics

import (
	"bytes"
	"encoding/json"
	"swiftslice/internal/core/errors"
)

// ManifestDocument is the subset of `swift package dump-package` we read.
type ManifestDocument struct {
	Name        string           `json:"name"`
	PackageKind *packageKind     `json:"packageKind"`
	Platforms   []Platform       `json:"platforms"`
	Targets     []ManifestTarget `json:"targets"`
}

type ManifestTarget struct {
	Name string `json:"name"`
	// Dependencies is nil when the key is absent, which yields no edge.
	Dependencies []TargetReference `json:"dependencies"`
}

// TargetReference is one entry of a target's dependency list. Only the
// byName shape is resolvable; product and target shapes are ignored.
// Elements after the name carry an optional platform condition object.
type TargetReference struct {
	ByName []json.RawMessage `json:"byName"`
}

// Name returns the referenced name and whether the shape was usable.
func (r TargetReference) Name() (string, bool) {
	if len(r.ByName) == 0 {
		return "", false
	}
	var name *string
	if err := json.Unmarshal(r.ByName[0], &name); err != nil || name == nil || *name == "" {
		return "", false
	}
	return *name, true
}

// packageKind.root is a string in older toolchains and a one-element array
// in newer ones.
type packageKind struct {
	Root string
}

func (p *packageKind) UnmarshalJSON(data []byte) error {
	var raw struct {
		Root json.RawMessage `json:"root"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	root := bytes.TrimSpace(raw.Root)
	if len(root) == 0 {
		return nil
	}
	switch root[0] {
	case '"':
		return json.Unmarshal(root, &p.Root)
	case '[':
		var roots []string
		if err := json.Unmarshal(root, &roots); err != nil {
			return err
		}
		if len(roots) > 0 {
			p.Root = roots[0]
		}
	}
	return nil
}

// ParseManifest decodes a dump-package response. ok is false for an empty
// response.
func ParseManifest(data []byte) (*PackageMetadata, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	var doc ManifestDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeMalformedOutput, "decode package manifest")
	}
	return CollectManifest(&doc), true, nil
}

// CollectManifest builds package metadata with every reference sanitized.
func CollectManifest(doc *ManifestDocument) *PackageMetadata {
	meta := &PackageMetadata{
		RootModule:   doc.Name,
		Platforms:    doc.Platforms,
		Dependencies: make([]TargetDependency, 0, len(doc.Targets)),
	}
	if doc.PackageKind != nil {
		meta.RootDir = doc.PackageKind.Root
	}
	for _, target := range doc.Targets {
		if name := Sanitize(target.Name); name != "" {
			meta.targets = append(meta.targets, name)
		}
		if target.Dependencies == nil {
			continue
		}
		edge := TargetDependency{
			Ref:       Sanitize(target.Name),
			DependsOn: make([]string, 0, len(target.Dependencies)),
		}
		for _, dep := range target.Dependencies {
			if name, ok := dep.Name(); ok {
				edge.DependsOn = append(edge.DependsOn, Sanitize(name))
			}
		}
		meta.Dependencies = append(meta.Dependencies, edge)
	}
	return meta
}

// TargetRefs returns the sanitized reference of every target that declares
// dependencies, in manifest order.
func (m *PackageMetadata) TargetRefs() []string {
	if m == nil {
		return nil
	}
	refs := make([]string, 0, len(m.Dependencies))
	for _, edge := range m.Dependencies {
		refs = append(refs, edge.Ref)
	}
	return refs
}

// DeclaredTargets returns the sanitized name of every target in the manifest,
// with or without dependencies.
func (m *PackageMetadata) DeclaredTargets() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.targets...)
}
