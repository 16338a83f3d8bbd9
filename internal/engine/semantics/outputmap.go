package semantics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"swiftslice/internal/core/errors"
)

// BuildDirSuffix is appended by SwiftPM to per-module build directories
// (".build/debug/HAKit.build/output-file-map.json").
const BuildDirSuffix = ".build"

const swiftDepsKey = "swift-dependencies"

// ModuleNameFromMapPath derives the module name from an output-file-map path.
func ModuleNameFromMapPath(mapPath string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Dir(mapPath)), BuildDirSuffix)
}

// ParseOutputFileMap reads one output-file-map.json. The symbol list is
// imprecise compared to module-info but needs no extra toolchain call.
func ParseOutputFileMap(mapPath string) (*ModuleSymbols, error) {
	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read output file map"), errors.CtxPath, mapPath)
	}
	symbols, err := ParseOutputFileMapData(data)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, mapPath)
	}
	return &ModuleSymbols{
		ModuleName:    ModuleNameFromMapPath(mapPath),
		ModuleSymbols: symbols,
	}, nil
}

// ParseOutputFileMapData returns one symbol per source entry, in document order.
func ParseOutputFileMapData(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedOutput, "decode output file map")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New(errors.CodeMalformedOutput, fmt.Sprintf("output file map: expected object, got %v", tok))
	}

	symbols := make([]string, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedOutput, "decode output file map key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedOutput, "decode output file map entry")
		}

		// The "" entry describes the module as a whole, not a source file.
		if key, _ := keyTok.(string); key == "" {
			continue
		}
		if symbol, ok := symbolFromEntry(raw); ok {
			symbols = append(symbols, symbol)
		}
	}
	return symbols, nil
}

func symbolFromEntry(raw json.RawMessage) (string, bool) {
	var entry map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", false
	}
	var deps string
	if err := json.Unmarshal(entry[swiftDepsKey], &deps); err != nil || deps == "" {
		return "", false
	}
	base := filepath.Base(deps)
	return Sanitize(strings.TrimSuffix(base, filepath.Ext(base))), true
}
