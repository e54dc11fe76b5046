// ABOUTME: Decodes inventory snapshot documents in JSON or YAML.
// ABOUTME: Shared by file, S3, and ConfigMap sources; output is validated and normalised.

package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/jfeddern/PatchRelay/internal/validation"
	"gopkg.in/yaml.v3"
)

// Format is an inventory document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file or object name, sniffing the content when the
// extension says nothing
func FormatFor(name string, data []byte) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Decode parses and normalises a snapshot document
func Decode(name string, data []byte) (types.Snapshot, error) {
	var snap types.Snapshot

	switch FormatFor(name, data) {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return types.Snapshot{}, fmt.Errorf("failed to parse inventory JSON %s: %w", name, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return types.Snapshot{}, fmt.Errorf("failed to parse inventory YAML %s: %w", name, err)
		}
	}

	out, err := validation.Normalize(snap)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("invalid inventory %s: %w", name, err)
	}
	return out, nil
}
