// Package catalog reads and writes flat key→string translation files and
// exposes them to the engine as catalog sources.
//
// A flat file maps normalised source literals to their translation for one
// language. JSON is the canonical format (sorted keys, two-space indent,
// no HTML escaping) so files stay diffable; YAML and go-i18n TOML message
// files are accepted as well.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Extensions lists the supported file extensions in lookup order.
var Extensions = []string{".json", ".yaml", ".yml", ".toml"}

// ReadFile decodes a flat file, choosing the format by extension.
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}

// Decode parses data in the format implied by path's extension.
func Decode(path string, data []byte) (map[string]string, error) {
	entries := make(map[string]string)
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	case ".toml":
		return decodeMessageFile(path, data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	return entries, nil
}

// Encode renders entries in the format implied by path's extension.
func Encode(path string, entries map[string]string) ([]byte, error) {
	if entries == nil {
		entries = map[string]string{}
	}

	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		// encoding/json writes map keys in sorted order
		if err := enc.Encode(entries); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.NewEncoder(&buf).Encode(entries); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	return buf.Bytes(), nil
}

// WriteFile encodes entries and replaces path atomically: the data goes to a
// temporary file in the same directory which is then renamed over path.
func WriteFile(path string, entries map[string]string) error {
	data, err := Encode(path, entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes data to path via a temp file and rename.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
