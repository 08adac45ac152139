package bundle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var ErrUnknownFormat = errors.New("unknown manifest format")

// ManifestNames are the file names a bundle directory is recognised by,
// in lookup order.
var ManifestNames = []string{"manifest.json", "manifest.yaml", "manifest.yml", "manifest.toml"}

// Manifest describes a widget bundle on disk
type Manifest struct {
	Name        string             `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Version     string             `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Template    string             `json:"template" yaml:"template" toml:"template"`
	CSS         string             `json:"css" yaml:"css" toml:"css"`
	JS          string             `json:"js" yaml:"js" toml:"js"`
	Assets      map[string]Asset   `json:"assets,omitempty" yaml:"assets,omitempty" toml:"assets,omitempty"`
	Settings    map[string]Setting `json:"settings,omitempty" yaml:"settings,omitempty" toml:"settings,omitempty"`
}

// Asset is a file shipped with the widget
type Asset struct {
	Type string `json:"type" yaml:"type" toml:"type"`
	File string `json:"file" yaml:"file" toml:"file"`
}

// Setting is a user-configurable value with an optional default
type Setting struct {
	Type        string      `json:"type" yaml:"type" toml:"type"`
	Name        string      `json:"name" yaml:"name" toml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
}

// fileDefault reports whether the setting's default names a bundle file
func (s Setting) fileDefault() bool {
	return s.Type == "image" || s.Type == "audio"
}

// DecodeManifest parses data according to the extension of name
func DecodeManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		err = sonic.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &m, nil
}
