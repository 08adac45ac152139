package bundle

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

var (
	ErrNoManifest  = errors.New("no manifest found")
	ErrMissingFile = errors.New("manifest names no file")
	ErrOutsideDir  = errors.New("path escapes bundle directory")
)

// textExts are handed to the widget as text; everything else becomes a
// data URI
var textExts = map[string]bool{".json": true, ".css": true, ".hbs": true, ".js": true, ".txt": true, ".html": true}

// Bundle is everything a widget needs to start
type Bundle struct {
	Manifest Manifest       `json:"manifest"`
	Template string         `json:"template"`
	JS       string         `json:"js"`
	CSS      string         `json:"css"`
	Assets   types.Assets   `json:"assets"`
	Settings types.Settings `json:"settings"`
	Source   string         `json:"-"`
}

// Name returns the manifest name, falling back to the source's base name
func (b *Bundle) Name() string {
	if b.Manifest.Name != "" {
		return b.Manifest.Name
	}
	return filepath.Base(b.Source)
}

// WithSettings returns a copy of b whose settings are overridden by values
func (b *Bundle) WithSettings(values types.Settings) *Bundle {
	out := *b
	out.Settings = make(types.Settings, len(b.Settings)+len(values))
	for k, v := range b.Settings {
		out.Settings[k] = v
	}
	for k, v := range values {
		out.Settings[k] = v
	}
	return &out
}

// LoadDir reads the bundle in dir. Settings start from manifest defaults
// and are overridden by values.
func LoadDir(dir string, values types.Settings) (*Bundle, error) {
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	if m.Template == "" || m.JS == "" {
		return nil, fmt.Errorf("%w: template and js are required", ErrMissingFile)
	}

	b := &Bundle{
		Manifest: *m,
		Assets:   make(types.Assets, len(m.Assets)),
		Settings: make(types.Settings, len(m.Settings)),
		Source:   dir,
	}

	if b.Template, err = readText(dir, m.Template); err != nil {
		return nil, err
	}
	if b.JS, err = readText(dir, m.JS); err != nil {
		return nil, err
	}
	if m.CSS != "" {
		if b.CSS, err = readText(dir, m.CSS); err != nil {
			return nil, err
		}
	}

	for key, asset := range m.Assets {
		v, err := readAsset(dir, asset.File)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", key, err)
		}
		b.Assets[key] = v
	}

	for key, setting := range m.Settings {
		if setting.Default == nil {
			continue
		}
		def := setting.Default
		if file, ok := def.(string); ok && setting.fileDefault() && file != "" {
			v, err := readAsset(dir, file)
			if err != nil {
				return nil, fmt.Errorf("setting %q: %w", key, err)
			}
			def = v
		}
		b.Settings[key] = def
	}
	for k, v := range values {
		b.Settings[k] = v
	}
	return b, nil
}

func readManifest(dir string) (*Manifest, error) {
	for _, name := range ManifestNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return DecodeManifest(name, data)
	}
	return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

func readFile(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideDir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func readText(dir, name string) (string, error) {
	data, err := readFile(dir, name)
	if err != nil {
		return "", err
	}
	return DecodeText(data), nil
}

func readAsset(dir, name string) (string, error) {
	data, err := readFile(dir, name)
	if err != nil {
		return "", err
	}
	if textExts[strings.ToLower(filepath.Ext(name))] {
		return DecodeText(data), nil
	}
	return DataURI(data), nil
}

// DataURI inlines data with its detected content type
func DataURI(data []byte) string {
	mt := mimetype.Detect(data)
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeText returns data as UTF-8, converting from the detected charset
// when it is not valid UTF-8 already
func DecodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}

	label := "windows-1252"
	if result, err := chardet.NewTextDetector().DetectBest(data); err == nil && result != nil {
		label = strings.ToLower(result.Charset)
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
