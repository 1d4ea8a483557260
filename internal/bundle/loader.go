// ABOUTME: Character bundle loading from JSON, YAML and TOML files
// ABOUTME: Accepts full bundles or a bare role card, defaulting the id to the file name
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/harper/roleplay-core/internal/models"
)

// Format is a bundle file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported bundle format")

// FormatOf infers the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// Decode parses a bundle. A document with no role_card is read as a bare role card.
func Decode(data []byte, format Format) (*models.CharacterBundle, error) {
	var b models.CharacterBundle
	if err := unmarshal(data, format, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	if strings.TrimSpace(b.RoleCard.Name) == "" {
		var card models.RoleCard
		if err := unmarshal(data, format, &card); err != nil {
			return nil, fmt.Errorf("failed to decode role card: %w", err)
		}
		b.RoleCard = card
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func unmarshal(data []byte, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatTOML:
		return toml.Unmarshal(data, v)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Load reads a bundle file. The bundle id defaults to the file name without extension.
func Load(path string) (*models.CharacterBundle, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	b, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if b.ID == "" {
		b.ID = IDFromPath(path)
	}
	return b, nil
}

// IDFromPath derives a conversation id from a file name
func IDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Loaded is the result of loading one file from a directory
type Loaded struct {
	Path   string
	Bundle *models.CharacterBundle
	Err    error
}

// LoadDir loads every supported file in dir, in name order. Per-file failures
// are reported in the results rather than aborting the scan.
func LoadDir(dir string) ([]Loaded, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var results []Loaded
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := FormatOf(path); err != nil {
			continue
		}
		b, err := Load(path)
		results = append(results, Loaded{Path: path, Bundle: b, Err: err})
	}
	return results, nil
}
