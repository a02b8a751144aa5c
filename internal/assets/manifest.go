// Package assets resolves the named textures and models entities ask for at
// load time and hands out leased handles that must be released on dispose.
package assets

import (
	_ "embed"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tank-arena/internal/geom"
)

//go:embed default_manifest.yaml
var defaultManifest []byte

// Manifest lists every asset a session may request.
type Manifest struct {
	Textures []TextureSpec `yaml:"textures"`
	Models   []ModelSpec   `yaml:"models"`
}

// TextureSpec describes one texture. Path is optional and relative to the
// manifest directory; without it Color is used as a flat fill.
type TextureSpec struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Color  string `yaml:"color"`
	Ground bool   `yaml:"ground"`
}

// ModelSpec describes a model by its named parts and local bounds.
type ModelSpec struct {
	Name   string     `yaml:"name"`
	Parts  []string   `yaml:"parts"`
	Bounds BoundsSpec `yaml:"bounds"`
}

// BoundsSpec is an axis-aligned box in model space.
type BoundsSpec struct {
	Min []float64 `yaml:"min"`
	Max []float64 `yaml:"max"`
}

// Box converts the spec into a geom.Box.
func (b BoundsSpec) Box() geom.Box {
	return geom.Box{
		Min: geom.V(b.Min[0], b.Min[1], b.Min[2]),
		Max: geom.V(b.Max[0], b.Max[1], b.Max[2]),
	}
}

// DefaultManifest returns the embedded asset set.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest)
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Textures)+len(m.Models))
	for _, t := range m.Textures {
		if t.Name == "" {
			return fmt.Errorf("texture without name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate asset %q", t.Name)
		}
		seen[t.Name] = true
		if t.Color != "" {
			if _, err := ParseHexColor(t.Color); err != nil {
				return fmt.Errorf("texture %q: %w", t.Name, err)
			}
		}
	}
	for _, md := range m.Models {
		if md.Name == "" {
			return fmt.Errorf("model without name")
		}
		if seen[md.Name] {
			return fmt.Errorf("duplicate asset %q", md.Name)
		}
		seen[md.Name] = true
		b := md.Bounds
		if len(b.Min) != 3 || len(b.Max) != 3 {
			return fmt.Errorf("model %q: bounds need three components", md.Name)
		}
		for i := 0; i < 3; i++ {
			if b.Max[i] < b.Min[i] {
				return fmt.Errorf("model %q: inverted bounds", md.Name)
			}
		}
	}
	return nil
}

// ParseHexColor parses "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
