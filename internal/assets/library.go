package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/fogleman/gg"
	"golang.org/x/sync/errgroup"

	"tank-arena/internal/geom"
)

var (
	// ErrNotFound is returned when a requested asset is not in the manifest.
	ErrNotFound = errors.New("asset not found")
	// ErrReleased is returned when a handle is released twice or was never issued.
	ErrReleased = errors.New("asset handle already released")
)

// Kind separates texture handles from model handles.
type Kind uint8

const (
	KindTexture Kind = iota + 1
	KindModel
)

// Handle is an opaque lease on a named asset. Every handle returned by a
// Provider must be released exactly once.
type Handle struct {
	Name  string
	Kind  Kind
	Key   uint64 // xxhash of Name, stable across sessions
	Lease uint64 // unique per acquisition
}

// Valid reports whether h was issued by a provider.
func (h Handle) Valid() bool { return h.Lease != 0 }

// Model is a leased model with the bounds collision volumes are derived from.
type Model struct {
	Handle
	Parts  []string
	Bounds geom.Box
}

// HasPart reports whether the model contains the named part.
func (m Model) HasPart(name string) bool {
	for _, p := range m.Parts {
		if p == name {
			return true
		}
	}
	return false
}

// Provider is the asset boundary seen by entity loaders.
type Provider interface {
	Texture(name string) (Handle, error)
	Model(name string) (Model, error)
	RandomGround(rng *rand.Rand) (Handle, error)
	Release(h Handle) error
}

// Texture is resolved texture data for presentation adapters.
type Texture struct {
	Name   string
	Color  color.RGBA
	Image  image.Image // nil when the manifest gives only a color
	Ground bool
}

// Library is the in-memory Provider built from a Manifest.
type Library struct {
	mu       sync.Mutex
	baseDir  string
	textures map[string]*Texture
	models   map[string]ModelSpec
	ground   []string
	leases   map[uint64]string
	next     uint64
	acquired uint64
	released uint64
}

// NewLibrary indexes a manifest. baseDir resolves relative texture paths.
func NewLibrary(m *Manifest, baseDir string) *Library {
	lib := &Library{
		baseDir:  baseDir,
		textures: make(map[string]*Texture, len(m.Textures)),
		models:   make(map[string]ModelSpec, len(m.Models)),
		leases:   make(map[uint64]string),
	}
	for _, t := range m.Textures {
		c, _ := ParseHexColor(t.Color)
		if t.Color == "" {
			c = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}
		}
		lib.textures[t.Name] = &Texture{Name: t.Name, Color: c, Ground: t.Ground}
		if t.Ground {
			lib.ground = append(lib.ground, t.Name)
		}
	}
	sort.Strings(lib.ground)
	for _, md := range m.Models {
		lib.models[md.Name] = md
	}
	return lib
}

// NewDefaultLibrary builds a library from the embedded manifest.
func NewDefaultLibrary() (*Library, error) {
	m, err := DefaultManifest()
	if err != nil {
		return nil, err
	}
	return NewLibrary(m, ""), nil
}

// ManifestFile is the manifest name looked up inside an asset directory.
const ManifestFile = "manifest.yaml"

// Open builds a library from dir/manifest.yaml and decodes its texture files.
// An empty dir yields the embedded set.
func Open(ctx context.Context, dir string) (*Library, error) {
	if dir == "" {
		return NewDefaultLibrary()
	}
	m, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	lib := NewLibrary(m, dir)
	if err := lib.Preload(ctx, m); err != nil {
		return nil, fmt.Errorf("preload %s: %w", dir, err)
	}
	return lib, nil
}

// Preload decodes every texture file listed in the manifest, several at a time.
// The first decode failure cancels the rest and is returned.
func (l *Library) Preload(ctx context.Context, m *Manifest) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, spec := range m.Textures {
		if spec.Path == "" {
			continue
		}
		spec := spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := spec.Path
			if !filepath.IsAbs(path) && l.baseDir != "" {
				path = filepath.Join(l.baseDir, path)
			}
			img, err := gg.LoadImage(path)
			if err != nil {
				return fmt.Errorf("texture %s: %w", spec.Name, err)
			}
			l.mu.Lock()
			if t, ok := l.textures[spec.Name]; ok {
				t.Image = img
			}
			l.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Texture leases a texture handle.
func (l *Library) Texture(name string) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.textures[name]; !ok {
		return Handle{}, fmt.Errorf("texture %q: %w", name, ErrNotFound)
	}
	return l.leaseLocked(name, KindTexture), nil
}

// Model leases a model handle.
func (l *Library) Model(name string) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	spec, ok := l.models[name]
	if !ok {
		return Model{}, fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	return Model{
		Handle: l.leaseLocked(name, KindModel),
		Parts:  append([]string(nil), spec.Parts...),
		Bounds: spec.Bounds.Box(),
	}, nil
}

// RandomGround leases one of the ground textures, chosen uniformly.
func (l *Library) RandomGround(rng *rand.Rand) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ground) == 0 {
		return Handle{}, fmt.Errorf("ground texture: %w", ErrNotFound)
	}
	name := l.ground[rng.Intn(len(l.ground))]
	return l.leaseLocked(name, KindTexture), nil
}

// Release ends a lease.
func (l *Library) Release(h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.leases[h.Lease]; !ok {
		return fmt.Errorf("%s: %w", h.Name, ErrReleased)
	}
	delete(l.leases, h.Lease)
	l.released++
	return nil
}

// Lookup returns texture data without taking a lease.
func (l *Library) Lookup(name string) (Texture, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.textures[name]
	if !ok {
		return Texture{}, false
	}
	return *t, true
}

// Active returns the number of outstanding leases.
func (l *Library) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}

// Stats returns lease counters for monitoring.
func (l *Library) Stats() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]uint64{
		"acquired": l.acquired,
		"released": l.released,
		"active":   uint64(len(l.leases)),
	}
}

func (l *Library) leaseLocked(name string, kind Kind) Handle {
	l.next++
	l.acquired++
	l.leases[l.next] = name
	return Handle{
		Name:  name,
		Kind:  kind,
		Key:   xxhash.Sum64String(name),
		Lease: l.next,
	}
}
