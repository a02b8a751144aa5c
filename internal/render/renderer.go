// Package render draws arena snapshots as top-down raster frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/fogleman/gg"

	"tank-arena/internal/assets"
	"tank-arena/internal/game"
)

const (
	// DefaultScale is the number of pixels per tile.
	DefaultScale = 32

	// fullHealth is the health bar maximum
	fullHealth = 100
)

// TextureLookup resolves texture data by name. *assets.Library implements it.
type TextureLookup interface {
	Lookup(name string) (assets.Texture, bool)
}

// Renderer draws snapshots with gg. One context is reused across frames, so
// calls are serialized.
type Renderer struct {
	mu       sync.Mutex
	textures TextureLookup
	scale    int
	dc       *gg.Context
	size     int // map size the context was built for
}

// NewRenderer creates a renderer. scale <= 0 uses DefaultScale.
func NewRenderer(textures TextureLookup, scale int) *Renderer {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Renderer{textures: textures, scale: scale}
}

// Fallback fills for when a texture is missing
var (
	background  = color.RGBA{12, 12, 28, 255}
	missing     = color.RGBA{255, 0, 255, 255}
	outline     = color.RGBA{20, 20, 20, 200}
	healthGood  = color.RGBA{80, 200, 90, 255}
	healthLow   = color.RGBA{220, 60, 50, 255}
	healthTrack = color.RGBA{0, 0, 0, 140}
)

// EncodePNG renders snap and writes it as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := r.draw(snap)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// Render returns a copy of the frame for snap.
func (r *Renderer) Render(snap *game.GameSnapshot) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.draw(snap).Image()
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.(*image.RGBA).Pix)
	return dst
}

// draw paints every layer into the shared context. Caller holds r.mu.
func (r *Renderer) draw(snap *game.GameSnapshot) *gg.Context {
	size := snap.MapSize
	if size <= 0 {
		size = 1
	}
	if r.dc == nil || r.size != size {
		r.dc = gg.NewContext(size*r.scale, size*r.scale)
		r.size = size
	}
	dc := r.dc

	dc.SetColor(background)
	dc.Clear()

	for _, t := range snap.Tiles {
		r.drawTile(dc, t)
	}

	// Walls first so tanks and bullets stay visible on top
	for _, e := range snap.Entities {
		if e.Kind == game.KindWall.String() {
			r.drawWall(dc, e)
		}
	}
	for _, e := range snap.Entities {
		switch e.Kind {
		case game.KindPlayer.String():
			r.drawTank(dc, e, "tank-body", "tank-turret")
		case game.KindEnemy.String():
			r.drawTank(dc, e, "tank-body-red", "tank-turret-red")
		case game.KindBullet.String():
			r.drawBullet(dc, e)
		}
	}

	if len(snap.Particles) > 0 {
		r.drawParticles(dc, snap.Particles)
	}
	return dc
}

// toPixel maps a world position to the pixel at the center of its cell.
// World +Y is screen down, matching the heading convention.
func (r *Renderer) toPixel(x, y float64) (float64, float64) {
	s := float64(r.scale)
	return (x + 0.5) * s, (y + 0.5) * s
}

func (r *Renderer) texture(name string) assets.Texture {
	if r.textures == nil {
		return assets.Texture{Name: name, Color: missing}
	}
	t, ok := r.textures.Lookup(name)
	if !ok {
		return assets.Texture{Name: name, Color: missing}
	}
	return t
}

// fillTexture fills the w x h rectangle at (x, y) with the texture image,
// or with its flat color when none was decoded.
func (r *Renderer) fillTexture(dc *gg.Context, t assets.Texture, x, y, w, h float64) {
	if t.Image != nil {
		b := t.Image.Bounds()
		dc.Push()
		dc.Translate(x, y)
		dc.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
		dc.DrawImage(t.Image, -b.Min.X, -b.Min.Y)
		dc.Pop()
		return
	}
	dc.SetColor(t.Color)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()
}

func (r *Renderer) drawTile(dc *gg.Context, t game.TileSnapshot) {
	s := float64(r.scale)
	r.fillTexture(dc, r.texture(t.Texture), float64(t.X)*s, float64(t.Y)*s, s, s)
}

func (r *Renderer) drawWall(dc *gg.Context, e game.EntitySnapshot) {
	s := float64(r.scale)
	px, py := r.toPixel(e.X, e.Y)
	r.fillTexture(dc, r.texture("wall"), px-s/2, py-s/2, s, s)

	dc.SetColor(outline)
	dc.SetLineWidth(1)
	dc.DrawRectangle(px-s/2+0.5, py-s/2+0.5, s-1, s-1)
	dc.Stroke()
}

// drawTank draws hull and turret rotated to the tank heading, then a health bar.
func (r *Renderer) drawTank(dc *gg.Context, e game.EntitySnapshot, bodyTex, turretTex string) {
	s := float64(r.scale)
	px, py := r.toPixel(e.X, e.Y)
	hull := s * 0.8
	if e.ColliderRadius > 0 {
		hull = e.ColliderRadius * 2 * s
	}

	dc.Push()
	dc.RotateAbout(e.Rotation, px, py)

	dc.SetColor(r.texture(bodyTex).Color)
	dc.DrawRoundedRectangle(px-hull/2, py-hull/2, hull, hull, hull*0.15)
	dc.FillPreserve()
	dc.SetColor(outline)
	dc.SetLineWidth(1.5)
	dc.Stroke()

	// Barrel points along heading 0, which is screen up
	turret := r.texture(turretTex).Color
	dc.SetColor(turret)
	dc.SetLineWidth(hull * 0.18)
	dc.DrawLine(px, py, px, py-hull*0.75)
	dc.Stroke()
	dc.DrawCircle(px, py, hull*0.28)
	dc.Fill()
	dc.Pop()

	if e.Disposed {
		return
	}
	frac := float64(e.Health) / fullHealth
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	barY := py - hull/2 - s*0.2
	dc.SetColor(healthTrack)
	dc.DrawRectangle(px-hull/2, barY, hull, 3)
	dc.Fill()
	if frac > 0.3 {
		dc.SetColor(healthGood)
	} else {
		dc.SetColor(healthLow)
	}
	dc.DrawRectangle(px-hull/2, barY, hull*frac, 3)
	dc.Fill()
}

func (r *Renderer) drawBullet(dc *gg.Context, e game.EntitySnapshot) {
	px, py := r.toPixel(e.X, e.Y)
	radius := float64(r.scale) * 0.1
	if e.ColliderRadius > 0 {
		radius = e.ColliderRadius * float64(r.scale)
	}
	dc.SetColor(r.texture("bullet").Color)
	dc.DrawCircle(px, py, radius)
	dc.Fill()
}

// drawParticles blends effect particles directly into the frame pixels.
func (r *Renderer) drawParticles(dc *gg.Context, particles []game.ParticleSnapshot) {
	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	buf := newPixelBuffer(img.Pix, img.Rect.Dx(), img.Rect.Dy(), img.Stride)
	fire := r.texture("fire").Color
	smoke := r.texture("smoke").Color

	for _, p := range particles {
		c := fire
		if p.Smoke {
			c = smoke
		}
		alpha := p.Opacity
		if alpha > 1 {
			alpha = 1
		}
		if alpha <= 0 {
			continue
		}
		c.A = uint8(alpha * 255)

		px, py := r.toPixel(p.X, p.Y)
		radius := p.Scale * float64(r.scale) / 2
		buf.fillCircle(int(px+0.5), int(py+0.5), radius, c)
	}
}
