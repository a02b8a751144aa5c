// Package tui is a terminal client for the arena: it draws snapshots with
// tcell and feeds keyboard input back to the engine.
package tui

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"tank-arena/internal/assets"
	"tank-arena/internal/game"
	"tank-arena/internal/geom"
)

// cellWidth is the number of terminal columns per tile. Terminal cells are
// roughly twice as tall as wide.
const cellWidth = 2

// TextureLookup resolves texture colors by name.
type TextureLookup interface {
	Lookup(name string) (assets.Texture, bool)
}

var (
	styleBase   = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleWall   = tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorDarkGray)
	stylePlayer = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleEnemy  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBullet = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleFire   = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
	styleSmoke  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	groundColor = tcell.ColorDarkOliveGreen
)

// Glyphs used on the map
const (
	glyphWall   = '█'
	glyphBullet = '•'
	glyphFire   = '*'
	glyphSmoke  = '░'
)

// arrows are tank glyphs by heading, clockwise from screen up.
var arrows = [8]rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}

// headingGlyph picks the arrow closest to heading a.
func headingGlyph(a float64) rune {
	sector := int(math.Floor(geom.WrapAngle(a+math.Pi/8) / (math.Pi / 4)))
	return arrows[sector%len(arrows)]
}

// View draws snapshots onto a tcell screen.
type View struct {
	screen   tcell.Screen
	textures TextureLookup
}

// NewView creates a view. textures may be nil.
func NewView(screen tcell.Screen, textures TextureLookup) *View {
	return &View{screen: screen, textures: textures}
}

// Draw renders snap and shows the screen.
func (v *View) Draw(snap *game.GameSnapshot) {
	v.screen.SetStyle(styleBase)
	v.screen.Clear()

	for _, t := range snap.Tiles {
		bg := v.tileColor(t.Texture)
		for dx := 0; dx < cellWidth; dx++ {
			v.screen.SetContent(t.X*cellWidth+dx, t.Y, ' ', nil, tcell.StyleDefault.Background(bg))
		}
	}

	for _, e := range snap.Entities {
		switch e.Kind {
		case game.KindWall.String():
			v.put(e.X, e.Y, glyphWall, styleWall, true)
		case game.KindPlayer.String():
			v.put(e.X, e.Y, headingGlyph(e.Rotation), stylePlayer, false)
		case game.KindEnemy.String():
			v.put(e.X, e.Y, headingGlyph(e.Rotation), styleEnemy, false)
		case game.KindBullet.String():
			v.put(e.X, e.Y, glyphBullet, styleBullet, false)
		}
	}

	for _, p := range snap.Particles {
		if p.Opacity < 0.2 {
			continue
		}
		if p.Smoke {
			v.put(p.X, p.Y, glyphSmoke, styleSmoke, false)
		} else {
			v.put(p.X, p.Y, glyphFire, styleFire, false)
		}
	}

	v.drawStatus(snap)
	v.screen.Show()
}

// put draws r in the tile containing (x, y), keeping the tile background.
// fill repeats the glyph across the whole tile.
func (v *View) put(x, y float64, r rune, style tcell.Style, fill bool) {
	col := int(math.Round(x)) * cellWidth
	row := int(math.Round(y))
	w, h := v.screen.Size()
	if col < 0 || row < 0 || col >= w || row >= h {
		return
	}
	n := 1
	if fill {
		n = cellWidth
	}
	for dx := 0; dx < n; dx++ {
		_, _, cur, _ := v.screen.GetContent(col+dx, row)
		_, bg, _ := cur.Decompose()
		s := style
		if _, sbg, _ := style.Decompose(); sbg == tcell.ColorDefault {
			s = style.Background(bg)
		}
		v.screen.SetContent(col+dx, row, r, nil, s)
	}
}

func (v *View) tileColor(name string) tcell.Color {
	if v.textures == nil {
		return groundColor
	}
	t, ok := v.textures.Lookup(name)
	if !ok {
		return groundColor
	}
	return tcell.NewRGBColor(int32(t.Color.R), int32(t.Color.G), int32(t.Color.B))
}

// drawStatus writes the status line under the map.
func (v *View) drawStatus(snap *game.GameSnapshot) {
	line := fmt.Sprintf(" HP %3d  enemies %d  tick %d", snap.PlayerHealth, snap.EnemiesAlive, snap.TickNumber)
	switch game.Outcome(snap.Outcome) {
	case game.OutcomeDefeat:
		line += "  DEFEAT - q to quit"
	case game.OutcomeVictory:
		line += "  VICTORY - q to quit"
	}
	v.text(0, snap.MapSize, line, styleBase)
}

func (v *View) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
