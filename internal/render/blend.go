package render

import (
	"image/color"
	"math"
)

// pixelBuffer blends simple primitives straight into an RGBA pixel slice.
// Particles are drawn through it, bypassing gg.Context path construction.
type pixelBuffer struct {
	pix    []byte
	width  int
	height int
	stride int // bytes per row
}

func newPixelBuffer(pix []byte, width, height, stride int) *pixelBuffer {
	return &pixelBuffer{pix: pix, width: width, height: height, stride: stride}
}

// fillCircle draws a filled circle with alpha blending. The destination is
// assumed opaque.
func (b *pixelBuffer) fillCircle(cx, cy int, radius float64, c color.RGBA) {
	if c.A == 0 || radius <= 0 {
		return
	}

	rad := int(radius + 0.5)
	radSq := radius * radius
	srcA := float64(c.A) / 255.0
	invA := 1.0 - srcA

	y1 := max(0, cy-rad)
	y2 := min(b.height, cy+rad+1)

	for py := y1; py < y2; py++ {
		dy := float64(py - cy)
		dySq := dy * dy
		if dySq > radSq {
			continue
		}
		xExtent := math.Sqrt(radSq - dySq)
		x1 := max(0, cx-int(xExtent+0.5))
		x2 := min(b.width, cx+int(xExtent+0.5)+1)

		rowStart := py * b.stride
		for px := x1; px < x2; px++ {
			dx := float64(px - cx)
			if dx*dx+dySq > radSq {
				continue
			}
			idx := rowStart + px*4
			if c.A == 255 {
				b.pix[idx] = c.R
				b.pix[idx+1] = c.G
				b.pix[idx+2] = c.B
				b.pix[idx+3] = 255
				continue
			}
			b.pix[idx] = uint8(float64(c.R)*srcA + float64(b.pix[idx])*invA)
			b.pix[idx+1] = uint8(float64(c.G)*srcA + float64(b.pix[idx+1])*invA)
			b.pix[idx+2] = uint8(float64(c.B)*srcA + float64(b.pix[idx+2])*invA)
			b.pix[idx+3] = 255
		}
	}
}
