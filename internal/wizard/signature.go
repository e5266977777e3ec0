package wizard

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Point is one contact point of a freehand stroke, in surface coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pen-down path.
type Stroke []Point

// SignaturePad accumulates freehand strokes from pointer or touch input. The
// drawing model is a stroke list; rasterization happens only when the consent
// is submitted.
type SignaturePad struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Strokes []Stroke `json:"strokes,omitempty"`
	Active  bool     `json:"active"`
	Content bool     `json:"content"`
}

func NewSignaturePad(width, height int) *SignaturePad {
	return &SignaturePad{Width: width, Height: height}
}

// Down begins a new stroke at the contact point.
func (p *SignaturePad) Down(x, y float64) {
	p.Strokes = append(p.Strokes, Stroke{{X: x, Y: y}})
	p.Active = true
}

// Move extends the active stroke and marks the surface as having content.
// Moves without a preceding Down are ignored.
func (p *SignaturePad) Move(x, y float64) {
	if !p.Active || len(p.Strokes) == 0 {
		return
	}
	last := len(p.Strokes) - 1
	p.Strokes[last] = append(p.Strokes[last], Point{X: x, Y: y})
	p.Content = true
}

// Up ends the active stroke. Pointer leave is treated the same way.
func (p *SignaturePad) Up() {
	p.Active = false
}

// Clear wipes the surface.
func (p *SignaturePad) Clear() {
	p.Strokes = nil
	p.Active = false
	p.Content = false
}

// HasContent reports whether at least one stroke has been drawn.
func (p *SignaturePad) HasContent() bool {
	return p.Content
}

// EncodePNG rasterizes the stroke list onto a white canvas. An empty surface
// encodes to a blank canvas; rejecting that is the finalize gate's job.
func (p *SignaturePad) EncodePNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			img.Set(x, y, color.White)
		}
	}

	ink := color.Black
	for _, stroke := range p.Strokes {
		for i := 1; i < len(stroke); i++ {
			drawLine(img, stroke[i-1], stroke[i], ink)
		}
		if len(stroke) == 1 {
			setPixel(img, int(stroke[0].X), int(stroke[0].Y), ink)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, from, to Point, c color.Color) {
	x0, y0 := int(from.X), int(from.Y)
	x1, y1 := int(to.X), int(to.Y)

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.Color) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
