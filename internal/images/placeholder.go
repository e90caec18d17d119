package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default placeholder dimensions.
const (
	DefaultPlaceholderWidth  = 400
	DefaultPlaceholderHeight = 225
)

var (
	placeholderBackground = color.RGBA{R: 0x1f, G: 0x23, B: 0x2b, A: 0xff}
	placeholderForeground = color.RGBA{R: 0x9a, G: 0xa3, B: 0xb2, A: 0xff}
)

// Placeholders renders and caches labelled PNG placeholders.
type Placeholders struct {
	width  int
	height int

	mu    sync.Mutex
	cache map[string][]byte
}

// NewPlaceholders creates a renderer for width x height images.
func NewPlaceholders(width, height int) *Placeholders {
	if width <= 0 {
		width = DefaultPlaceholderWidth
	}
	if height <= 0 {
		height = DefaultPlaceholderHeight
	}
	return &Placeholders{width: width, height: height, cache: make(map[string][]byte)}
}

// PNG returns the encoded placeholder for label.
func (p *Placeholders) PNG(label string) ([]byte, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		label = "NO IMAGE"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.cache[label]; ok {
		return data, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderBackground}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderForeground),
		Face: face,
	}
	textWidth := d.MeasureString(label)
	x := (fixed.I(p.width) - textWidth) / 2
	if x < 0 {
		x = 0
	}
	y := fixed.I(p.height)/2 + fixed.I(face.Ascent)/2
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}
	p.cache[label] = buf.Bytes()
	return p.cache[label], nil
}
