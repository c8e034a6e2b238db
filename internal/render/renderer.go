package render

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/pip"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Inset is the horizontal margin used for left and right aligned text.
const Inset = 16

// maxFaces bounds the face cache; sizes beyond it evict everything.
const maxFaces = 8

// Renderer draws the PiP frame: a solid background with one line of bold
// monospace text. Font faces are created lazily per text size.
type Renderer struct {
	font *opentype.Font
	log  *zerolog.Logger

	mu    sync.Mutex
	faces map[float64]font.Face
}

// New parses the embedded Go Mono Bold font.
func New() (*Renderer, error) {
	f, err := opentype.Parse(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{
		font:  f,
		log:   logger.WithComponent("render"),
		faces: make(map[float64]font.Face),
	}, nil
}

// Render paints cfg into a new frame of the given size.
//
// The background is painted opaque; its alpha is applied by the window
// (see pip.Surface.SetOpacity). The text color alpha is honored by blending
// the glyphs over the background.
func (r *Renderer) Render(cfg pip.Configuration, size pip.Size) (*image.RGBA, error) {
	if size.Width <= 0 || size.Height <= 0 || size.Width > pip.MaxDimension || size.Height > pip.MaxDimension {
		return nil, fmt.Errorf("invalid frame size %s", size)
	}

	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	bg := image.NewUniform(cfg.BackgroundColor.Opaque().NRGBA())
	draw.Draw(img, img.Bounds(), bg, image.Point{}, draw.Src)

	if cfg.Text == "" {
		return img, nil
	}

	face, err := r.face(cfg.TextSize)
	if err != nil {
		return nil, err
	}

	textWidth := font.MeasureString(face, cfg.Text).Round()
	x := TextOrigin(cfg.TextAlign, size.Width, textWidth)

	m := face.Metrics()
	baseline := (size.Height + m.Ascent.Ceil() - m.Descent.Ceil()) / 2

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(cfg.TextColor.NRGBA()),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(baseline)},
	}
	d.DrawString(cfg.Text)

	return img, nil
}

// TextOrigin returns the x coordinate where text of the given width starts.
func TextOrigin(align pip.TextAlign, frameWidth, textWidth int) int {
	switch align {
	case pip.AlignLeft:
		return Inset
	case pip.AlignRight:
		return frameWidth - Inset - textWidth
	default:
		return (frameWidth - textWidth) / 2
	}
}

func (r *Renderer) face(size float64) (font.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if face, ok := r.faces[size]; ok {
		return face, nil
	}

	if len(r.faces) >= maxFaces {
		r.closeFacesLocked()
	}

	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face at %.1fpt: %w", size, err)
	}
	r.faces[size] = face
	r.log.Debug().Float64("size", size).Msg("Created font face")
	return face, nil
}

// Close releases all cached font faces.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFacesLocked()
	return nil
}

func (r *Renderer) closeFacesLocked() {
	for size, face := range r.faces {
		if err := face.Close(); err != nil {
			r.log.Warn().Err(err).Float64("size", size).Msg("Failed to close font face")
		}
		delete(r.faces, size)
	}
}
