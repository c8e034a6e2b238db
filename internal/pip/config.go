package pip

import (
	"fmt"
	"image/color"
	"strings"
)

// Defaults applied by Setup before the incoming patch is overlaid.
const (
	DefaultWindowTitle = "PiP Window"
	DefaultTextSize    = 32.0

	// BaselineHeight is the window height used when deriving the initial size
	// from the aspect ratio.
	BaselineHeight = 180
)

var (
	DefaultBackgroundColor = RGBA{R: 0, G: 0, B: 0, A: 204}
	DefaultTextColor       = RGBA{R: 255, G: 255, B: 255, A: 255}
	DefaultAspectRatio     = AspectRatio{Num: 16, Den: 9}
)

// RGBA is an 8-bit per channel, non-premultiplied color.
type RGBA struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// NRGBA converts to the image/color representation used by the renderer.
func (c RGBA) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Opaque returns the same color with alpha forced to 255.
func (c RGBA) Opaque() RGBA {
	c.A = 255
	return c
}

// Normalized returns the channels as fractional intensities in [0,1].
func (c RGBA) Normalized() (r, g, b, a float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255
}

// TextAlign is the horizontal placement of the caption.
type TextAlign int

const (
	AlignCenter TextAlign = iota
	AlignLeft
	AlignRight
)

func (a TextAlign) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	default:
		return "center"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a TextAlign) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseTextAlign maps the wire names "left" and "right" to their alignment.
// Any other name centers the text.
func ParseTextAlign(s string) TextAlign {
	switch strings.ToLower(s) {
	case "left":
		return AlignLeft
	case "right":
		return AlignRight
	}
	return AlignCenter
}

// AspectRatio is a width:height proportion. Both terms are positive once
// stored in a Configuration.
type AspectRatio struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Valid reports whether both terms are strictly positive.
func (r AspectRatio) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", r.Num, r.Den)
}

// Configuration describes the appearance and geometry of the PiP window.
type Configuration struct {
	WindowTitle     string      `json:"windowTitle"`
	Text            string      `json:"text"`
	BackgroundColor RGBA        `json:"backgroundColor"`
	TextColor       RGBA        `json:"textColor"`
	TextAlign       TextAlign   `json:"textAlign"`
	TextSize        float64     `json:"textSize"`
	AspectRatio     AspectRatio `json:"ratio"`
}

// DefaultConfiguration returns the configuration a fresh Setup starts from.
func DefaultConfiguration() Configuration {
	return Configuration{
		WindowTitle:     DefaultWindowTitle,
		BackgroundColor: DefaultBackgroundColor,
		TextColor:       DefaultTextColor,
		TextAlign:       AlignCenter,
		TextSize:        DefaultTextSize,
		AspectRatio:     DefaultAspectRatio,
	}
}

// apply overlays the fields present in p. The title and text are only taken
// when the corresponding flag is set, so Update can reuse it as a pure style
// patch.
func (c *Configuration) apply(p Patch, withTitle, withText bool) (ratioChanged bool) {
	if withTitle && p.WindowTitle != nil {
		c.WindowTitle = *p.WindowTitle
	}
	if withText && p.Text != nil {
		c.Text = *p.Text
	}
	if p.BackgroundColor != nil {
		c.BackgroundColor = *p.BackgroundColor
	}
	if p.TextColor != nil {
		c.TextColor = *p.TextColor
	}
	if p.TextAlign != nil {
		c.TextAlign = *p.TextAlign
	}
	if p.TextSize != nil {
		c.TextSize = *p.TextSize
	}
	if p.AspectRatio != nil && p.AspectRatio.Valid() && *p.AspectRatio != c.AspectRatio {
		c.AspectRatio = *p.AspectRatio
		ratioChanged = true
	}
	return ratioChanged
}
