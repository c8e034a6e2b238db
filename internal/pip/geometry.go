package pip

import "fmt"

// Size is a window client area in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Point is a screen position in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MaxDimension bounds every window dimension the controller derives or
// accepts. Larger sizes are clamped.
const MaxDimension = 16384

// WidthForHeight returns floor(height * num / den), clamped to
// [1, MaxDimension].
func WidthForHeight(height int, r AspectRatio) int {
	return clampDimension(int64(height) * int64(r.Num) / int64(r.Den))
}

// HeightForWidth returns floor(width * den / num), clamped to
// [1, MaxDimension].
func HeightForWidth(width int, r AspectRatio) int {
	return clampDimension(int64(width) * int64(r.Den) / int64(r.Num))
}

// InitialSize derives the window size used at setup from the baseline height.
func InitialSize(r AspectRatio) Size {
	return Size{Width: WidthForHeight(BaselineHeight, r), Height: BaselineHeight}
}

// ConstrainSize fits an interactively resized window to the aspect ratio.
//
// The rectangle only shrinks: when it is too wide the width is derived from
// the height, otherwise the height is derived from the width. The top-left
// corner is not affected; callers only change the extent.
func ConstrainSize(s Size, r AspectRatio) Size {
	s.Width = clampDimension(int64(s.Width))
	s.Height = clampDimension(int64(s.Height))

	if int64(s.Width)*int64(r.Den) >= int64(s.Height)*int64(r.Num) {
		s.Width = WidthForHeight(s.Height, r)
	} else {
		s.Height = HeightForWidth(s.Width, r)
	}
	return s
}

// CenteredOrigin returns the top-left point that centers a window of size s
// inside a screen of size screen.
func CenteredOrigin(screen, s Size) Point {
	return Point{X: (screen.Width - s.Width) / 2, Y: (screen.Height - s.Height) / 2}
}

func clampDimension(v int64) int {
	switch {
	case v < 1:
		return 1
	case v > MaxDimension:
		return MaxDimension
	}
	return int(v)
}
