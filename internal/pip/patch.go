package pip

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-viper/mapstructure/v2"
)

// Argument map keys understood by DecodePatch.
const (
	KeyWindowTitle     = "windowTitle"
	KeyText            = "text"
	KeyBackgroundColor = "backgroundColor"
	KeyTextColor       = "textColor"
	KeyTextAlign       = "textAlign"
	KeyTextSize        = "textSize"
	KeyRatio           = "ratio"
)

// Patch is a partial Configuration. A nil field means "not supplied".
type Patch struct {
	WindowTitle     *string
	Text            *string
	BackgroundColor *RGBA
	TextColor       *RGBA
	TextAlign       *TextAlign
	TextSize        *float64
	AspectRatio     *AspectRatio
}

// DecodePatch converts a loosely typed argument map into a Patch.
//
// Every field is decoded on its own: a missing key leaves the field nil, a
// malformed value leaves it nil as well and is reported in the returned
// error. The Patch is always usable, the error only describes what was
// skipped.
func DecodePatch(args map[string]any) (Patch, error) {
	var (
		p    Patch
		errs []error
	)

	if v, ok := args[KeyWindowTitle]; ok {
		if s, err := decodeString(v); err != nil {
			errs = append(errs, fieldError(KeyWindowTitle, err))
		} else {
			p.WindowTitle = &s
		}
	}

	if v, ok := args[KeyText]; ok {
		if s, err := decodeString(v); err != nil {
			errs = append(errs, fieldError(KeyText, err))
		} else {
			p.Text = &s
		}
	}

	if v, ok := args[KeyBackgroundColor]; ok {
		if c, err := decodeColor(v); err != nil {
			errs = append(errs, fieldError(KeyBackgroundColor, err))
		} else {
			p.BackgroundColor = &c
		}
	}

	if v, ok := args[KeyTextColor]; ok {
		if c, err := decodeColor(v); err != nil {
			errs = append(errs, fieldError(KeyTextColor, err))
		} else {
			p.TextColor = &c
		}
	}

	if v, ok := args[KeyTextAlign]; ok {
		if s, err := decodeString(v); err != nil {
			errs = append(errs, fieldError(KeyTextAlign, err))
		} else {
			a := ParseTextAlign(s)
			p.TextAlign = &a
		}
	}

	if v, ok := args[KeyTextSize]; ok {
		if f, err := decodeTextSize(v); err != nil {
			errs = append(errs, fieldError(KeyTextSize, err))
		} else {
			p.TextSize = &f
		}
	}

	if v, ok := args[KeyRatio]; ok {
		if r, err := decodeRatio(v); err != nil {
			errs = append(errs, fieldError(KeyRatio, err))
		} else {
			p.AspectRatio = &r
		}
	}

	return p, errors.Join(errs...)
}

// TextArgument extracts the mandatory "text" argument of updateText.
func TextArgument(args map[string]any) (string, error) {
	v, ok := args[KeyText]
	if !ok {
		return "", fieldError(KeyText, errors.New("missing"))
	}
	s, err := decodeString(v)
	if err != nil {
		return "", fieldError(KeyText, err)
	}
	return s, nil
}

func fieldError(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedArgument, key, err)
}

func decodeString(v any) (string, error) {
	if v == nil {
		return "", errors.New("null value")
	}
	var s string
	if err := mapstructure.Decode(v, &s); err != nil {
		return "", err
	}
	return s, nil
}

// decodeNumbers decodes a list of JSON numbers. Integer and float inputs are
// both accepted; the caller decides what values are legal.
func decodeNumbers(v any) ([]float64, error) {
	if v == nil {
		return nil, errors.New("null value")
	}
	var nums []float64
	if err := mapstructure.Decode(v, &nums); err != nil {
		return nil, err
	}
	return nums, nil
}

func decodeColor(v any) (RGBA, error) {
	nums, err := decodeNumbers(v)
	if err != nil {
		return RGBA{}, err
	}
	if len(nums) != 3 && len(nums) != 4 {
		return RGBA{}, fmt.Errorf("expected 3 or 4 channels, got %d", len(nums))
	}

	ch := [4]uint8{0, 0, 0, 255}
	for i, n := range nums {
		if n != math.Trunc(n) || n < 0 || n > 255 {
			return RGBA{}, fmt.Errorf("channel %d out of range: %v", i, n)
		}
		ch[i] = uint8(n)
	}
	return RGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func decodeTextSize(v any) (float64, error) {
	if v == nil {
		return 0, errors.New("null value")
	}
	var f float64
	if err := mapstructure.Decode(v, &f); err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("size must be positive, got %v", f)
	}
	return f, nil
}

func decodeRatio(v any) (AspectRatio, error) {
	nums, err := decodeNumbers(v)
	if err != nil {
		return AspectRatio{}, err
	}
	if len(nums) != 2 {
		return AspectRatio{}, fmt.Errorf("expected 2 terms, got %d", len(nums))
	}
	for _, n := range nums {
		if n != math.Trunc(n) || n > math.MaxInt32 {
			return AspectRatio{}, fmt.Errorf("term is not an integer: %v", n)
		}
	}
	r := AspectRatio{Num: int(nums[0]), Den: int(nums[1])}
	if !r.Valid() {
		return AspectRatio{}, fmt.Errorf("terms must be positive, got %s", r)
	}
	if int64(BaselineHeight)*int64(r.Num)/int64(r.Den) > MaxDimension {
		return AspectRatio{}, fmt.Errorf("ratio %s is wider than %d pixels at height %d", r, MaxDimension, BaselineHeight)
	}
	return r, nil
}
