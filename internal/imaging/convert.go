package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// LumaModel selects how color pixels are reduced to a single intensity.
type LumaModel string

const (
	// LumaBT601 weights RGB with the ITU-R BT.601 coefficients
	// (0.299*R + 0.587*G + 0.114*B).
	LumaBT601 LumaModel = "bt601"

	// LumaLab uses the CIE L* lightness, scaled to 0-255. It tracks
	// perceived brightness more closely on saturated colors.
	LumaLab LumaModel = "lab"
)

// ConvertOptions controls ToFloat.
type ConvertOptions struct {
	// Luma is the intensity model. Empty selects LumaBT601.
	Luma LumaModel

	// BlurRadius applies a Gaussian pre-smoothing of this radius before
	// conversion. Zero disables smoothing.
	BlurRadius float64
}

// ParseLumaModel validates a luma model name. The empty string selects
// LumaBT601.
func ParseLumaModel(name string) (LumaModel, error) {
	switch LumaModel(name) {
	case "":
		return LumaBT601, nil
	case LumaBT601, LumaLab:
		return LumaModel(name), nil
	default:
		return "", fmt.Errorf("unknown luma model: %s", name)
	}
}

// ToFloat converts img into an intensity plane with values in 0-255.
//
// The returned plane always starts at the origin, whatever the bounds of
// img, so that plane coordinates match the 0-based pixel coordinates used
// by tool arguments.
//
// # Errors
//
//   - Returns error for an empty image
//   - Returns error for an unknown luma model
//   - Returns error for a negative blur radius
func ToFloat(img image.Image, opts ConvertOptions) (*FloatImage, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("cannot convert empty image")
	}
	if opts.BlurRadius < 0 {
		return nil, fmt.Errorf("blur radius must be non-negative, got %g", opts.BlurRadius)
	}
	luma, err := ParseLumaModel(string(opts.Luma))
	if err != nil {
		return nil, err
	}

	src := img
	if opts.BlurRadius > 0 {
		src = blur.Gaussian(img, opts.BlurRadius)
	}
	sb := src.Bounds()
	width, height := sb.Dx(), sb.Dy()
	f := NewFloatImage(image.Rect(0, 0, width, height))

	switch luma {
	case LumaBT601:
		gray := imaging.Grayscale(src)
		gb := gray.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := gray.PixOffset(x+gb.Min.X, y+gb.Min.Y)
				f.Set(x, y, float32(gray.Pix[i]))
			}
		}
	case LumaLab:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				// Fully transparent pixels convert to black.
				c, _ := colorful.MakeColor(src.At(x+sb.Min.X, y+sb.Min.Y))
				l, _, _ := c.Lab()
				f.Set(x, y, float32(clampUnit(l)*255))
			}
		}
	}

	return f, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
