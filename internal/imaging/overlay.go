package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayOptions controls DrawFlow.
type OverlayOptions struct {
	// VectorColor is the hex color of successful tracks (default #00FF00).
	VectorColor string

	// FailureColor is the hex color of failed tracks (default #FF0000).
	FailureColor string

	// Magnify lengthens drawn vectors, which helps with sub-pixel motion.
	// Values <= 0 mean 1. Values above MaxMagnify, NaN and infinities are
	// rejected.
	Magnify float64

	// Labels draws the track index next to each point.
	Labels bool
}

// MaxMagnify is the largest accepted OverlayOptions.Magnify.
const MaxMagnify = 1000

// OverlayResult contains the rendered overlay.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Drawn       int    `json:"drawn"`
}

// DrawFlow renders tracks onto a copy of img.
//
// Successful tracks get a dot at the start point and a line to the
// (magnified) end point. Failed tracks get a cross at the start point.
func DrawFlow(img image.Image, tracks []TrackResult, opts OverlayOptions) (*OverlayResult, error) {
	okColor, err := parseHexColor(defaultString(opts.VectorColor, "#00FF00"))
	if err != nil {
		return nil, fmt.Errorf("invalid vector color: %w", err)
	}
	failColor, err := parseHexColor(defaultString(opts.FailureColor, "#FF0000"))
	if err != nil {
		return nil, fmt.Errorf("invalid failure color: %w", err)
	}
	magnify := opts.Magnify
	if math.IsNaN(magnify) || magnify > MaxMagnify {
		return nil, fmt.Errorf("magnify must be at most %d, got %g", MaxMagnify, magnify)
	}
	if magnify <= 0 {
		magnify = 1
	}

	canvas := imaging.Clone(img)
	for i, t := range tracks {
		px, py := t.Point.X, t.Point.Y
		c := okColor
		if t.Status == "ok" {
			drawSegment(canvas, px, py, px+t.Displacement.X*magnify, py+t.Displacement.Y*magnify, okColor)
			drawSegment(canvas, px-1, py, px+1, py, okColor)
			drawSegment(canvas, px, py-1, px, py+1, okColor)
		} else {
			c = failColor
			drawSegment(canvas, px-2, py-2, px+2, py+2, failColor)
			drawSegment(canvas, px-2, py+2, px+2, py-2, failColor)
		}
		if opts.Labels && labelVisible(canvas.Bounds(), px, py) {
			drawLabel(canvas, int(math.Round(px))+4, int(math.Round(py))-4, strconv.Itoa(i), c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       canvas.Bounds().Dx(),
		Height:      canvas.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Drawn:       len(tracks),
	}, nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// drawSegment clips the segment to img and draws what remains, so the
// work done is bounded by the image size whatever the endpoints.
func drawSegment(img *image.NRGBA, x0, y0, x1, y1 float64, c color.Color) {
	x0, y0, x1, y1, ok := clipSegment(img.Bounds(), x0, y0, x1, y1)
	if !ok {
		return
	}
	drawLine(img,
		int(math.Round(x0)), int(math.Round(y0)),
		int(math.Round(x1)), int(math.Round(y1)), c)
}

// clipSegment clips (x0,y0)-(x1,y1) to the pixel centers of r with the
// Liang-Barsky algorithm. ok is false when nothing of the segment lies
// inside r or an endpoint is not finite.
func clipSegment(r image.Rectangle, x0, y0, x1, y1 float64) (cx0, cy0, cx1, cy1 float64, ok bool) {
	if r.Empty() {
		return 0, 0, 0, 0, false
	}
	dx, dy := x1-x0, y1-y0
	for _, v := range [...]float64{x0, y0, dx, dy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, 0, false
		}
	}

	minX, minY := float64(r.Min.X), float64(r.Min.Y)
	maxX, maxY := float64(r.Max.X-1), float64(r.Max.Y-1)
	t0, t1 := 0.0, 1.0
	for _, e := range [...][2]float64{
		{-dx, x0 - minX},
		{dx, maxX - x0},
		{-dy, y0 - minY},
		{dy, maxY - y0},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// labelVisible reports whether a label anchored near (x, y) can touch r.
func labelVisible(r image.Rectangle, x, y float64) bool {
	const margin = 64
	return x > float64(r.Min.X-margin) && x < float64(r.Max.X+margin) &&
		y > float64(r.Min.Y-margin) && y < float64(r.Max.Y+margin)
}

// drawLine draws a Bresenham line between two points inside the image.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.Color) {
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
		img.Set(x0, y0, c)
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

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawLabel draws text with its baseline at (x, y) using basicfont.Face7x13.
func drawLabel(img *image.NRGBA, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}
