package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// PatchResult contains a cropped window around a point.
type PatchResult struct {
	// Region is the crop rectangle in source pixel coordinates, after
	// clipping to the image bounds.
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`

	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// WindowPatch extracts the size x size window centered on the cell
// containing center and enlarges it by an integer scale with
// nearest-neighbour resampling, so individual pixels stay visible.
func WindowPatch(img image.Image, center lk.Vec2, size, scale int) (*PatchResult, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if scale < 1 {
		scale = 1
	}

	bounds := img.Bounds()
	c := center.Cell().Add(bounds.Min)
	h := size / 2
	region := image.Rect(c.X-h, c.Y-h, c.X-h+size, c.Y-h+size).Intersect(bounds)
	if region.Empty() {
		return nil, fmt.Errorf("window around (%.2f,%.2f) lies outside image bounds (%d,%d)-(%d,%d)",
			center.X, center.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	patch := imaging.Crop(img, region)
	if scale > 1 {
		patch = imaging.Resize(patch, region.Dx()*scale, region.Dy()*scale, imaging.NearestNeighbor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, patch); err != nil {
		return nil, fmt.Errorf("failed to encode window patch: %w", err)
	}

	region = region.Sub(bounds.Min)
	return &PatchResult{
		X1:          region.Min.X,
		Y1:          region.Min.Y,
		X2:          region.Max.X,
		Y2:          region.Max.Y,
		Width:       patch.Bounds().Dx(),
		Height:      patch.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
