// Package imaging turns image files into the planes the point tracker
// samples, and renders tracking results back into images.
//
// The lk package only defines what it needs from an image: a membership
// test, bilinear sampling and a valid domain. This package provides those
// accessors (FloatImage and GradientField) together with the plumbing
// around them: decoding and caching, grayscale conversion, optional
// Gaussian pre-smoothing, gradient computation, window patches and flow
// overlays.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Planes always start at the origin, whatever the bounds of the
//     decoded image
//   - Integer coordinates address pixel centers; bilinear sampling between
//     them is exact at integer positions
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Planes are never mutated after
// construction, so any number of goroutines may track points against the
// same planes at once.
//
// # Intensity Range
//
// Intensity planes hold values in 0-255 regardless of the source bit
// depth. Matching errors reported by the tracker are therefore in the
// same units: a mean absolute intensity difference per sample.
package imaging
