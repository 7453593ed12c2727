// Package lk implements a single-point Lucas-Kanade matcher.
//
// Given a point in a reference image A, a predicted translation and the
// gradient field of A, Match refines the displacement of the point into a
// target image B by iteratively minimizing the intensity mismatch over a
// small square window. Each call answers exactly one question: where did
// this point move, and how well does the window match there.
//
// # Coordinate System
//
// Points and displacements are Vec2 values with X along columns and Y along
// rows, matching image.Point. Window offsets range over [-H, H] on both axes
// where H is half the window side. The integer cell of a sub-pixel position
// is obtained by flooring both coordinates.
//
// # Accessors
//
// The matcher never owns image data. It is generic over two small
// capability sets:
//   - Sampler: membership test, bilinear intensity sampling, valid domain
//   - GradientSampler: membership test, bilinear gradient sampling
//
// Accessors must be safe for concurrent reads if Match is called from
// several goroutines. Match itself keeps no state between calls.
//
// # Outcomes
//
// Match never returns an error. Every outcome is a Result tagged with a
// Status. Failed results carry the sentinel displacement (-1, -1) and a
// sentinel error: IllConditionedError when the window lacks texture, and
// DivergedError when refinement diverges or leaves the target domain.
package lk
