package lk

import (
	"image"
	"math"
)

// Vec2 is a 2D floating-point point or displacement.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + u.
func (v Vec2) Add(u Vec2) Vec2 { return Vec2{v.X + u.X, v.Y + u.Y} }

// Sub returns v - u.
func (v Vec2) Sub(u Vec2) Vec2 { return Vec2{v.X - u.X, v.Y - u.Y} }

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Cell returns the integer cell containing v. It floors, so it differs
// from truncation toward zero only for coordinates in (-1, 0).
func (v Vec2) Cell() image.Point {
	return image.Point{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y))}
}

// Mat2 is a dense 2x2 matrix in row-major order.
type Mat2 [2][2]float64

// MulVec returns m * v.
func (m Mat2) MulVec(v Vec2) Vec2 {
	return Vec2{
		X: m[0][0]*v.X + m[0][1]*v.Y,
		Y: m[1][0]*v.X + m[1][1]*v.Y,
	}
}
