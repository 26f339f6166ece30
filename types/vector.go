package types

import (
	"math"

	"golang.org/x/image/math/f32"
)

const floatCmpEpsilon = 1e-8

type Vec3 f32.Vec3

// Define a 3 component vector.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// Add a vector.
func (v Vec3) Add(v2 Vec3) Vec3 {
	return Vec3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

// Subtract a vector.
func (v Vec3) Sub(v2 Vec3) Vec3 {
	return Vec3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Multiply a 3 component vector with a scalar.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Component-wise multiplication.
func (v Vec3) MulVec(v2 Vec3) Vec3 {
	return Vec3{v[0] * v2[0], v[1] * v2[1], v[2] * v2[2]}
}

// Negate vector.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// Get 3 component vector length.
func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v.LenSq())))
}

// Get the squared vector length.
func (v Vec3) LenSq() float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

// Normalize 3 component vector. Zero-length vectors are returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3{}
	}
	return v.Mul(1.0 / l)
}

// Calculate dot product of 2 vectors
func (v Vec3) Dot(v2 Vec3) float32 {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

// Calculate cross product of 2 vectors.
func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{v[1]*v2[2] - v[2]*v2[1], v[2]*v2[0] - v[0]*v2[2], v[0]*v2[1] - v[1]*v2[0]}
}

// Returns true if all components are close to zero.
func (v Vec3) NearZero() bool {
	const s = 1e-6
	return abs32(v[0]) < s && abs32(v[1]) < s && abs32(v[2]) < s
}

// Linearly interpolate towards v2.
func (v Vec3) Lerp(v2 Vec3, t float32) Vec3 {
	return v.Mul(1 - t).Add(v2.Mul(t))
}

// Reflect vector around normal n.
func (v Vec3) Reflect(n Vec3) Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}

// Refract unit vector v through a surface with normal n and ratio of
// refraction indices etaRatio.
func (v Vec3) Refract(n Vec3, etaRatio float32) Vec3 {
	cosTheta := float32(math.Min(float64(v.Neg().Dot(n)), 1.0))
	perp := v.Add(n.Mul(cosTheta)).Mul(etaRatio)
	parallel := n.Mul(-float32(math.Sqrt(math.Abs(float64(1.0 - perp.LenSq())))))
	return perp.Add(parallel)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// Get the component-wise minimum of two vectors.
func MinVec3(v1, v2 Vec3) Vec3 {
	return Vec3{min(v1[0], v2[0]), min(v1[1], v2[1]), min(v1[2], v2[2])}
}

// Get the component-wise maximum of two vectors.
func MaxVec3(v1, v2 Vec3) Vec3 {
	return Vec3{max(v1[0], v2[0]), max(v1[1], v2[1]), max(v1[2], v2[2])}
}
