package scene

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/achilleasa/pathpool/types"
)

// The names of the input fields that describe a camera edit.
var CameraFields = [6]string{"origin_x", "origin_y", "origin_z", "target_x", "target_y", "target_z"}

// CameraParameters describe the camera placement for a render. Values are
// immutable; an edit always produces a new value.
type CameraParameters struct {
	origin        types.Vec3
	target        types.Vec3
	focusDistance float32
}

// Create camera parameters looking from origin towards target. The focus
// distance is derived from the distance between the two points.
func NewCameraParameters(origin, target types.Vec3) (CameraParameters, error) {
	for _, v := range [2]types.Vec3{origin, target} {
		for _, c := range v {
			if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
				return CameraParameters{}, ErrNonFiniteCoordinate
			}
		}
	}

	focusDistance := origin.Sub(target).Len()
	if focusDistance == 0 {
		return CameraParameters{}, ErrDegenerateCamera
	}

	return CameraParameters{
		origin:        origin,
		target:        target,
		focusDistance: focusDistance,
	}, nil
}

// The default camera placement.
func DefaultCamera() CameraParameters {
	cam, _ := NewCameraParameters(types.XYZ(13, 2, 3), types.XYZ(0, 0, 0))
	return cam
}

func (c CameraParameters) Origin() types.Vec3 {
	return c.origin
}

func (c CameraParameters) Target() types.Vec3 {
	return c.target
}

func (c CameraParameters) FocusDistance() float32 {
	return c.focusDistance
}

// Returns true if c has not been initialized via NewCameraParameters.
func (c CameraParameters) IsZero() bool {
	return c.focusDistance == 0
}

// Export camera parameters to the field map understood by ParseCameraFields.
func (c CameraParameters) Fields() map[string]string {
	out := make(map[string]string, len(CameraFields))
	for idx, name := range CameraFields {
		v := c.origin
		if idx >= 3 {
			v = c.target
		}
		out[name] = strconv.FormatFloat(float64(v[idx%3]), 'g', -1, 32)
	}
	return out
}

func (c CameraParameters) String() string {
	return fmt.Sprintf(
		"origin (%3.3f, %3.3f, %3.3f) target (%3.3f, %3.3f, %3.3f) focus %3.3f",
		c.origin[0], c.origin[1], c.origin[2],
		c.target[0], c.target[1], c.target[2],
		c.focusDistance,
	)
}

// Build camera parameters from the six scalar UI fields. The lookup function
// returns the raw field value and whether the field was supplied at all.
func ParseCameraFields(lookup func(name string) (string, bool)) (CameraParameters, error) {
	var values [6]float32
	for idx, name := range CameraFields {
		raw, ok := lookup(name)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			return CameraParameters{}, &FieldError{Field: name, Err: ErrMissingField}
		}

		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return CameraParameters{}, &FieldError{Field: name, Err: ErrMalformedField}
		}
		values[idx] = float32(v)
	}

	return NewCameraParameters(
		types.XYZ(values[0], values[1], values[2]),
		types.XYZ(values[3], values[4], values[5]),
	)
}

// Directions for moving the camera relative to its view direction.
type CameraDirection uint8

const (
	Forward CameraDirection = iota
	Backward
	Left
	Right
)

// Translate both the origin and the target along dir. The focus distance is
// preserved.
func (c CameraParameters) Move(dir CameraDirection, amount float32) CameraParameters {
	if c.IsZero() {
		return c
	}

	forward := c.target.Sub(c.origin).Normalize()
	var delta types.Vec3
	switch dir {
	case Forward:
		delta = forward.Mul(amount)
	case Backward:
		delta = forward.Mul(-amount)
	case Left, Right:
		right := forward.Cross(types.XYZ(0, 1, 0)).Normalize()
		if dir == Left {
			amount = -amount
		}
		delta = right.Mul(amount)
	}

	return CameraParameters{
		origin:        c.origin.Add(delta),
		target:        c.target.Add(delta),
		focusDistance: c.focusDistance,
	}
}
