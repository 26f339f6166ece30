package cpu

import (
	"math"
	"math/rand/v2"

	"github.com/achilleasa/pathpool/scene"
	"github.com/achilleasa/pathpool/types"
)

const (
	// Vertical field of view in degrees.
	defaultFOV float32 = 20.0

	// Lens aperture for depth of field.
	defaultAperture float32 = 0.1
)

var worldUp = types.XYZ(0, 1, 0)

type ray struct {
	origin types.Vec3
	dir    types.Vec3
}

func (r ray) at(t float32) types.Vec3 {
	return r.origin.Add(r.dir.Mul(t))
}

// A thin lens camera focused at the target point.
type camera struct {
	origin          types.Vec3
	lowerLeftCorner types.Vec3
	horizontal      types.Vec3
	vertical        types.Vec3
	u, v            types.Vec3
	lensRadius      float32
}

func newCamera(params scene.CameraParameters, aspect float32) camera {
	theta := float64(defaultFOV) * math.Pi / 180.0
	viewportH := float32(2.0 * math.Tan(theta/2.0))
	viewportW := aspect * viewportH

	w := params.Origin().Sub(params.Target()).Normalize()
	u := worldUp.Cross(w).Normalize()
	if u.NearZero() {
		// looking straight up or down; pick another up vector
		u = types.XYZ(0, 0, 1).Cross(w).Normalize()
	}
	v := w.Cross(u)

	focus := params.FocusDistance()
	horizontal := u.Mul(focus * viewportW)
	vertical := v.Mul(focus * viewportH)

	return camera{
		origin:          params.Origin(),
		horizontal:      horizontal,
		vertical:        vertical,
		lowerLeftCorner: params.Origin().Sub(horizontal.Mul(0.5)).Sub(vertical.Mul(0.5)).Sub(w.Mul(focus)),
		u:               u,
		v:               v,
		lensRadius:      defaultAperture / 2,
	}
}

// Generate a ray through the normalized viewport coordinates s, t.
func (c *camera) ray(s, t float32, rng *rand.Rand) ray {
	rd := randomInUnitDisk(rng).Mul(c.lensRadius)
	offset := c.u.Mul(rd[0]).Add(c.v.Mul(rd[1]))
	origin := c.origin.Add(offset)

	return ray{
		origin: origin,
		dir:    c.lowerLeftCorner.Add(c.horizontal.Mul(s)).Add(c.vertical.Mul(t)).Sub(origin),
	}
}

func randomInUnitDisk(rng *rand.Rand) types.Vec3 {
	for {
		p := types.XYZ(2*rng.Float32()-1, 2*rng.Float32()-1, 0)
		if p.LenSq() < 1 {
			return p
		}
	}
}

func randomInUnitSphere(rng *rand.Rand) types.Vec3 {
	for {
		p := types.XYZ(2*rng.Float32()-1, 2*rng.Float32()-1, 2*rng.Float32()-1)
		if p.LenSq() < 1 {
			return p
		}
	}
}

func randomUnitVector(rng *rand.Rand) types.Vec3 {
	return randomInUnitSphere(rng).Normalize()
}
