// Package cpu provides a reference path tracer that renders a sphere field
// on the CPU. It is intentionally simple; one instance is driven by exactly
// one pool worker.
package cpu

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/achilleasa/pathpool/scene"
	"github.com/achilleasa/pathpool/tracer"
	"github.com/achilleasa/pathpool/types"
)

var (
	ErrInvalidFrameDims = errors.New("cpu tracer: frame dimensions must be at least 2x2")
	ErrInvalidCamera    = errors.New("cpu tracer: invalid camera parameters")
)

// Offset for secondary rays to avoid self intersection.
const hitEpsilon = 0.001

var (
	skyHorizon = types.XYZ(1.0, 1.0, 1.0)
	skyZenith  = types.XYZ(0.5, 0.7, 1.0)
)

type Renderer struct {
	frameW, frameH uint32
	seed           uint32

	world  *bvh
	camera camera
	buffer []uint8
}

// Ensure Renderer satisfies the tracer capability interface.
var _ tracer.Renderer = (*Renderer)(nil)

// Create a new renderer using the default camera. The signature matches
// tracer.Factory.
func NewRenderer(frameW, frameH, seed uint32) (tracer.Renderer, error) {
	if frameW < 2 || frameH < 2 {
		return nil, ErrInvalidFrameDims
	}

	r := &Renderer{
		frameW: frameW,
		frameH: frameH,
		seed:   seed,
		world:  sharedWorld(),
		buffer: make([]uint8, frameW*frameH*4),
	}
	if err := r.Reset(scene.DefaultCamera()); err != nil {
		return nil, err
	}

	return r, nil
}

// Reconfigure the camera.
func (r *Renderer) Reset(params scene.CameraParameters) error {
	if params.IsZero() {
		return ErrInvalidCamera
	}
	r.camera = newCamera(params, float32(r.frameW)/float32(r.frameH))
	return nil
}

// Render one contribution with samplesPerPixel rays per pixel. The returned
// buffer is reused by the next call.
func (r *Renderer) RenderIncrement(samplesPerPixel, numBounces, seed uint32) ([]uint8, error) {
	if samplesPerPixel == 0 {
		samplesPerPixel = 1
	}

	rng := rand.New(rand.NewPCG(uint64(r.seed), uint64(seed)))
	scale := 1.0 / float32(samplesPerPixel)
	invW := 1.0 / float32(r.frameW-1)
	invH := 1.0 / float32(r.frameH-1)

	offset := 0
	for y := uint32(0); y < r.frameH; y++ {
		// Row 0 is the top of the image
		j := float32(r.frameH - 1 - y)
		for x := uint32(0); x < r.frameW; x++ {
			var color types.Vec3
			for s := uint32(0); s < samplesPerPixel; s++ {
				u := (float32(x) + rng.Float32()) * invW
				v := (j + rng.Float32()) * invH
				color = color.Add(r.rayColor(r.camera.ray(u, v, rng), numBounces, rng))
			}

			color = color.Mul(scale)
			r.buffer[offset+0] = toChannel(color[0])
			r.buffer[offset+1] = toChannel(color[1])
			r.buffer[offset+2] = toChannel(color[2])
			r.buffer[offset+3] = 255
			offset += 4
		}
	}

	return r.buffer, nil
}

func (r *Renderer) rayColor(in ray, depth uint32, rng *rand.Rand) types.Vec3 {
	throughput := types.XYZ(1, 1, 1)
	var rec hitRecord
	for ; depth > 0; depth-- {
		if !r.world.hit(in, hitEpsilon, math.MaxFloat32, &rec) {
			t := 0.5 * (in.dir.Normalize()[1] + 1.0)
			return throughput.MulVec(skyHorizon.Lerp(skyZenith, t))
		}

		scattered, attenuation, ok := rec.mat.scatter(in, &rec, rng)
		if !ok {
			return types.Vec3{}
		}
		throughput = throughput.MulVec(attenuation)
		in = scattered
	}

	return types.Vec3{}
}

// Gamma correct (gamma 2) and quantize a linear color channel.
func toChannel(c float32) uint8 {
	// also catches NaN
	if !(c > 0) {
		return 0
	}
	g := math.Sqrt(float64(c))
	return uint8(256 * math.Min(g, 0.999))
}
