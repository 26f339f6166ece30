package cpu

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/achilleasa/pathpool/types"
)

// Seed for the scene layout. It is shared by every renderer instance so all
// workers sample the same world.
const worldSeed = 1232

// Half-width of the grid of small spheres.
const gridExtent = 11

type materialType uint8

const (
	lambertian materialType = iota
	metal
	dielectric
)

type material struct {
	typ    materialType
	albedo types.Vec3
	fuzz   float32
	ior    float32
}

type sphere struct {
	center types.Vec3
	radius float32
	mat    *material
}

type hitRecord struct {
	point     types.Vec3
	normal    types.Vec3
	t         float32
	frontFace bool
	mat       *material
}

func (s *sphere) hit(r ray, tMin, tMax float32, rec *hitRecord) bool {
	oc := r.origin.Sub(s.center)
	a := r.dir.LenSq()
	halfB := oc.Dot(r.dir)
	c := oc.LenSq() - s.radius*s.radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return false
	}
	sqrtd := float32(math.Sqrt(float64(discriminant)))

	root := (-halfB - sqrtd) / a
	if root < tMin || tMax < root {
		root = (-halfB + sqrtd) / a
		if root < tMin || tMax < root {
			return false
		}
	}

	rec.t = root
	rec.point = r.at(root)
	outward := rec.point.Sub(s.center).Mul(1 / s.radius)
	rec.frontFace = r.dir.Dot(outward) < 0
	if rec.frontFace {
		rec.normal = outward
	} else {
		rec.normal = outward.Neg()
	}
	rec.mat = s.mat
	return true
}

type world []sphere

func (w world) hit(r ray, tMin, tMax float32, rec *hitRecord) bool {
	hitAnything := false
	closest := tMax
	for idx := range w {
		if w[idx].hit(r, tMin, closest, rec) {
			hitAnything = true
			closest = rec.t
		}
	}
	return hitAnything
}

// The world is immutable once built and shared by all renderers.
var sharedWorld = sync.OnceValue(func() *bvh {
	return buildBVH(randomWorld())
})

// Build the sphere field: a large ground sphere, a grid of small randomly
// textured spheres and three large feature spheres.
func randomWorld() world {
	rng := rand.New(rand.NewPCG(worldSeed, worldSeed))
	w := world{
		{center: types.XYZ(0, -1000, 0), radius: 1000, mat: &material{typ: lambertian, albedo: types.XYZ(0.5, 0.5, 0.5)}},
	}

	randVec := func(lo, hi float32) types.Vec3 {
		return types.XYZ(lo+(hi-lo)*rng.Float32(), lo+(hi-lo)*rng.Float32(), lo+(hi-lo)*rng.Float32())
	}

	for a := -gridExtent; a < gridExtent; a++ {
		for b := -gridExtent; b < gridExtent; b++ {
			choose := rng.Float32()
			center := types.XYZ(float32(a)+0.9*rng.Float32(), 0.2, float32(b)+0.9*rng.Float32())
			if center.Sub(types.XYZ(4, 0.2, 0)).Len() <= 0.9 {
				continue
			}

			var mat *material
			switch {
			case choose < 0.8:
				mat = &material{typ: lambertian, albedo: randVec(0, 1).MulVec(randVec(0, 1))}
			case choose < 0.95:
				mat = &material{typ: metal, albedo: randVec(0.5, 1), fuzz: 0.5 * rng.Float32()}
			default:
				mat = &material{typ: dielectric, ior: 1.5}
			}
			w = append(w, sphere{center: center, radius: 0.2, mat: mat})
		}
	}

	return append(w,
		sphere{center: types.XYZ(0, 1, 0), radius: 1, mat: &material{typ: dielectric, ior: 1.5}},
		sphere{center: types.XYZ(-4, 1, 0), radius: 1, mat: &material{typ: lambertian, albedo: types.XYZ(0.4, 0.2, 0.1)}},
		sphere{center: types.XYZ(4, 1, 0), radius: 1, mat: &material{typ: metal, albedo: types.XYZ(0.7, 0.6, 0.5)}},
	)
}

// Scatter an incoming ray. Returns false if the ray was absorbed.
func (m *material) scatter(in ray, rec *hitRecord, rng *rand.Rand) (ray, types.Vec3, bool) {
	switch m.typ {
	case metal:
		reflected := in.dir.Normalize().Reflect(rec.normal)
		out := ray{origin: rec.point, dir: reflected.Add(randomInUnitSphere(rng).Mul(m.fuzz))}
		return out, m.albedo, out.dir.Dot(rec.normal) > 0
	case dielectric:
		ratio := m.ior
		if rec.frontFace {
			ratio = 1.0 / m.ior
		}
		unitDir := in.dir.Normalize()
		cosTheta := float32(math.Min(float64(unitDir.Neg().Dot(rec.normal)), 1.0))
		sinTheta := float32(math.Sqrt(float64(1.0 - cosTheta*cosTheta)))

		var dir types.Vec3
		if ratio*sinTheta > 1.0 || reflectance(cosTheta, ratio) > rng.Float32() {
			dir = unitDir.Reflect(rec.normal)
		} else {
			dir = unitDir.Refract(rec.normal, ratio)
		}
		return ray{origin: rec.point, dir: dir}, types.XYZ(1, 1, 1), true
	default:
		dir := rec.normal.Add(randomUnitVector(rng))
		if dir.NearZero() {
			dir = rec.normal
		}
		return ray{origin: rec.point, dir: dir}, m.albedo, true
	}
}

// Schlick's approximation for reflectance.
func reflectance(cosine, refIdx float32) float32 {
	r0 := (1 - refIdx) / (1 + refIdx)
	r0 = r0 * r0
	return r0 + (1-r0)*float32(math.Pow(float64(1-cosine), 5))
}
