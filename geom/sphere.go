package geom

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const (
	DefaultSphereStacks = 15
	DefaultSphereSlices = 15
)

type Face struct {
	Positions [3]mgl32.Vec3
	Normals   [3]mgl32.Vec3
	UVs       [3]mgl32.Vec2
}

func sphereNormal(theta, phi float32) mgl32.Vec3 {
	return mgl32.Vec3{
		math32.Sin(theta) * math32.Cos(phi),
		math32.Cos(theta),
		math32.Sin(theta) * math32.Sin(phi),
	}
}

func sphereUV(n mgl32.Vec3) mgl32.Vec2 {
	return mgl32.Vec2{
		0.5 + math32.Atan2(-n.Z(), n.X())/(2*math32.Pi),
		0.5 - math32.Asin(mgl32.Clamp(n.Y(), -1, 1))/math32.Pi,
	}
}

// SphereFaceCount is the number of triangles Sphere produces:
// pole bands have one triangle per slice, every other band two.
func SphereFaceCount(stacks, slices int) int {
	return stacks*slices*2 - 2*slices
}

// Sphere tessellates a UV sphere centered at origin with Y as the polar axis.
func Sphere(radius float32, stacks, slices int) ([]Face, error) {
	if stacks < 2 {
		return nil, errors.Errorf("Sphere needs at least 2 stacks, got %d", stacks)
	}
	if slices < 3 {
		return nil, errors.Errorf("Sphere needs at least 3 slices, got %d", slices)
	}
	if radius <= 0 {
		return nil, errors.Errorf("Sphere radius must be positive, got %v", radius)
	}

	faces := make([]Face, 0, SphereFaceCount(stacks, slices))
	face := func(n ...mgl32.Vec3) {
		var f Face
		for i := 0; i < 3; i++ {
			f.Normals[i] = n[i]
			f.Positions[i] = n[i].Mul(radius)
			f.UVs[i] = sphereUV(n[i])
		}
		faces = append(faces, f)
	}

	for t := 0; t < stacks; t++ {
		theta1 := float32(t) / float32(stacks) * math32.Pi
		theta2 := float32(t+1) / float32(stacks) * math32.Pi

		for p := 0; p < slices; p++ {
			phi1 := float32(p) / float32(slices) * 2 * math32.Pi
			phi2 := float32(p+1) / float32(slices) * 2 * math32.Pi

			n1 := sphereNormal(theta1, phi1)
			n2 := sphereNormal(theta1, phi2)
			n3 := sphereNormal(theta2, phi2)
			n4 := sphereNormal(theta2, phi1)

			switch {
			case t == 0:
				face(n1, n3, n4)
			case t+1 == stacks:
				face(n3, n1, n2)
			default:
				face(n1, n2, n4)
				face(n2, n3, n4)
			}
		}
	}

	return faces, nil
}
