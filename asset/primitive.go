package asset

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/geom"
)

// NewSphereModel builds a single-bone model holding a UV sphere mesh.
func NewSphereModel(name string, radius float32, stacks, slices int) (*Model, error) {
	faces, err := geom.Sphere(radius, stacks, slices)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't build sphere %q", name)
	}

	part := NewMeshPart("")
	for _, f := range faces {
		part.AddFace(f.Positions, f.Normals, f.UVs)
	}
	mesh := NewMesh(name)
	mesh.AddPart(part)

	m := NewModel(name)
	if _, err := m.AddBone(NoBone, name, mgl32.Ident4(), mesh); err != nil {
		return nil, err
	}
	return m, nil
}
