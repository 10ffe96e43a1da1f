package asset

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/assetpipe/geom"
)

type Mesh struct {
	Name  string
	Parts []*MeshPart
	// Bone is the owning bone, NoBone while detached.
	Bone BoneHandle

	bbox *geom.BoundingBox
}

func NewMesh(name string) *Mesh {
	return &Mesh{Name: name, Bone: NoBone}
}

func (m *Mesh) AddPart(p *MeshPart) *MeshPart {
	m.Parts = append(m.Parts, p)
	return p
}

// BoundingBox computes the box on first use only. Call RecalculateBoundingBox
// after changing vertex positions.
func (m *Mesh) BoundingBox() geom.BoundingBox {
	if m.bbox == nil {
		return m.RecalculateBoundingBox()
	}
	return *m.bbox
}

func (m *Mesh) RecalculateBoundingBox() geom.BoundingBox {
	b := geom.EmptyBoundingBox()
	for _, p := range m.Parts {
		for i := range p.Vertices {
			b.Extend(p.Vertices[i].Position)
		}
	}
	if b.Empty {
		b = geom.BoundingBox{Empty: true}
	}
	m.bbox = &b
	return b
}

func (m *Mesh) Translate(offset mgl32.Vec3) {
	for _, p := range m.Parts {
		p.Translate(offset)
	}
}

func (m *Mesh) FlipUVs() {
	for _, p := range m.Parts {
		p.FlipUVs()
	}
}

func (m *Mesh) FaceCount() int {
	n := 0
	for _, p := range m.Parts {
		n += p.FaceCount()
	}
	return n
}

func (m *Mesh) VertexCount() int {
	n := 0
	for _, p := range m.Parts {
		n += len(p.Vertices)
	}
	return n
}

func (m *Mesh) Validate() error {
	for i, p := range m.Parts {
		if err := p.Validate(); err != nil {
			return Validationf("mesh", "%q part %d: %v", m.Name, i, err)
		}
	}
	return nil
}

func (m *Mesh) clone() (*Mesh, error) {
	c := &Mesh{Name: m.Name, Bone: m.Bone, Parts: make([]*MeshPart, len(m.Parts))}
	for i, p := range m.Parts {
		cp, err := p.clone()
		if err != nil {
			return nil, err
		}
		c.Parts[i] = cp
	}
	if m.bbox != nil {
		b := *m.bbox
		c.bbox = &b
	}
	return c, nil
}
