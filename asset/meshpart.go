package asset

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

// MeshPart is a triangle list over its own vertex array.
type MeshPart struct {
	MaterialName string
	Vertices     []Vertex
	Indices      []uint32

	dirty bool
}

func NewMeshPart(material string) *MeshPart {
	return &MeshPart{MaterialName: material, dirty: true}
}

// AddFace appends three new vertices and the triangle referencing them.
func (p *MeshPart) AddFace(positions, normals [3]mgl32.Vec3, uvs [3]mgl32.Vec2) {
	base := uint32(len(p.Vertices))
	for i := 0; i < 3; i++ {
		p.Vertices = append(p.Vertices, NewVertex(positions[i], normals[i], uvs[i]))
	}
	p.Indices = append(p.Indices, base, base+1, base+2)
	p.dirty = true
}

func (p *MeshPart) AddVertex(v Vertex) uint32 {
	p.Vertices = append(p.Vertices, v)
	p.dirty = true
	return uint32(len(p.Vertices) - 1)
}

func (p *MeshPart) AddTriangle(a, b, c uint32) {
	p.Indices = append(p.Indices, a, b, c)
	p.dirty = true
}

func (p *MeshPart) FaceCount() int { return len(p.Indices) / 3 }

func (p *MeshPart) Validate() error {
	if len(p.Indices)%3 != 0 {
		return Validationf("meshpart", "index count %d is not a multiple of 3", len(p.Indices))
	}
	for i, idx := range p.Indices {
		if int(idx) >= len(p.Vertices) {
			return Validationf("meshpart", "index %d at %d out of range (%d vertices)", idx, i, len(p.Vertices))
		}
	}
	return nil
}

// VertexBuffer returns interleaved position, normal, uv, color (VertexStride floats each).
func (p *MeshPart) VertexBuffer() []float32 {
	buf := make([]float32, 0, len(p.Vertices)*VertexStride)
	for _, v := range p.Vertices {
		buf = v.appendTo(buf)
	}
	return buf
}

func (p *MeshPart) IndexBuffer() []uint32 {
	buf := make([]uint32, len(p.Indices))
	copy(buf, p.Indices)
	return buf
}

// Dirty reports whether geometry changed since the last ClearDirty.
func (p *MeshPart) Dirty() bool { return p.dirty }
func (p *MeshPart) MarkDirty()  { p.dirty = true }
func (p *MeshPart) ClearDirty() { p.dirty = false }

func (p *MeshPart) Positions() []mgl32.Vec3 {
	positions := make([]mgl32.Vec3, len(p.Vertices))
	for i := range p.Vertices {
		positions[i] = p.Vertices[i].Position
	}
	return positions
}

func (p *MeshPart) Translate(offset mgl32.Vec3) {
	for i := range p.Vertices {
		p.Vertices[i].Position = p.Vertices[i].Position.Add(offset)
	}
	p.dirty = true
}

// Transform applies m to positions and its normal matrix to normals.
func (p *MeshPart) Transform(m mgl32.Mat4) {
	normalMat := m.Mat3().Inv().Transpose()
	for i := range p.Vertices {
		v := &p.Vertices[i]
		v.Position = mgl32.TransformCoordinate(v.Position, m)
		if n := normalMat.Mul3x1(v.Normal); n.Len() > 0 {
			v.Normal = n.Normalize()
		}
	}
	p.dirty = true
}

func (p *MeshPart) FlipWinding() {
	for i := 0; i+2 < len(p.Indices); i += 3 {
		p.Indices[i+1], p.Indices[i+2] = p.Indices[i+2], p.Indices[i+1]
	}
	p.dirty = true
}

// FlipUVs inverts the v texture coordinate.
func (p *MeshPart) FlipUVs() {
	for i := range p.Vertices {
		p.Vertices[i].UV[1] = 1 - p.Vertices[i].UV[1]
	}
	p.dirty = true
}

func (p *MeshPart) clone() (*MeshPart, error) {
	c := &MeshPart{dirty: true}
	if err := copier.CopyWithOption(c, p, copier.Option{DeepCopy: true}); err != nil {
		return nil, errors.Wrapf(err, "Can't copy mesh part")
	}
	return c, nil
}
