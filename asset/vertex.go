package asset

import "github.com/go-gl/mathgl/mgl32"

// VertexStride is the number of float32 values per vertex in VertexBuffer.
const VertexStride = 3 + 3 + 4 + 4

var White = mgl32.Vec4{1, 1, 1, 1}

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec4
	Color    mgl32.Vec4
}

func NewVertex(position, normal mgl32.Vec3, uv mgl32.Vec2) Vertex {
	return Vertex{
		Position: position,
		Normal:   normal,
		UV:       mgl32.Vec4{uv[0], uv[1], 0, 0},
		Color:    White,
	}
}

func (v Vertex) appendTo(buf []float32) []float32 {
	buf = append(buf, v.Position[:]...)
	buf = append(buf, v.Normal[:]...)
	buf = append(buf, v.UV[:]...)
	return append(buf, v.Color[:]...)
}
