package geom

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBox is an axis-aligned box. Center is kept in sync with Min/Max
// by every constructor and mutator.
type BoundingBox struct {
	Min    mgl32.Vec3
	Max    mgl32.Vec3
	Center mgl32.Vec3
	Empty  bool
}

func EmptyBoundingBox() BoundingBox {
	inf := math32.Inf(1)
	return BoundingBox{
		Min:   mgl32.Vec3{inf, inf, inf},
		Max:   mgl32.Vec3{-inf, -inf, -inf},
		Empty: true,
	}
}

// NewBoundingBox bounds all points. No points yields an empty box located at origin.
func NewBoundingBox(points []mgl32.Vec3) BoundingBox {
	b := EmptyBoundingBox()
	for _, p := range points {
		b.Extend(p)
	}
	if b.Empty {
		return BoundingBox{Empty: true}
	}
	return b
}

func (b *BoundingBox) Extend(p mgl32.Vec3) {
	if b.Empty {
		b.Min, b.Max, b.Empty = p, p, false
	} else {
		for i := 0; i < 3; i++ {
			b.Min[i] = math32.Min(b.Min[i], p[i])
			b.Max[i] = math32.Max(b.Max[i], p[i])
		}
	}
	b.Center = b.Min.Add(b.Max).Mul(0.5)
}

func (b *BoundingBox) Merge(o BoundingBox) {
	if o.Empty {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

func (b BoundingBox) Size() mgl32.Vec3 {
	if b.Empty {
		return mgl32.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b BoundingBox) Contains(p mgl32.Vec3) bool {
	if b.Empty {
		return false
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Corners returns the 8 box vertices, min corner first.
func (b BoundingBox) Corners() [8]mgl32.Vec3 {
	var c [8]mgl32.Vec3
	for i := range c {
		for axis := 0; axis < 3; axis++ {
			if i&(1<<uint(axis)) != 0 {
				c[i][axis] = b.Max[axis]
			} else {
				c[i][axis] = b.Min[axis]
			}
		}
	}
	return c
}

// Transform returns the axis-aligned box enclosing this box after applying m.
func (b BoundingBox) Transform(m mgl32.Mat4) BoundingBox {
	if b.Empty {
		return b
	}
	corners := b.Corners()
	points := make([]mgl32.Vec3, len(corners))
	for i, c := range corners {
		points[i] = mgl32.TransformCoordinate(c, m)
	}
	return NewBoundingBox(points)
}
