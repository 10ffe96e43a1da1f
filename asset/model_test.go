package asset

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeMesh(name string, min, max mgl32.Vec3) *Mesh {
	part := NewMeshPart("steel")
	corners := [8]mgl32.Vec3{}
	for i := range corners {
		for axis := 0; axis < 3; axis++ {
			if i&(1<<uint(axis)) != 0 {
				corners[i][axis] = max[axis]
			} else {
				corners[i][axis] = min[axis]
			}
		}
	}
	up := mgl32.Vec3{0, 1, 0}
	for _, tri := range [][3]int{{0, 1, 2}, {1, 3, 2}, {4, 6, 5}, {5, 6, 7}} {
		part.AddFace(
			[3]mgl32.Vec3{corners[tri[0]], corners[tri[1]], corners[tri[2]]},
			[3]mgl32.Vec3{up, up, up},
			[3]mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}})
	}
	mesh := NewMesh(name)
	mesh.AddPart(part)
	return mesh
}

func chain(t *testing.T) (*Model, BoneHandle, BoneHandle, BoneHandle) {
	m := NewModel("chain")
	root, err := m.AddBone(NoBone, "root", mgl32.Translate3D(1, 2, 3), nil)
	require.NoError(t, err)
	a, err := m.AddBone(root, "a", mgl32.HomogRotate3DY(0.7).Mul4(mgl32.Scale3D(2, 2, 2)), nil)
	require.NoError(t, err)
	b, err := m.AddBone(a, "b", mgl32.Translate3D(0, 0, 5).Mul4(mgl32.HomogRotate3DX(0.3)),
		cubeMesh("b_mesh", mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{3, 1, 1}))
	require.NoError(t, err)
	return m, root, a, b
}

func TestHierarchyInvariant(t *testing.T) {
	m, root, a, b := chain(t)
	require.NoError(t, m.CheckHierarchy(1e-5))

	assert.Equal(t, m.Bone(root).Transform, m.Bone(root).CombinedTransform)
	assert.True(t, m.Bone(b).CombinedTransform.ApproxEqualThreshold(
		m.Bone(a).CombinedTransform.Mul4(m.Bone(b).Transform), 1e-5))
	assert.Equal(t, []BoneHandle{a, root}, m.Ancestors(b))

	require.NoError(t, m.SetTransform(root, mgl32.Translate3D(-4, 0, 0)))
	require.NoError(t, m.CheckHierarchy(1e-5))
}

func TestRemoveBoneKeepsChildTransform(t *testing.T) {
	m, root, a, b := chain(t)
	before := m.Bone(b).CombinedTransform
	worldBefore := m.WorldPositions(b)

	removed, err := m.RemoveBone(a)
	require.NoError(t, err)
	assert.Equal(t, "a", removed.Name)
	assert.Nil(t, m.Bone(a))

	bone := m.Bone(b)
	require.NotNil(t, bone, "handles of other bones must survive removal")
	assert.Equal(t, root, bone.Parent)
	assert.Equal(t, []BoneHandle{b}, m.Bone(root).Children)
	assert.True(t, bone.CombinedTransform.ApproxEqualThreshold(before, 1e-5),
		"combined transform changed:\n%v\n%v", before, bone.CombinedTransform)

	worldAfter := m.WorldPositions(b)
	require.Len(t, worldAfter, len(worldBefore))
	for i := range worldBefore {
		assert.True(t, worldBefore[i].ApproxEqualThreshold(worldAfter[i], 1e-4))
	}
	require.NoError(t, m.CheckHierarchy(1e-5))
	assert.Equal(t, 2, m.BoneCount())
}

func TestRemoveRootPromotesChildren(t *testing.T) {
	m, root, a, b := chain(t)
	before := m.Bone(a).CombinedTransform

	_, err := m.RemoveBone(root)
	require.NoError(t, err)
	assert.Equal(t, []BoneHandle{a}, m.Roots())
	assert.True(t, m.Bone(a).IsRoot())
	assert.True(t, m.Bone(a).CombinedTransform.ApproxEqualThreshold(before, 1e-5))
	require.NoError(t, m.CheckHierarchy(1e-5))

	_, err = m.RemoveBone(b)
	require.NoError(t, err)
	assert.Empty(t, m.Meshes, "mesh of removed bone must leave the model")
}

func TestRemoveBoneInvalid(t *testing.T) {
	m, _, a, _ := chain(t)
	_, err := m.RemoveBone(42)
	assert.True(t, IsValidation(err))
	_, err = m.RemoveBone(a)
	require.NoError(t, err)
	_, err = m.RemoveBone(a)
	assert.True(t, IsValidation(err), "double removal must be rejected")
	assert.Equal(t, 2, m.BoneCount())
}

func TestRemoveBones(t *testing.T) {
	m, root, a, b := chain(t)
	before := m.Bone(b).CombinedTransform

	removed, err := m.RemoveBones([]BoneHandle{root, a})
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, "a", removed[0].Name, "deeper bones go first")
	assert.Equal(t, []BoneHandle{b}, m.Roots())
	assert.True(t, m.Bone(b).CombinedTransform.ApproxEqualThreshold(before, 1e-5))
	require.NoError(t, m.CheckHierarchy(1e-5))

	_, err = m.RemoveBones([]BoneHandle{b, 42})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, m.BoneCount())
}

func TestRemoveBonesUnderSingularParent(t *testing.T) {
	m := NewModel("flat")
	root, _ := m.AddBone(NoBone, "root", mgl32.Scale3D(0, 1, 1), nil)
	leaf, _ := m.AddBone(root, "leaf", mgl32.Ident4(), nil)
	inner, _ := m.AddBone(root, "inner", mgl32.Ident4(), nil)
	_, err := m.AddBone(inner, "kept", mgl32.Ident4(), nil)
	require.NoError(t, err)

	_, err = m.RemoveBones([]BoneHandle{leaf, inner})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 4, m.BoneCount(), "nothing may be removed when one bone is rejected")
	assert.NotNil(t, m.Bone(leaf))

	// a bone whose descendants all go with it hands nothing over
	kept := m.FindBone("kept").Handle
	removed, err := m.RemoveBones([]BoneHandle{leaf, inner, kept})
	require.NoError(t, err)
	assert.Len(t, removed, 3)
	assert.Equal(t, 1, m.BoneCount())
}

func TestMungeIdempotent(t *testing.T) {
	m, _, _, b := chain(t)
	world := m.WorldPositions(b)

	offset, err := m.Munge(b)
	require.NoError(t, err)
	assert.True(t, offset.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-5), "offset %v", offset)
	assert.True(t, m.Bone(b).Mesh.BoundingBox().Center.ApproxEqualThreshold(mgl32.Vec3{}, 1e-5))

	once := m.WorldPositions(b)
	for i := range world {
		assert.True(t, world[i].ApproxEqualThreshold(once[i], 1e-4), "%v != %v", world[i], once[i])
	}

	offset, err = m.Munge(b)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{}, offset)
	twice := m.WorldPositions(b)
	for i := range once {
		assert.True(t, once[i].ApproxEqualThreshold(twice[i], 1e-5))
	}
	require.NoError(t, m.CheckHierarchy(1e-5))
}

func TestMungeKeepsChildren(t *testing.T) {
	m := NewModel("pivot")
	body, err := m.AddBone(NoBone, "body", mgl32.Ident4(), cubeMesh("body", mgl32.Vec3{2, 2, 2}, mgl32.Vec3{4, 4, 4}))
	require.NoError(t, err)
	wheel, err := m.AddBone(body, "wheel", mgl32.Translate3D(1, 0, 0), nil)
	require.NoError(t, err)
	before := m.Bone(wheel).CombinedTransform

	_, err = m.Munge(body)
	require.NoError(t, err)
	assert.True(t, m.Bone(wheel).CombinedTransform.ApproxEqualThreshold(before, 1e-5))
}

func TestMungeWithoutMesh(t *testing.T) {
	m, root, _, _ := chain(t)
	_, err := m.Munge(root)
	assert.True(t, IsValidation(err))
}

func TestMeshBoundingBox(t *testing.T) {
	mesh := cubeMesh("box", mgl32.Vec3{-2, 0, 1}, mgl32.Vec3{4, 3, 5})
	box := mesh.BoundingBox()
	assert.Equal(t, mgl32.Vec3{-2, 0, 1}, box.Min)
	assert.Equal(t, mgl32.Vec3{4, 3, 5}, box.Max)
	assert.Equal(t, mgl32.Vec3{1, 1.5, 3}, box.Center)

	mesh.Translate(mgl32.Vec3{10, 0, 0})
	assert.Equal(t, box, mesh.BoundingBox(), "bounding box must only change on explicit recalculation")
	assert.Equal(t, mgl32.Vec3{8, 0, 1}, mesh.RecalculateBoundingBox().Min)
}

func TestMeshPartBuffers(t *testing.T) {
	p := NewMeshPart("")
	p.AddFace(
		[3]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[3]mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[3]mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}})
	require.NoError(t, p.Validate())
	assert.Len(t, p.VertexBuffer(), 3*VertexStride)
	assert.Equal(t, []uint32{0, 1, 2}, p.IndexBuffer())
	assert.Equal(t, White, p.Vertices[0].Color)

	p.ClearDirty()
	p.FlipUVs()
	assert.True(t, p.Dirty())
	assert.Equal(t, float32(1), p.Vertices[0].UV[1])

	p.Indices = append(p.Indices, 7)
	assert.True(t, IsValidation(p.Validate()))
	p.Indices = append(p.Indices, 0, 1)
	assert.True(t, IsValidation(p.Validate()))
}

func TestFlipAxisZTwiceIsIdentity(t *testing.T) {
	m, _, _, b := chain(t)
	world := m.WorldPositions(b)
	indices := append([]uint32(nil), m.Bone(b).Mesh.Parts[0].Indices...)

	m.FlipAxisZ()
	flipped := m.WorldPositions(b)
	for i := range world {
		assert.InDelta(t, -world[i].Z(), flipped[i].Z(), 1e-4)
		assert.InDelta(t, world[i].X(), flipped[i].X(), 1e-4)
	}

	m.FlipAxisZ()
	again := m.WorldPositions(b)
	for i := range world {
		assert.True(t, world[i].ApproxEqualThreshold(again[i], 1e-4))
	}
	assert.Equal(t, indices, m.Bone(b).Mesh.Parts[0].Indices)
}

func TestCloneIsIndependent(t *testing.T) {
	m, root, _, b := chain(t)
	m.Documents[DocumentSetup] = NewVehicleSetup()

	c, err := m.Clone()
	require.NoError(t, err)
	require.NoError(t, c.CheckHierarchy(1e-5))

	c.ApplyRootTransform(mgl32.Scale3D(3, 3, 3))
	c.Bone(b).Mesh.Translate(mgl32.Vec3{1, 1, 1})
	require.NoError(t, c.Rename(root, "renamed"))

	assert.Equal(t, "root", m.Bone(root).Name)
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), m.Bone(root).Transform)
	assert.NotEqual(t, m.Bone(b).Mesh.Parts[0].Vertices[0].Position, c.Bone(b).Mesh.Parts[0].Vertices[0].Position)
	assert.Len(t, c.Meshes, 1)
	assert.Same(t, c.Meshes[0], c.Bone(b).Mesh)
	assert.Same(t, m.Documents[DocumentSetup], c.Documents[DocumentSetup])
}

func TestSphereModel(t *testing.T) {
	m, err := NewSphereModel("sky", 1, 15, 15)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	assert.Equal(t, 15*15*2-2*15, m.Meshes[0].FaceCount())
	require.NoError(t, m.Validate())
}

func TestAddBoneValidation(t *testing.T) {
	m := NewModel("x")
	_, err := m.AddBone(5, "orphan", mgl32.Ident4(), nil)
	assert.True(t, IsValidation(err))

	mesh := NewMesh("shared")
	_, err = m.AddBone(NoBone, "first", mgl32.Ident4(), mesh)
	require.NoError(t, err)
	_, err = m.AddBone(NoBone, "second", mgl32.Ident4(), mesh)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, m.BoneCount())
}

func TestAddBoneHandleLimit(t *testing.T) {
	m := NewModel("huge")
	m.bones = make([]*Bone, MaxBones-1)
	h, err := m.AddBone(NoBone, "last", mgl32.Ident4(), nil)
	require.NoError(t, err)
	assert.Equal(t, BoneHandle(MaxBones-1), h)

	_, err = m.AddBone(h, "one too many", mgl32.Ident4(), nil)
	assert.True(t, IsValidation(err))
	assert.Len(t, m.bones, MaxBones)
}
