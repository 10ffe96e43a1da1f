// Package assettest builds sample scenes and compares them in tests.
package assettest

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
)

const Tolerance = 1e-4

// Quad returns a two triangle mesh part in the XY plane.
func Quad(material string, size float32) *asset.MeshPart {
	p := asset.NewMeshPart(material)
	n := mgl32.Vec3{0, 0, 1}
	corners := [4]mgl32.Vec3{{0, 0, 0}, {size, 0, 0}, {size, size, 0}, {0, size, 0}}
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i := range corners {
		p.AddVertex(asset.NewVertex(corners[i], n, uvs[i]))
	}
	p.AddTriangle(0, 1, 2)
	p.AddTriangle(0, 2, 3)
	return p
}

// Car is a small vehicle-like hierarchy:
//
//	car
//	├── body (mesh)
//	│   └── wheel_fl (mesh)
//	└── driver
func Car() *asset.Model {
	m := asset.NewModel("car")
	root, _ := m.AddBone(asset.NoBone, "car", mgl32.Ident4(), nil)

	bodyMesh := asset.NewMesh("body")
	bodyMesh.AddPart(Quad("paint", 2))
	bodyMesh.AddPart(Quad("glass", 1))
	body, _ := m.AddBone(root, "body",
		mgl32.Translate3D(0, 0.5, 0).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(30))), bodyMesh)

	wheelMesh := asset.NewMesh("wheel_fl")
	wheelMesh.AddPart(Quad("tyre", 0.5))
	m.AddBone(body, "wheel_fl", mgl32.Translate3D(1, -0.25, 1.5), wheelMesh)

	m.AddBone(root, "driver", mgl32.Translate3D(-0.4, 0.8, 0.2), nil)
	return m
}

func assertVec(t *testing.T, expected, actual []float32, msg string, args ...interface{}) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], Tolerance, append([]interface{}{msg + " [%d]"}, append(args, i)...)...)
	}
}

// AssertMeshesEqual compares positions, normals, UVs (first two channels)
// and indices part by part.
func AssertMeshesEqual(t *testing.T, expected, actual *asset.Mesh) {
	t.Helper()
	assert.Equal(t, expected.Name, actual.Name)
	require.Len(t, actual.Parts, len(expected.Parts), "mesh %q parts", expected.Name)
	for iPart, ep := range expected.Parts {
		ap := actual.Parts[iPart]
		assert.Equal(t, ep.MaterialName, ap.MaterialName)
		assert.Equal(t, ep.Indices, ap.Indices, "mesh %q part %d indices", expected.Name, iPart)
		require.Len(t, ap.Vertices, len(ep.Vertices))
		for iv := range ep.Vertices {
			ev, av := ep.Vertices[iv], ap.Vertices[iv]
			assertVec(t, ev.Position[:], av.Position[:], "%q position %d", expected.Name, iv)
			assertVec(t, ev.Normal[:], av.Normal[:], "%q normal %d", expected.Name, iv)
			assertVec(t, ev.UV[:2], av.UV[:2], "%q uv %d", expected.Name, iv)
		}
	}
}

// AssertModelsEqual compares hierarchy shape, names, transforms and meshes.
func AssertModelsEqual(t *testing.T, expected, actual *asset.Model) {
	t.Helper()
	eb, ab := expected.Bones(), actual.Bones()
	require.Len(t, ab, len(eb), "bone count")
	for i := range eb {
		assert.Equal(t, eb[i].Name, ab[i].Name)
		assert.Equal(t, len(eb[i].Children), len(ab[i].Children), "children of %q", eb[i].Name)
		if eb[i].Parent == asset.NoBone {
			assert.Equal(t, asset.NoBone, ab[i].Parent)
		} else {
			assert.Equal(t, expected.Bone(eb[i].Parent).Name, actual.Bone(ab[i].Parent).Name)
		}
		assertVec(t, eb[i].Transform[:], ab[i].Transform[:], "%q transform", eb[i].Name)
		assertVec(t, eb[i].CombinedTransform[:], ab[i].CombinedTransform[:], "%q combined", eb[i].Name)
		require.Equal(t, eb[i].Mesh == nil, ab[i].Mesh == nil, "%q mesh presence", eb[i].Name)
		if eb[i].Mesh != nil {
			AssertMeshesEqual(t, eb[i].Mesh, ab[i].Mesh)
		}
	}
	require.NoError(t, actual.CheckHierarchy(Tolerance))
}
