// Package gltf reads and writes binary glTF 2.0 (.glb) models.
//
// Bones map to nodes with translation, rotation and scale. Every mesh part
// becomes a triangle primitive. Materials and their base color textures are
// written when the context carries a material list, and merged into it on
// import.
package gltf

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils"
)

var info = pipeline.Info{
	CodecName: "glTF",
	Exts:      []string{".glb"},
	AssetKind: asset.KindModel,
	Handed:    asset.RightHanded,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}

var zeroMatrix [16]float32

func nodeTransform(matrix [16]float32, t [3]float32, r [4]float32, s [3]float32) mgl32.Mat4 {
	if matrix != zeroMatrix && mgl32.Mat4(matrix) != mgl32.Ident4() {
		return mgl32.Mat4(matrix)
	}
	q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
	if q.Len() == 0 {
		q = mgl32.QuatIdent()
	}
	if s == [3]float32{} {
		s = [3]float32{1, 1, 1}
	}
	return mgl32.Translate3D(t[0], t[1], t[2]).Mul4(q.Normalize().Mat4()).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

func nodeTRS(m mgl32.Mat4) (t [3]float32, r [4]float32, s [3]float32) {
	translation, rotation, scale := utils.DecomposeMatrix(m)
	return translation, rotation.V.Vec4(rotation.W), scale
}
