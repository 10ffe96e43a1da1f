// Package cnt reads and writes .cnt model hierarchies.
//
// A file is a little-endian sequence of chunks, each a u32 id and a u32 body
// size. The header chunk is first and the end chunk last:
//
//	HEAD  version u32, model name (u16 length + bytes)
//	MESH  name, part count u32, per part: material name, vertex count u32,
//	      vertices (14 floats each), index count u32, indices u32
//	BONE  name [64]byte, parent i32, transform 16 floats column-major,
//	      mesh index i32 (-1 for none)
//	END   empty
//
// Bones are stored root-first so a parent always precedes its children.
// Names are encoded with the configured charmap.
package cnt

import (
	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

const (
	ChunkHead = 0x44414548 // "HEAD"
	ChunkMesh = 0x4853454D // "MESH"
	ChunkBone = 0x454E4F42 // "BONE"
	ChunkEnd  = 0x00444E45 // "END\0"

	Version       = 1
	BoneNameSize  = 64
	vertexSize    = asset.VertexStride * 4
	boneChunkSize = BoneNameSize + 4 + 16*4 + 4
)

var info = pipeline.Info{
	CodecName: "CNT",
	Exts:      []string{".cnt"},
	AssetKind: asset.KindModel,
	Handed:    asset.LeftHanded,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}
