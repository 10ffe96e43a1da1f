package cnt

import (
	"fmt"
	"log"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils"
)

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := NewFromData(data)
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	pipeline.ToScene(ctx, i, m)
	return m, nil
}

func readVertex(bs *utils.BufStack) asset.Vertex {
	var v asset.Vertex
	v.Position = bs.ReadLVec3()
	v.Normal = bs.ReadLVec3()
	for i := range v.UV {
		v.UV[i] = bs.ReadLF()
	}
	for i := range v.Color {
		v.Color[i] = bs.ReadLF()
	}
	return v
}

func readMesh(bs *utils.BufStack) (*asset.Mesh, error) {
	mesh := asset.NewMesh(bs.ReadLString())
	partCount := bs.ReadCount(12)
	for iPart := 0; iPart < partCount && bs.Err() == nil; iPart++ {
		part := asset.NewMeshPart(bs.ReadLString())

		vertexCount := bs.ReadCount(vertexSize)
		part.Vertices = make([]asset.Vertex, vertexCount)
		for iVertex := range part.Vertices {
			part.Vertices[iVertex] = readVertex(bs)
		}

		indexCount := bs.ReadCount(4)
		part.Indices = make([]uint32, indexCount)
		for iIndex := range part.Indices {
			part.Indices[iIndex] = bs.ReadLU32()
		}
		if bs.Err() != nil {
			break
		}
		if err := part.Validate(); err != nil {
			return nil, err
		}
		mesh.AddPart(part)
	}
	return mesh, bs.VerifySize()
}

// NewFromData parses a whole .cnt file.
func NewFromData(data []byte) (*asset.Model, error) {
	bs := utils.NewBufStack("cnt", data)

	var m *asset.Model
	var meshes []*asset.Mesh
	var bones []asset.BoneHandle
	ended := false

	for bs.Remaining() > 0 && !ended {
		id := bs.ReadLU32()
		chunk := bs.SubBuf("chunk", int(bs.ReadLU32()))
		if bs.Err() != nil {
			return nil, bs.Err()
		}
		if m == nil && id != ChunkHead {
			return nil, asset.Validationf("cnt", "first chunk is 0x%x, not a header", id)
		}

		switch id {
		case ChunkHead:
			if m != nil {
				return nil, asset.Validationf("cnt", "second header chunk")
			}
			if version := chunk.ReadLU32(); version != Version {
				return nil, asset.Validationf("cnt", "unsupported version %d", version)
			}
			m = asset.NewModel(chunk.ReadLString())
		case ChunkMesh:
			mesh, err := readMesh(chunk.SetName(fmt.Sprintf("mesh%d", len(meshes))))
			if err != nil {
				return nil, err
			}
			meshes = append(meshes, mesh)
		case ChunkBone:
			if chunk.Size() != boneChunkSize {
				return nil, asset.Validationf("cnt", "bone chunk of %d bytes, expected %d", chunk.Size(), boneChunkSize)
			}
			name := chunk.ReadStringBuffer(BoneNameSize)
			parent := int(chunk.ReadLI32())
			transform := chunk.ReadLMat4()
			meshIndex := int(chunk.ReadLI32())
			if err := chunk.VerifySize(); err != nil {
				return nil, err
			}

			parentHandle := asset.NoBone
			if parent >= 0 {
				if parent >= len(bones) {
					return nil, asset.Validationf("cnt", "bone %q references parent %d of %d", name, parent, len(bones))
				}
				parentHandle = bones[parent]
			}
			var mesh *asset.Mesh
			if meshIndex >= 0 {
				if meshIndex >= len(meshes) {
					return nil, asset.Validationf("cnt", "bone %q references mesh %d of %d", name, meshIndex, len(meshes))
				}
				mesh = meshes[meshIndex]
			}
			h, err := m.AddBone(parentHandle, name, transform, mesh)
			if err != nil {
				return nil, err
			}
			bones = append(bones, h)
		case ChunkEnd:
			ended = true
		default:
			log.Printf("[cnt] Skipping unknown chunk 0x%x of %d bytes", id, chunk.Size())
		}
	}

	if m == nil {
		return nil, asset.Validationf("cnt", "empty file")
	}
	if !ended {
		return nil, asset.Validationf("cnt", "missing end chunk")
	}
	for _, mesh := range meshes {
		if mesh.Bone == asset.NoBone {
			m.Meshes = append(m.Meshes, mesh)
		}
	}
	return m, nil
}
