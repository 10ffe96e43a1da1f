package cnt

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils"
)

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	m, ok := a.(*asset.Model)
	if !ok {
		return errors.Errorf("[cnt] Cannot export %v", a.AssetKind())
	}
	view, err := pipeline.PrepareModel(ctx, e, m, s)
	if err != nil {
		return err
	}
	data, err := Marshal(view)
	if err != nil {
		return asset.NewFormatError(e.Name(), path, err)
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return asset.NewIOError("write", path, err)
		}
		return nil
	})
}

func writeMesh(w *utils.BufWriter, mesh *asset.Mesh) {
	w.WritePrefixedString(mesh.Name)
	w.WriteCount(len(mesh.Parts))
	for _, part := range mesh.Parts {
		w.WritePrefixedString(part.MaterialName)
		w.WriteCount(len(part.Vertices))
		for _, v := range part.Vertices {
			w.WriteVec3(v.Position)
			w.WriteVec3(v.Normal)
			w.WriteVec4(v.UV)
			w.WriteVec4(v.Color)
		}
		w.WriteCount(len(part.Indices))
		for _, idx := range part.Indices {
			w.WriteU32(idx)
		}
	}
}

// Marshal serializes m. Bone handles are renumbered into file order.
func Marshal(m *asset.Model) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	w := utils.NewBufWriter(binary.LittleEndian)

	w.Chunk(ChunkHead, func() {
		w.WriteU32(Version)
		w.WritePrefixedString(m.Name)
	})

	meshIndex := make(map[*asset.Mesh]int, len(m.Meshes))
	for i, mesh := range m.Meshes {
		meshIndex[mesh] = i
		w.Chunk(ChunkMesh, func() { writeMesh(w, mesh) })
	}

	fileIndex := make(map[asset.BoneHandle]int)
	for i, b := range m.Bones() {
		fileIndex[b.Handle] = i
		parent := -1
		if b.Parent != asset.NoBone {
			parent = fileIndex[b.Parent]
		}
		mesh := -1
		if b.Mesh != nil {
			mesh = meshIndex[b.Mesh]
		}
		w.Chunk(ChunkBone, func() {
			w.WriteStringBuffer(b.Name, BoneNameSize)
			w.WriteI32(int32(parent))
			w.WriteMat4(b.Transform)
			w.WriteI32(int32(mesh))
		})
	}
	w.Chunk(ChunkEnd, func() {})

	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
