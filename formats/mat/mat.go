// Package mat reads and writes .mat material lists.
//
// Big-endian chunks of u32 id and u32 size:
//
//	HEAD  version u32, list name (u16 length + bytes)
//	MATL  material name, texture name (empty for none), color 4 floats
//	END   empty
//
// Textures are looked up next to the .mat file by name with any extension a
// texture importer is registered for.
package mat

import (
	"encoding/binary"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils"
)

const (
	ChunkHead     = 0x48454144 // "HEAD"
	ChunkMaterial = 0x4D41544C // "MATL"
	ChunkEnd      = 0x454E4400 // "END\0"

	Version = 1
)

var info = pipeline.Info{
	CodecName: "MAT",
	Exts:      []string{".mat"},
	AssetKind: asset.KindMaterialList,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}

// MaterialRecord is one material as stored in the file.
type MaterialRecord struct {
	Name    string
	Texture string
	Color   [4]float32
}

type MAT struct {
	Name      string
	Materials []MaterialRecord
}

func NewFromData(data []byte) (*MAT, error) {
	bs := utils.NewBufStack("mat", data)
	var m *MAT
	for bs.Remaining() > 0 {
		id := bs.ReadBU32()
		chunk := bs.SubBuf("chunk", int(bs.ReadBU32()))
		if bs.Err() != nil {
			return nil, bs.Err()
		}
		if m == nil && id != ChunkHead {
			return nil, asset.Validationf("mat", "first chunk is 0x%x, not a header", id)
		}
		switch id {
		case ChunkHead:
			if version := chunk.ReadBU32(); version != Version {
				return nil, asset.Validationf("mat", "unsupported version %d", version)
			}
			m = &MAT{Name: chunk.ReadBString()}
		case ChunkMaterial:
			rec := MaterialRecord{
				Name:    chunk.ReadBString(),
				Texture: chunk.ReadBString(),
				Color:   chunk.ReadBVec4(),
			}
			if err := chunk.VerifySize(); err != nil {
				return nil, err
			}
			if rec.Name == "" {
				return nil, asset.Validationf("mat", "material %d has no name", len(m.Materials))
			}
			m.Materials = append(m.Materials, rec)
		case ChunkEnd:
			return m, chunk.VerifySize()
		default:
			log.Printf("[mat] Skipping unknown chunk 0x%x", id)
		}
	}
	return nil, asset.Validationf("mat", "missing end chunk")
}

func (m *MAT) Marshal() ([]byte, error) {
	w := utils.NewBufWriter(binary.BigEndian)
	w.Chunk(ChunkHead, func() {
		w.WriteU32(Version)
		w.WritePrefixedString(m.Name)
	})
	for _, rec := range m.Materials {
		w.Chunk(ChunkMaterial, func() {
			w.WritePrefixedString(rec.Name)
			w.WritePrefixedString(rec.Texture)
			w.WriteVec4(rec.Color)
		})
	}
	w.Chunk(ChunkEnd, func() {})
	return w.Bytes(), w.Err()
}

type Importer struct {
	pipeline.Info
}

func textureExtensions(r *pipeline.Registry) []string {
	exts := make([]string, 0)
	for _, imp := range r.Importers() {
		if imp.Kind() == asset.KindTexture {
			exts = append(exts, imp.Extensions()...)
		}
	}
	return exts
}

// findTexture returns the first existing dir/name.ext, or dir/name.png when
// none exists so the caller reports that path as missing.
func findTexture(dir, name string, exts []string) string {
	for _, ext := range exts {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dir, name+".png")
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

	list := asset.NewMaterialList(m.Name)
	textures := make(map[string]*asset.Texture)
	exts := textureExtensions(ctx.Registry)
	for _, rec := range m.Materials {
		material := asset.NewMaterial(rec.Name, nil)
		material.Color = rec.Color
		if rec.Texture != "" {
			t, ok := textures[rec.Texture]
			if !ok {
				t, err = ctx.LoadTexture(findTexture(filepath.Dir(path), rec.Texture, exts), path)
				if err != nil {
					return nil, errors.Wrapf(err, "Can't load texture %q of material %q", rec.Texture, rec.Name)
				}
				textures[rec.Texture] = t
			}
			material.Texture = t
		}
		list.Add(material)
	}
	return list, nil
}

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	list, ok := a.(*asset.MaterialList)
	if !ok {
		return errors.Errorf("[mat] Cannot export %v", a.AssetKind())
	}
	m := &MAT{Name: list.Name}
	for _, material := range list.Entries() {
		if material == nil {
			continue
		}
		m.Materials = append(m.Materials, MaterialRecord{
			Name:    material.Name,
			Texture: material.TextureName(),
			Color:   material.Color,
		})
	}
	data, err := m.Marshal()
	if err != nil {
		return asset.NewFormatError(e.Name(), path, err)
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
