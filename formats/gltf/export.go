package gltf

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/formats/texture"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils/gltfutils"
)

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	m, ok := a.(*asset.Model)
	if !ok {
		return errors.Errorf("[gltf] Cannot export %v", a.AssetKind())
	}
	view, err := pipeline.PrepareModel(ctx, e, m, s)
	if err != nil {
		return err
	}
	if err := view.Validate(); err != nil {
		return err
	}
	doc, err := NewDocument(view, ctx.Materials)
	if err != nil {
		return asset.NewFormatError(e.Name(), path, err)
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		return gltfutils.ExportBinary(w, doc)
	})
}

type writer struct {
	cacher    *gltfutils.Cacher
	materials *asset.MaterialList
}

// NewDocument converts m into a glTF document. materials may be nil, then
// only material names are written.
func NewDocument(m *asset.Model, materials *asset.MaterialList) (*gltf.Document, error) {
	doc := gltfutils.NewDocument()
	w := &writer{cacher: gltfutils.NewCacher(doc), materials: materials}

	nodes := make(map[asset.BoneHandle]uint32)
	for _, b := range m.Bones() {
		t, r, s := nodeTRS(b.Transform)
		node := &gltf.Node{
			Name:        b.Name,
			Translation: t,
			Rotation:    r,
			Scale:       s,
		}
		if b.Mesh != nil {
			iMesh, err := w.mesh(b.Mesh)
			if err != nil {
				return nil, errors.Wrapf(err, "bone %q", b.Name)
			}
			node.Mesh = gltf.Index(iMesh)
		}

		nodes[b.Handle] = uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, node)
		if b.IsRoot() {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, nodes[b.Handle])
		} else {
			parent := doc.Nodes[nodes[b.Parent]]
			parent.Children = append(parent.Children, nodes[b.Handle])
		}
	}
	return doc, nil
}

func (w *writer) mesh(mesh *asset.Mesh) (uint32, error) {
	doc := w.cacher.Doc
	gm := &gltf.Mesh{Name: mesh.Name}
	for _, part := range mesh.Parts {
		if len(part.Indices) == 0 {
			continue
		}
		positions := make([][3]float32, len(part.Vertices))
		normals := make([][3]float32, len(part.Vertices))
		uvs := make([][2]float32, len(part.Vertices))
		for i, v := range part.Vertices {
			positions[i] = v.Position
			normals[i] = v.Normal
			uvs[i] = [2]float32{v.UV[0], v.UV[1]}
		}
		indices := modeler.WriteIndices(doc, part.IndexBuffer())

		primitive := &gltf.Primitive{
			Indices: &indices,
			Attributes: map[string]uint32{
				"POSITION":   modeler.WritePosition(doc, positions),
				"NORMAL":     modeler.WriteNormal(doc, normals),
				"TEXCOORD_0": modeler.WriteTextureCoord(doc, uvs),
			},
		}
		if part.MaterialName != "" {
			iMaterial, err := w.material(part.MaterialName)
			if err != nil {
				return 0, err
			}
			primitive.Material = gltf.Index(iMaterial)
		}
		gm.Primitives = append(gm.Primitives, primitive)
	}
	doc.Meshes = append(doc.Meshes, gm)
	return uint32(len(doc.Meshes) - 1), nil
}

func (w *writer) material(name string) (uint32, error) {
	v, err := w.cacher.GetCachedOr("material/"+name, func() (interface{}, error) {
		doc := w.cacher.Doc
		color := new([4]float32)
		*color = asset.White
		gm := &gltf.Material{
			Name:                 name,
			DoubleSided:          true,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorFactor: color},
		}
		if w.materials != nil {
			if material := w.materials.Find(name); material != nil {
				*color = material.Color
				if material.Texture != nil && !material.Texture.Placeholder {
					iTexture, err := w.texture(material.Texture)
					if err != nil {
						return nil, err
					}
					gm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: iTexture}
				}
			}
		}
		doc.Materials = append(doc.Materials, gm)
		return uint32(len(doc.Materials) - 1), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

func (w *writer) texture(t *asset.Texture) (uint32, error) {
	v, err := w.cacher.GetCachedOr("texture/"+t.Name, func() (interface{}, error) {
		doc := w.cacher.Doc
		var buf bytes.Buffer
		if err := texture.Encode(&buf, t.Image, ".png"); err != nil {
			return nil, errors.Wrapf(err, "Failed to encode texture %q", t.Name)
		}
		iImage, err := modeler.WriteImage(doc, t.Name, "image/png", &buf)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to write gltf image")
		}
		doc.Samplers = append(doc.Samplers, &gltf.Sampler{
			MagFilter: gltf.MagLinear,
			MinFilter: gltf.MinLinear,
			WrapS:     gltf.WrapRepeat,
			WrapT:     gltf.WrapRepeat,
		})
		doc.Textures = append(doc.Textures, &gltf.Texture{
			Name:    t.Name,
			Sampler: gltf.Index(uint32(len(doc.Samplers) - 1)),
			Source:  gltf.Index(iImage),
		})
		return uint32(len(doc.Textures) - 1), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}
