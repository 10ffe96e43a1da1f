package gltf

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/formats/texture"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils"
	"github.com/mogaika/assetpipe/utils/gltfutils"
)

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := gltfutils.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, errors.Wrapf(err, "Failed to read gltf"))
	}
	r := &reader{ctx: ctx, doc: doc, path: path}
	m, err := r.model(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	pipeline.ToScene(ctx, i, m)
	return m, nil
}

type reader struct {
	ctx   *pipeline.Context
	doc   *gltf.Document
	path  string
	names utils.RandomNameGenerator
}

func (r *reader) rootNodes() []uint32 {
	if len(r.doc.Scenes) != 0 {
		scene := uint32(0)
		if r.doc.Scene != nil && int(*r.doc.Scene) < len(r.doc.Scenes) {
			scene = *r.doc.Scene
		}
		return r.doc.Scenes[scene].Nodes
	}
	isChild := make(map[uint32]bool)
	for _, n := range r.doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	roots := make([]uint32, 0)
	for i := range r.doc.Nodes {
		if !isChild[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (r *reader) model(name string) (*asset.Model, error) {
	for _, n := range r.doc.Nodes {
		if n.Name != "" {
			r.names.Reserve(n.Name)
		}
	}
	materials, err := r.materials()
	if err != nil {
		return nil, err
	}

	m := asset.NewModel(name)
	visited := make(map[uint32]bool)
	var addNode func(parent asset.BoneHandle, iNode uint32) error
	addNode = func(parent asset.BoneHandle, iNode uint32) error {
		if int(iNode) >= len(r.doc.Nodes) {
			return errors.Errorf("Node %d out of range", iNode)
		}
		if visited[iNode] {
			return errors.Errorf("Node %d is referenced twice", iNode)
		}
		visited[iNode] = true

		node := r.doc.Nodes[iNode]
		boneName := node.Name
		if boneName == "" {
			boneName = r.names.RandomName()
		}
		var mesh *asset.Mesh
		if node.Mesh != nil {
			var err error
			if mesh, err = r.mesh(*node.Mesh, materials); err != nil {
				return errors.Wrapf(err, "node %q", boneName)
			}
		}
		h, err := m.AddBone(parent, boneName, nodeTransform(node.Matrix, node.Translation, node.Rotation, node.Scale), mesh)
		if err != nil {
			return err
		}
		for _, c := range node.Children {
			if err := addNode(h, c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, iNode := range r.rootNodes() {
		if err := addNode(asset.NoBone, iNode); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// accessor returns an accessor whose elements all lie inside its buffer
// view, so the modeler reads never slice out of range.
func (r *reader) accessor(index uint32) (*gltf.Accessor, error) {
	if int(index) >= len(r.doc.Accessors) {
		return nil, errors.Errorf("Accessor %d out of range", index)
	}
	acr := r.doc.Accessors[index]
	if err := checkAccessor(r.doc, acr); err != nil {
		return nil, errors.Wrapf(err, "accessor %d", index)
	}
	return acr, nil
}

func checkAccessor(doc *gltf.Document, acr *gltf.Accessor) error {
	if acr.Sparse != nil {
		return errors.Errorf("Sparse accessors are not supported")
	}
	if acr.BufferView == nil {
		return errors.Errorf("No buffer view")
	}
	_, start, end, ok := gltfutils.BufferViewRange(doc, *acr.BufferView)
	if !ok {
		return errors.Errorf("Buffer view %d out of range", *acr.BufferView)
	}
	if acr.Count == 0 {
		return nil
	}

	elemSize := int64(gltf.SizeOfElement(acr.ComponentType, acr.Type))
	if elemSize == 0 {
		return errors.Errorf("Unknown element layout %v/%v", acr.ComponentType, acr.Type)
	}
	stride := int64(doc.BufferViews[*acr.BufferView].ByteStride)
	if stride == 0 {
		stride = elemSize
	} else if stride < elemSize {
		return errors.Errorf("Stride %d is smaller than element size %d", stride, elemSize)
	}
	need := int64(acr.ByteOffset) + (int64(acr.Count)-1)*stride + elemSize
	if need > end-start {
		return errors.Errorf("%d elements at offset %d need %d bytes, view has %d",
			acr.Count, acr.ByteOffset, need, end-start)
	}
	return nil
}

func (r *reader) mesh(iMesh uint32, materials []string) (*asset.Mesh, error) {
	if int(iMesh) >= len(r.doc.Meshes) {
		return nil, errors.Errorf("Mesh %d out of range", iMesh)
	}
	gm := r.doc.Meshes[iMesh]
	mesh := asset.NewMesh(gm.Name)
	if mesh.Name == "" {
		mesh.Name = fmt.Sprintf("mesh%d", iMesh)
	}

	for iPrimitive, primitive := range gm.Primitives {
		if primitive.Mode != gltf.PrimitiveTriangles {
			log.Printf("[gltf] Skipping primitive %d of mesh %q: mode %v", iPrimitive, mesh.Name, primitive.Mode)
			continue
		}
		part, err := r.primitive(primitive, materials)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %q primitive %d", mesh.Name, iPrimitive)
		}
		mesh.AddPart(part)
	}
	return mesh, nil
}

func (r *reader) primitive(primitive *gltf.Primitive, materials []string) (*asset.MeshPart, error) {
	material := ""
	if primitive.Material != nil {
		if int(*primitive.Material) >= len(materials) {
			return nil, errors.Errorf("Material %d out of range", *primitive.Material)
		}
		material = materials[*primitive.Material]
	}
	part := asset.NewMeshPart(material)

	iPosition, ok := primitive.Attributes["POSITION"]
	if !ok {
		return nil, errors.Errorf("No POSITION attribute")
	}
	acr, err := r.accessor(iPosition)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(r.doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read mesh vertices")
	}

	var normals [][3]float32
	if iNormal, ok := primitive.Attributes["NORMAL"]; ok {
		if acr, err = r.accessor(iNormal); err != nil {
			return nil, err
		}
		if normals, err = modeler.ReadNormal(r.doc, acr, nil); err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh normals")
		}
	}
	var uvs [][2]float32
	if iUV, ok := primitive.Attributes["TEXCOORD_0"]; ok {
		if acr, err = r.accessor(iUV); err != nil {
			return nil, err
		}
		if uvs, err = modeler.ReadTextureCoord(r.doc, acr, nil); err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh uvs")
		}
	}
	if (normals != nil && len(normals) != len(positions)) || (uvs != nil && len(uvs) != len(positions)) {
		return nil, errors.Errorf("Attribute counts differ from %d positions", len(positions))
	}

	for i := range positions {
		var normal mgl32.Vec3
		var uv mgl32.Vec2
		if normals != nil {
			normal = normals[i]
		}
		if uvs != nil {
			uv = uvs[i]
		}
		part.AddVertex(asset.NewVertex(positions[i], normal, uv))
	}

	if primitive.Indices == nil {
		for i := 0; i+2 < len(positions); i += 3 {
			part.AddTriangle(uint32(i), uint32(i+1), uint32(i+2))
		}
	} else {
		if acr, err = r.accessor(*primitive.Indices); err != nil {
			return nil, err
		}
		indices, err := modeler.ReadIndices(r.doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh indices")
		}
		for i := 0; i+2 < len(indices); i += 3 {
			part.AddTriangle(indices[i], indices[i+1], indices[i+2])
		}
	}
	return part, part.Validate()
}

// materials returns material names by index and merges the materials into
// the context list when there is one.
func (r *reader) materials() ([]string, error) {
	names := make([]string, len(r.doc.Materials))
	for i, gm := range r.doc.Materials {
		names[i] = gm.Name
		if names[i] == "" {
			names[i] = fmt.Sprintf("material%d", i)
		}
		if r.ctx.Materials == nil {
			continue
		}

		material := asset.NewMaterial(names[i], nil)
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				material.Color = *pbr.BaseColorFactor
			}
			if pbr.BaseColorTexture != nil {
				t, err := r.texture(pbr.BaseColorTexture.Index, names[i])
				if err != nil {
					return nil, errors.Wrapf(err, "material %q", names[i])
				}
				material.Texture = t
			}
		}
		r.ctx.Materials.Add(material)
	}
	return names, nil
}

func (r *reader) texture(iTexture uint32, material string) (*asset.Texture, error) {
	if int(iTexture) >= len(r.doc.Textures) {
		return nil, errors.Errorf("Texture %d out of range", iTexture)
	}
	gt := r.doc.Textures[iTexture]
	if gt.Source == nil || int(*gt.Source) >= len(r.doc.Images) {
		return nil, errors.Errorf("Texture %d has no image", iTexture)
	}
	img := r.doc.Images[*gt.Source]
	name := img.Name
	if name == "" {
		name = gt.Name
	}
	if name == "" {
		name = material
	}

	if img.BufferView == nil {
		if img.URI == "" || strings.HasPrefix(img.URI, "data:") {
			r.ctx.Warn(&asset.NotFoundError{Resource: "texture " + name, Path: "embedded data uri", Referrer: r.path})
			return r.ctx.AddTexture(asset.NewPlaceholderTexture(name)), nil
		}
		return r.ctx.LoadTexture(filepath.Join(filepath.Dir(r.path), filepath.FromSlash(img.URI)), r.path)
	}

	data, ok := gltfutils.BufferViewData(r.doc, *img.BufferView)
	if !ok {
		return nil, errors.Errorf("Image %q buffer view out of range", name)
	}
	ext := "." + strings.TrimPrefix(img.MimeType, "image/")
	decoded, err := texture.Decode(data, ext)
	if err != nil {
		return nil, errors.Wrapf(err, "Image %q", name)
	}
	return r.ctx.AddTexture(asset.NewTextureFromImage(name, "", decoded)), nil
}
