// Package fbx exports models as binary FBX 7.4.
//
// Every bone becomes a Model object with local translation, rotation (XYZ
// euler degrees) and scaling. Bones with a mesh get one Geometry holding all
// parts, with a per polygon material index into the materials connected to
// the model.
package fbx

import (
	"io"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/utils"
	"github.com/mogaika/assetpipe/utils/fbxbuilder"
)

func init() {
	pipeline.RegisterExporter(&Exporter{Info: pipeline.Info{
		CodecName: "FBX",
		Exts:      []string{".fbx"},
		AssetKind: asset.KindModel,
		Handed:    asset.RightHanded,
	}})
}

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	m, ok := a.(*asset.Model)
	if !ok {
		return errors.Errorf("[fbx] Cannot export %v", a.AssetKind())
	}
	view, err := pipeline.PrepareModel(ctx, e, m, s)
	if err != nil {
		return err
	}
	if err := view.Validate(); err != nil {
		return err
	}
	f := NewBuilder(view, ctx.Materials, fbxbuilder.Document{
		FileName:    filepath.Base(path),
		Vendor:      "mogaika",
		Application: "assetpipe",
		Version:     "1.0",
		RightHanded: pipeline.TargetHandedness(e, s) != asset.LeftHanded,
	})
	return pipeline.WriteFile(path, func(w io.Writer) error {
		if err := f.Write(w); err != nil {
			return asset.NewFormatError(e.Name(), path, err)
		}
		return nil
	})
}

type exporter struct {
	f         *fbxbuilder.Builder
	materials *asset.MaterialList
}

// NewBuilder fills an FBX document with the bones, meshes and materials of m.
// materials may be nil, then materials are white.
func NewBuilder(m *asset.Model, materials *asset.MaterialList, doc fbxbuilder.Document) *fbxbuilder.Builder {
	e := &exporter{f: fbxbuilder.New(doc), materials: materials}

	models := make(map[asset.BoneHandle]int64)
	for _, b := range m.Bones() {
		modelId := e.exportBone(b)
		models[b.Handle] = modelId

		parentId := int64(0)
		if !b.IsRoot() {
			parentId = models[b.Parent]
		}
		e.f.AddConnections(bfbx73.C("OO", modelId, parentId))
	}
	return e.f
}

func (e *exporter) exportBone(b *asset.Bone) int64 {
	t, r, s := utils.DecomposeMatrix(b.Transform)
	rotation := utils.RadiansToDegreeV3(utils.QuatToEuler(r))

	class := "Null"
	if b.Mesh != nil {
		class = "Mesh"
	}

	modelId := e.f.GenerateId()
	model := bfbx73.Model(modelId, b.Name+"\x00\x01Model", class).AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("InheritType", "enum", "", "", int32(1)),
			bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A",
				float64(t[0]), float64(t[1]), float64(t[2])),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A",
				float64(rotation[0]), float64(rotation[1]), float64(rotation[2])),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A",
				float64(s[0]), float64(s[1]), float64(s[2])),
		),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)
	e.f.AddObjects(model)

	if b.Mesh == nil {
		nodeAttribute := bfbx73.NodeAttribute(e.f.GenerateId(), b.Name+"\x00\x01NodeAttribute", "Null").AddNodes(
			bfbx73.TypeFlags("Null"),
		)
		e.f.AddObjects(nodeAttribute)
		e.f.AddConnections(bfbx73.C("OO", nodeAttribute.Properties[0].(int64), modelId))
		return modelId
	}

	geometryId, materialNames := e.exportMesh(b.Mesh)
	e.f.AddConnections(bfbx73.C("OO", geometryId, modelId))
	for _, name := range materialNames {
		e.f.AddConnections(bfbx73.C("OO", e.material(name), modelId))
	}
	return modelId
}

func (e *exporter) exportMesh(mesh *asset.Mesh) (int64, []string) {
	vertices := make([]float64, 0, mesh.VertexCount()*3)
	normals := make([]float64, 0, mesh.VertexCount()*3)
	uv := make([]float64, 0, mesh.VertexCount()*2)
	colors := make([]float64, 0, mesh.VertexCount()*4)
	indexes := make([]int32, 0, mesh.FaceCount()*3)
	uvindexes := make([]int32, 0, mesh.FaceCount()*3)
	polygonMaterials := make([]int32, 0, mesh.FaceCount())

	materialNames := make([]string, 0)
	materialIndex := make(map[string]int32)

	for _, part := range mesh.Parts {
		iMaterial, ok := materialIndex[part.MaterialName]
		if !ok {
			iMaterial = int32(len(materialNames))
			materialIndex[part.MaterialName] = iMaterial
			materialNames = append(materialNames, part.MaterialName)
		}

		base := int32(len(vertices) / 3)
		for _, v := range part.Vertices {
			vertices = append(vertices, float64(v.Position[0]), float64(v.Position[1]), float64(v.Position[2]))
			normals = append(normals, float64(v.Normal[0]), float64(v.Normal[1]), float64(v.Normal[2]))
			uv = append(uv, float64(v.UV[0]), float64(v.UV[1]))
			colors = append(colors, float64(v.Color[0]), float64(v.Color[1]), float64(v.Color[2]), float64(v.Color[3]))
		}
		for i := 0; i+2 < len(part.Indices); i += 3 {
			a, b, c := base+int32(part.Indices[i]), base+int32(part.Indices[i+1]), base+int32(part.Indices[i+2])
			// last index of a polygon is stored as -(index)-1
			indexes = append(indexes, a, b, -c-1)
			uvindexes = append(uvindexes, a, b, c)
			polygonMaterials = append(polygonMaterials, iMaterial)
		}
	}

	geometryId := e.f.GenerateId()
	geometryLayer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
	)
	geometry := bfbx73.Geometry(geometryId, mesh.Name+"\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
		bfbx73.LayerElementNormal(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByVertice"),
			bfbx73.ReferenceInformationType("Direct"),
			bfbx73.Normals(normals),
		),
		bfbx73.LayerElementColor(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByVertice"),
			bfbx73.ReferenceInformationType("Direct"),
			bfbx73.Colors(colors),
		),
		bfbx73.LayerElementUV(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygonVertex"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.UV(uv),
			bfbx73.UVIndex(uvindexes),
		),
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygon"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials(polygonMaterials),
		),
		geometryLayer,
	)
	for _, element := range []string{"LayerElementNormal", "LayerElementColor", "LayerElementUV", "LayerElementMaterial"} {
		geometryLayer.AddNode(
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type(element),
				bfbx73.TypedIndex(0),
			),
		)
	}

	e.f.AddObjects(geometry)
	return geometryId, materialNames
}

func (e *exporter) material(name string) int64 {
	return e.f.GetCachedOr("material/"+name, func() interface{} {
		color := asset.White
		if e.materials != nil {
			if m := e.materials.Find(name); m != nil {
				color = m.Color
			}
		}

		materialId := e.f.GenerateId()
		e.f.AddObjects(materialNode(materialId, name, color))
		return materialId
	}).(int64)
}

func materialNode(id int64, name string, color mgl32.Vec4) *fbx.Node {
	return bfbx73.Material(id, name+"\x00\x01Material", "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel("lambert"),
		bfbx73.MultiLayer(0),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("AmbientColor", "Color", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("DiffuseColor", "Color", "", "A", float64(color[0]), float64(color[1]), float64(color[2])),
			bfbx73.P("Emissive", "Vector3D", "Vector", "", float64(0), float64(0), float64(0)),
			bfbx73.P("Ambient", "Vector3D", "Vector", "", float64(0), float64(0), float64(0)),
			bfbx73.P("Diffuse", "Vector3D", "Vector", "", float64(color[0]), float64(color[1]), float64(color[2])),
			bfbx73.P("Opacity", "double", "Number", "", float64(color[3])),
		),
	)
}
