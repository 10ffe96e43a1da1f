// Package fbxbuilder assembles a binary FBX 7.4 document around the objects
// and connections added by an exporter.
package fbxbuilder

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const (
	fbxVersion = 7400
	creator    = "assetpipe FBX writer"
	// Timestamps are pinned so that exports are reproducible.
	dateTimeGMT  = "01/01/1970 00:00:00.000"
	creationTime = "1970-01-01 00:00:00:000"
	firstId      = 1000000
)

var fileId = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Document describes the header of the written file.
type Document struct {
	FileName    string
	Vendor      string
	Application string
	Version     string
	// RightHanded selects the sign of the front axis. Y is always up.
	RightHanded bool
	UnitScale   float64
}

// template is the default property set of one object type. Objects of a
// type without a template are counted in Definitions all the same.
type template struct {
	objectType string
	class      string
	props      func() []*fbx.Node
}

var templates = []template{
	{"Model", "FbxNode", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("QuaternionInterpolate", "enum", "", "", int32(0)),
			bfbx73.P("Show", "bool", "", "", int32(1)),
			p3("Lcl Translation", 0),
			p3("Lcl Rotation", 0),
			p3("Lcl Scaling", 1),
			bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
			bfbx73.P("Visibility Inheritance", "Visibility Inheritance", "", "", int32(1)),
		}
	}},
	{"Geometry", "FbxMesh", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
			bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
			bfbx73.P("Casts Shadows", "bool", "", "", int32(1)),
			bfbx73.P("Receive Shadows", "bool", "", "", int32(1)),
		}
	}},
	{"Material", "FbxSurfacePhong", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("ShadingModel", "KString", "", "", "Phong"),
			bfbx73.P("MultiLayer", "bool", "", "", int32(0)),
			color("EmissiveColor", 0),
			bfbx73.P("EmissiveFactor", "Number", "", "A", float64(1)),
			color("AmbientColor", 0.2),
			color("DiffuseColor", 1),
			bfbx73.P("DiffuseFactor", "Number", "", "A", float64(1)),
			color("SpecularColor", 0.2),
		}
	}},
	{"NodeAttribute", "FbxNull", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("Size", "double", "Number", "", float64(100)),
			bfbx73.P("Look", "enum", "", "", int32(1)),
		}
	}},
}

func p3(name string, v float64) *fbx.Node {
	return bfbx73.P(name, name, "", "A", v, v, v)
}

func color(name string, v float64) *fbx.Node {
	return bfbx73.P(name, "Color", "", "A", v, v, v)
}

func integer(name string, v int32) *fbx.Node {
	return bfbx73.P(name, "int", "Integer", "", v)
}

// Builder collects objects and connections; Write adds the header and the
// definitions that count them.
type Builder struct {
	doc    Document
	lastId int64
	cache  map[string]interface{}

	objects     *fbx.Node
	connections *fbx.Node
}

func New(doc Document) *Builder {
	if doc.UnitScale == 0 {
		doc.UnitScale = 1
	}
	return &Builder{
		doc:         doc,
		lastId:      firstId,
		cache:       make(map[string]interface{}),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
}

func (b *Builder) GenerateId() int64 {
	b.lastId++
	return b.lastId
}

// Objects returns the node exporters append objects to.
func (b *Builder) Objects() *fbx.Node { return b.objects }

// Connections returns the OO/OP links added so far.
func (b *Builder) Connections() *fbx.Node { return b.connections }

func (b *Builder) AddObjects(nodes ...*fbx.Node)     { b.objects.AddNodes(nodes...) }
func (b *Builder) AddConnections(nodes ...*fbx.Node) { b.connections.AddNodes(nodes...) }

// GetCachedOr returns the value stored under key, calling create the first time.
func (b *Builder) GetCachedOr(key string, create func() interface{}) interface{} {
	if v, ok := b.cache[key]; ok {
		return v
	}
	v := create()
	b.cache[key] = v
	return v
}

func (b *Builder) header() *fbx.Node {
	application := func(prefix string) []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P(prefix, "Compound", "", ""),
			bfbx73.P(prefix+"|ApplicationVendor", "KString", "", "", b.doc.Vendor),
			bfbx73.P(prefix+"|ApplicationName", "KString", "", "", b.doc.Application),
			bfbx73.P(prefix+"|ApplicationVersion", "KString", "", "", b.doc.Version),
			bfbx73.P(prefix+"|DateTime_GMT", "DateTime", "", "", dateTimeGMT),
		}
	}
	props := bfbx73.Properties70().AddNodes(
		bfbx73.P("DocumentUrl", "KString", "Url", "", b.doc.FileName),
		bfbx73.P("SrcDocumentUrl", "KString", "Url", "", b.doc.FileName),
	)
	props.AddNodes(application("Original")...)
	props.AddNodes(bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(b.doc.FileName)))
	props.AddNodes(application("LastSaved")...)

	return bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(fbxVersion),
		bfbx73.EncryptionType(0),
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Year(1970), bfbx73.Month(1), bfbx73.Day(1),
			bfbx73.Hour(0), bfbx73.Minute(0), bfbx73.Second(0), bfbx73.Millisecond(0),
		),
		bfbx73.Creator(creator),
		bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
			bfbx73.Type("UserData"),
			bfbx73.Version(100),
			bfbx73.MetaData().AddNodes(bfbx73.Version(100), bfbx73.Title(b.doc.FileName)),
			props,
		),
	)
}

func (b *Builder) globalSettings() *fbx.Node {
	frontSign := int32(1)
	if b.doc.RightHanded {
		frontSign = -1
	}
	return bfbx73.GlobalSettings().AddNodes(
		bfbx73.Version(1000),
		bfbx73.Properties70().AddNodes(
			integer("UpAxis", 1),
			integer("UpAxisSign", 1),
			integer("FrontAxis", 2),
			integer("FrontAxisSign", frontSign),
			integer("CoordAxis", 0),
			integer("CoordAxisSign", 1),
			integer("OriginalUpAxis", 1),
			integer("OriginalUpAxisSign", 1),
			bfbx73.P("UnitScaleFactor", "double", "Number", "", b.doc.UnitScale),
			bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", b.doc.UnitScale),
		),
	)
}

// definitions counts the objects per type; GlobalSettings counts as one.
func (b *Builder) definitions() *fbx.Node {
	counts := make(map[string]int32)
	for _, object := range b.objects.Nodes {
		counts[object.Name]++
	}
	names := make([]string, 0, len(counts))
	total := int32(1)
	for name, count := range counts {
		names = append(names, name)
		total += count
	}
	sort.Strings(names)

	defs := bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(total),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
	)
	for _, name := range names {
		ot := bfbx73.ObjectType(name).AddNodes(bfbx73.Count(counts[name]))
		for _, t := range templates {
			if t.objectType == name {
				ot.AddNodes(bfbx73.PropertyTemplate(t.class).AddNodes(
					bfbx73.Properties70().AddNodes(t.props()...)))
			}
		}
		defs.AddNodes(ot)
	}
	return defs
}

func (b *Builder) document() *fbx.FBX {
	f := fbx.NewFBX(fbxVersion)
	f.Root.AddNodes(
		b.header(),
		bfbx73.FileId(fileId),
		bfbx73.CreationTime(creationTime),
		bfbx73.Creator(creator),
		b.globalSettings(),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(firstId, "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		b.definitions(),
		b.objects,
		b.connections,
		bfbx73.Takes().AddNodes(bfbx73.Current("")),
	)
	return f
}

// Write encodes the document to w. fbx.Write seeks back to patch node
// offsets, so the output goes through a temporary file.
func (b *Builder) Write(w io.Writer) error {
	tempFile, err := os.CreateTemp("", "assetpipe.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Can't create temporary file")
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if err := fbx.Write(tempFile, b.document()); err != nil {
		return errors.Wrapf(err, "Can't encode fbx")
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	_, err = io.Copy(w, tempFile)
	return err
}
