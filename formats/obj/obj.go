// Package obj reads and writes Wavefront OBJ geometry.
//
// Export bakes every combined bone transform into the vertices and writes
// one "o" object per mesh. Import builds a root bone named after the file
// with one identity child per object. Faces with more than three corners
// are fan triangulated.
package obj

import (
	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

var info = pipeline.Info{
	CodecName: "Wavefront OBJ",
	Exts:      []string{".obj"},
	AssetKind: asset.KindModel,
	Handed:    asset.RightHanded,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}
