// Package pipeline holds the importer/exporter contracts and the registry
// that maps a file extension and asset kind to a codec.
package pipeline

import (
	"github.com/mogaika/assetpipe/asset"
)

// Codec is the metadata every importer and exporter declares.
type Codec interface {
	Name() string
	// Extensions are lower case, either ".ext" or a full file name such as
	// "setup.lol" that wins over the plain extension.
	Extensions() []string
	Kind() asset.Kind
	// Handedness is Native for formats without a chirality convention.
	Handedness() asset.CoordinateSystem
}

type Importer interface {
	Codec
	Import(ctx *Context, path string) (asset.Asset, error)
}

// Exporter must treat a as read only. Model exporters call PrepareModel to
// get a private copy with settings applied.
type Exporter interface {
	Codec
	Export(ctx *Context, a asset.Asset, path string, s *Settings) error
}

// Info implements Codec for embedding into concrete codecs.
type Info struct {
	CodecName string
	Exts      []string
	AssetKind asset.Kind
	Handed    asset.CoordinateSystem
}

func (i Info) Name() string                       { return i.CodecName }
func (i Info) Extensions() []string               { return i.Exts }
func (i Info) Kind() asset.Kind                   { return i.AssetKind }
func (i Info) Handedness() asset.CoordinateSystem { return i.Handed }
