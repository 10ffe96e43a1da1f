// Package texture imports common image files as textures and exports
// textures to png, tif, bmp and webp.
package texture

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

func init() {
	pipeline.RegisterImporter(&Importer{Info: pipeline.Info{
		CodecName: "Image",
		Exts:      []string{".png", ".jpg", ".jpeg", ".bmp", ".tga", ".tif", ".tiff"},
		AssetKind: asset.KindTexture,
	}})
	pipeline.RegisterExporter(&Exporter{Info: pipeline.Info{
		CodecName: "Image",
		Exts:      []string{".png", ".tif", ".tiff", ".bmp", ".webp"},
		AssetKind: asset.KindTexture,
	}})
}

// Decode sniffs the image format from its magic bytes. TGA has no magic, so
// it is only tried when ext says so.
func Decode(data []byte, ext string) (image.Image, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't detect image type")
	}

	r := bytes.NewReader(data)
	switch kind.Extension {
	case "png":
		return png.Decode(r)
	case "jpg":
		return jpeg.Decode(r)
	case "bmp":
		return bmp.Decode(r)
	case "tif":
		return tiff.Decode(r)
	}
	if kind == filetype.Unknown && strings.ToLower(ext) == ".tga" {
		return tga.Decode(r)
	}
	return nil, errors.Errorf("Unsupported image type %q (%s)", kind.Extension, kind.MIME.Value)
}

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	return asset.NewTextureFromImage(asset.TextureName(path), filepath.Base(path), img), nil
}

type Exporter struct {
	pipeline.Info
}

// Encode writes img in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(w, img)
	case ".webp":
		return nativewebp.Encode(w, img, nil)
	}
	return &asset.UnsupportedFormatError{Ext: ext, Kind: asset.KindTexture, Direction: "exporter"}
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	t, ok := a.(*asset.Texture)
	if !ok {
		return errors.Errorf("[texture] Cannot export %v", a.AssetKind())
	}
	if t.Image == nil {
		return asset.Validationf("texture export", "texture %q has no pixels", t.Name)
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		if err := Encode(w, t.Image, filepath.Ext(path)); err != nil {
			return asset.NewFormatError(e.Name(), path, err)
		}
		return nil
	})
}
