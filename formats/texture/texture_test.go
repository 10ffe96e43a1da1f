package texture

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

func gradient() *asset.Texture {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 16), uint8(y * 32), 0x80, 0xff})
		}
	}
	return asset.NewTextureFromImage("gradient", "", img)
}

func TestRoundTrip(t *testing.T) {
	ctx := pipeline.NewContext(nil, asset.LeftHanded)
	src := gradient()

	for _, ext := range []string{".png", ".tif", ".bmp"} {
		path := filepath.Join(t.TempDir(), "gradient"+ext)
		exp, err := pipeline.DefaultRegistry.ExporterFor(path, asset.KindTexture)
		require.NoError(t, err)
		require.NoError(t, exp.Export(ctx, src, path, nil), ext)

		a, err := ctx.ImportFile(path, asset.KindTexture)
		require.NoError(t, err, ext)
		got := a.(*asset.Texture)
		assert.Equal(t, "gradient", got.Name)
		assert.Equal(t, "gradient"+ext, got.FileName)
		assert.Equal(t, src.Image.Bounds(), got.Image.Bounds())
		assert.Equal(t, src.Image.Pix, got.Image.Pix, ext)
	}
}

func TestWebPExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradient.webp")
	require.NoError(t, (&Exporter{}).Export(pipeline.NewContext(nil, asset.LeftHanded), gradient(), path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
}

func TestSniffingIgnoresExtension(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "real.png")
	require.NoError(t, (&Exporter{}).Export(pipeline.NewContext(nil, asset.LeftHanded), gradient(), png, nil))

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	lying := filepath.Join(dir, "lying.jpg")
	require.NoError(t, os.WriteFile(lying, data, 0666))

	a, err := (&Importer{}).Import(pipeline.NewContext(nil, asset.LeftHanded), lying)
	require.NoError(t, err)
	assert.Equal(t, 16, a.(*asset.Texture).Image.Bounds().Dx())
}

func TestCorruptImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an image"), 0666))
	_, err := (&Importer{}).Import(pipeline.NewContext(nil, asset.LeftHanded), path)
	assert.True(t, asset.IsFormat(err))
}
