package cnt

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/asset/assettest"
	"github.com/mogaika/assetpipe/pipeline"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "car.cnt")
	ctx := pipeline.NewContext(nil, asset.LeftHanded)
	model := assettest.Car()

	exp, err := pipeline.DefaultRegistry.ExporterFor(path, asset.KindModel)
	require.NoError(t, err)
	require.NoError(t, exp.Export(ctx, model, path, nil))

	imp, err := pipeline.DefaultRegistry.ImporterFor(path, asset.KindModel)
	require.NoError(t, err)
	a, err := imp.Import(ctx, path)
	require.NoError(t, err)

	loaded := a.(*asset.Model)
	assert.Equal(t, "car", loaded.Name)
	assettest.AssertModelsEqual(t, model, loaded)
}

func TestRoundTripAcrossHandedness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "car.cnt")
	ctx := pipeline.NewContext(nil, asset.RightHanded)
	model := assettest.Car()

	require.NoError(t, (&Exporter{Info: info}).Export(ctx, model, path, nil))
	a, err := (&Importer{Info: info}).Import(ctx, path)
	require.NoError(t, err)
	assettest.AssertModelsEqual(t, model, a.(*asset.Model))

	// the file itself is left handed: reading it natively shows mirrored data
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	raw, err := NewFromData(data)
	require.NoError(t, err)
	orig := model.FindBone("wheel_fl").Transform
	assert.InDelta(t, 1.5, orig[14], 1e-6)
	assert.InDelta(t, -1.5, raw.FindBone("wheel_fl").Transform[14], 1e-5)
}

func TestExportDoesNotMutate(t *testing.T) {
	model := assettest.Car()
	before := model.FindBone("body").Transform
	s := pipeline.DefaultSettings()
	s.Scale[0] = 3

	ctx := pipeline.NewContext(nil, asset.RightHanded)
	require.NoError(t, (&Exporter{Info: info}).Export(ctx, model, filepath.Join(t.TempDir(), "x.cnt"), s))
	assert.Equal(t, before, model.FindBone("body").Transform)
}

func TestCorruptInput(t *testing.T) {
	model := assettest.Car()
	data, err := Marshal(model)
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":     {},
		"truncated": data[:len(data)/2],
		"no header": data[8+binary.LittleEndian.Uint32(data[4:]):],
		"no end":    data[:len(data)-8],
	}
	huge := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(huge[4:], 0xffffff)
	tests["oversized chunk"] = huge

	for name, raw := range tests {
		_, err := NewFromData(raw)
		assert.Error(t, err, name)
	}

	path := filepath.Join(t.TempDir(), "bad.cnt")
	require.NoError(t, os.WriteFile(path, data[:20], 0666))
	_, err = (&Importer{Info: info}).Import(pipeline.NewContext(nil, asset.LeftHanded), path)
	assert.True(t, asset.IsFormat(err))

	_, err = (&Importer{Info: info}).Import(pipeline.NewContext(nil, asset.LeftHanded), path+".missing")
	assert.True(t, asset.IsIO(err))
}

func TestLongBoneName(t *testing.T) {
	model := asset.NewModel("long")
	name := ""
	for len(name) <= BoneNameSize {
		name += "x"
	}
	_, err := model.AddBone(asset.NoBone, name, mgl32.Ident4(), nil)
	require.NoError(t, err)
	_, err = Marshal(model)
	assert.Error(t, err)
}
