package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
)

type fakeImporter struct {
	Info
	calls int
}

func (f *fakeImporter) Import(ctx *Context, path string) (asset.Asset, error) {
	f.calls++
	if f.AssetKind == asset.KindTexture {
		t := asset.NewPlaceholderTexture(asset.TextureName(path))
		t.Placeholder = false
		return t, nil
	}
	return asset.NewModel(filepath.Base(path)), nil
}

type fakeExporter struct{ Info }

func (f *fakeExporter) Export(ctx *Context, a asset.Asset, path string, s *Settings) error {
	return nil
}

func testRegistry() (*Registry, *fakeImporter, *fakeImporter) {
	r := NewRegistry()
	plain := &fakeImporter{Info: Info{CodecName: "plain", Exts: []string{".lol"}, AssetKind: asset.KindModel}}
	setup := &fakeImporter{Info: Info{CodecName: "setup", Exts: []string{"setup.lol"}, AssetKind: asset.KindModel}}
	r.RegisterImporter(plain)
	r.RegisterImporter(setup)
	r.RegisterExporter(&fakeExporter{Info: Info{CodecName: "out", Exts: []string{".OUT"}, AssetKind: asset.KindModel}})
	return r, plain, setup
}

func TestRegistryResolve(t *testing.T) {
	r, plain, setup := testRegistry()

	i, err := r.ImporterFor("/cars/eagle/Setup.LOL", asset.KindModel)
	require.NoError(t, err)
	assert.Same(t, setup, i, "full file name must win over extension")

	i, err = r.ImporterFor("/cars/eagle/other.lol", asset.KindModel)
	require.NoError(t, err)
	assert.Same(t, plain, i)

	_, err = r.ImporterFor("car.lol", asset.KindTexture)
	assert.True(t, asset.IsUnsupported(err))

	_, err = r.ResolveImporter(".xyz", asset.KindModel)
	assert.True(t, asset.IsUnsupported(err))
	assert.Contains(t, err.Error(), ".xyz")

	e, err := r.ExporterFor("car.out", asset.KindModel)
	require.NoError(t, err)
	assert.Equal(t, "out", e.Name())

	c, err := r.Resolve(".out", asset.KindModel)
	require.NoError(t, err)
	assert.Equal(t, "out", c.Name())

	d, err := r.Detect("x/setup.lol")
	require.NoError(t, err)
	assert.Same(t, setup, d)

	assert.Len(t, r.Importers(), 2)
	assert.Len(t, r.Exporters(), 1)
}

func TestSettingsFromBag(t *testing.T) {
	s, err := SettingsFromBag(NewBag())
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, s.Scale)
	assert.Equal(t, mgl32.Ident4(), s.Transform)
	assert.Equal(t, asset.Native, s.Handed)
	assert.True(t, s.IsIdentity())

	b := NewBag().
		Set(SettingScale, float32(2)).
		Set(SettingHanded, "RightHanded").
		Set("Unknown", 42).
		Set("Flatten", true)
	s, err = SettingsFromBag(b)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, s.Scale)
	assert.Equal(t, asset.RightHanded, s.Handed)
	assert.Equal(t, []string{"Unknown", "Flatten"}, s.Extras.Keys())
	assert.True(t, s.Extras.BoolOr("Flatten", false))
	assert.Equal(t, "def", s.Extras.StringOr("Missing", "def"))
	assert.False(t, s.IsIdentity())

	_, err = SettingsFromBag(NewBag().Set(SettingTransform, "not a matrix"))
	assert.True(t, asset.IsValidation(err))
}

func TestNeedsFlip(t *testing.T) {
	var tests = []struct {
		format, scene asset.CoordinateSystem
		flip          bool
	}{
		{asset.LeftHanded, asset.LeftHanded, false},
		{asset.LeftHanded, asset.RightHanded, true},
		{asset.RightHanded, asset.LeftHanded, true},
		{asset.Native, asset.RightHanded, false},
		{asset.RightHanded, asset.Native, false},
	}
	for _, test := range tests {
		assert.Equal(t, test.flip, NeedsFlip(test.format, test.scene), "%v -> %v", test.format, test.scene)
	}
}

func TestPrepareModelDoesNotMutate(t *testing.T) {
	m := asset.NewModel("car")
	mesh := asset.NewMesh("body")
	part := mesh.AddPart(asset.NewMeshPart("paint"))
	part.AddFace(
		[3]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
		[3]mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[3]mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}})
	h, err := m.AddBone(asset.NoBone, "body", mgl32.Translate3D(0, 0, 2), mesh)
	require.NoError(t, err)

	ctx := NewContext(NewRegistry(), asset.LeftHanded)
	codec := Info{CodecName: "rh", Handed: asset.RightHanded}
	s := DefaultSettings()
	s.Scale = mgl32.Vec3{2, 2, 2}

	view, err := PrepareModel(ctx, codec, m, s)
	require.NoError(t, err)

	assert.Equal(t, mgl32.Translate3D(0, 0, 2), m.Bone(h).Transform)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, m.Meshes[0].Parts[0].Vertices[0].Position)

	world := view.WorldPositions(h)
	assert.True(t, world[0].ApproxEqual(mgl32.Vec3{0, 0, -6}), "got %v", world[0])
}

func TestLoadTextureMissing(t *testing.T) {
	r, _, _ := testRegistry()
	tex := &fakeImporter{Info: Info{CodecName: "tex", Exts: []string{".png"}, AssetKind: asset.KindTexture}}
	r.RegisterImporter(tex)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paint.png"), []byte("x"), 0666))

	ctx := NewContext(r, asset.LeftHanded)
	ctx.Textures = asset.NewTextureCache()
	var seen []error
	ctx.OnWarning = func(err error) { seen = append(seen, err) }

	got, err := ctx.LoadTexture(filepath.Join(dir, "paint.png"), "car.mat")
	require.NoError(t, err)
	assert.Equal(t, "paint", got.Name)
	assert.Equal(t, 1, tex.calls)
	assert.Empty(t, ctx.Warnings())

	missing, err := ctx.LoadTexture(filepath.Join(dir, "chrome.png"), "car.mat")
	require.NoError(t, err)
	assert.True(t, missing.Placeholder)
	require.Len(t, ctx.Warnings(), 1)
	assert.True(t, asset.IsNotFound(ctx.Warnings()[0]))
	assert.Len(t, seen, 1)
	assert.Equal(t, 2, ctx.Textures.Len())
}
