package scene

import (
	"archive/zip"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/asset/assettest"
	"github.com/mogaika/assetpipe/kvdoc"

	_ "github.com/mogaika/assetpipe/formats/cnt"
	_ "github.com/mogaika/assetpipe/formats/mat"
	_ "github.com/mogaika/assetpipe/formats/setup"
	_ "github.com/mogaika/assetpipe/formats/structure"
	_ "github.com/mogaika/assetpipe/formats/texture"
	_ "github.com/mogaika/assetpipe/formats/vehiclecfg"
)

func actorModel(t *testing.T) *asset.Model {
	m := asset.NewModel("level")
	root, err := m.AddBone(asset.NoBone, "level", mgl32.Ident4(), nil)
	require.NoError(t, err)
	_, err = m.AddBone(root, "&£07", mgl32.Translate3D(1, 0, 0), nil)
	require.NoError(t, err)
	hat := asset.NewMesh("C2_tophat")
	hat.AddPart(assettest.Quad("felt", 1))
	_, err = m.AddBone(root, "&03hat", mgl32.Translate3D(0, 2, 0), hat)
	require.NoError(t, err)
	_, err = m.AddBone(root, "building", mgl32.Ident4(), nil)
	require.NoError(t, err)
	return m
}

func TestConvertActorsToEntities(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(actorModel(t)))
	rec.reset()

	n, err := m.ConvertActorsToEntities(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []ChangeKind{ChangeMunge}, rec.changes)
	assert.Equal(t, []int{SceneKey}, rec.keys)

	model := m.Model(0)
	assert.Equal(t, 2, model.BoneCount())
	assert.Nil(t, model.FindBone("&£07"))
	assert.Empty(t, model.Meshes)

	entities := m.Entities()
	require.Len(t, entities, 2)
	byType := map[asset.EntityType]*asset.Entity{}
	for _, e := range entities {
		byType[e.Type] = e
	}

	pup := byType[asset.EntityPowerup]
	require.NotNil(t, pup)
	assert.Equal(t, "pup_07", pup.Name)
	assert.Equal(t, "errol_B00BIE07_001", pup.ID)
	assert.Equal(t, mgl32.Translate3D(1, 0, 0), pup.Transform)

	acc := byType[asset.EntityAccessory]
	require.NotNil(t, acc)
	assert.Equal(t, "C2_tophat", acc.Name)
	assert.Equal(t, "errol_HEAD0003_002", acc.ID)
	assert.Equal(t, asset.EntityAssetSprite, acc.AssetType)

	_, err = m.ConvertActorsToEntities(4)
	assert.True(t, asset.IsValidation(err))
}

func TestRemoveLOD(t *testing.T) {
	m, rec := newScene(t)
	model := asset.NewModel("car")
	root, _ := model.AddBone(asset.NoBone, "car", mgl32.Ident4(), nil)
	for _, name := range []string{"body_LOD1", "body_LOD_2", "bodyLOD3", "wheel", "LOD"} {
		_, err := model.AddBone(root, name, mgl32.Ident4(), nil)
		require.NoError(t, err)
	}
	require.NoError(t, m.Add(model))
	rec.reset()

	n, err := m.RemoveLOD(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []ChangeKind{ChangeMunge}, rec.changes)

	var names []string
	for _, b := range model.Bones() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"car", "body_LOD1", "wheel", "LOD"}, names)
}

// degenerateModel hangs bones under a root that flattens X, so a bone with
// children cannot be removed from under it.
func degenerateModel(t *testing.T, names ...string) *asset.Model {
	t.Helper()
	model := asset.NewModel("flat")
	root, err := model.AddBone(asset.NoBone, "root", mgl32.Scale3D(0, 1, 1), nil)
	require.NoError(t, err)
	for _, name := range names {
		h, err := model.AddBone(root, name, mgl32.Translate3D(1, 0, 0), nil)
		require.NoError(t, err)
		if strings.HasSuffix(name, "+child") {
			_, err = model.AddBone(h, "part", mgl32.Ident4(), nil)
			require.NoError(t, err)
		}
	}
	return model
}

func TestVehicleEditsAreAllOrNothing(t *testing.T) {
	for _, c := range []struct {
		name  string
		bones []string
		edit  func(m *Manager) (int, error)
	}{
		{"convert actors", []string{"&£07+child", "&03hat"}, func(m *Manager) (int, error) { return m.ConvertActorsToEntities(0) }},
		{"remove lod", []string{"body_LOD2+child", "bodyLOD3"}, func(m *Manager) (int, error) { return m.RemoveLOD(0) }},
	} {
		t.Run(c.name, func(t *testing.T) {
			m, rec := newScene(t)
			model := degenerateModel(t, c.bones...)
			require.NoError(t, m.Add(model))
			before := model.BoneCount()
			rec.reset()

			n, err := c.edit(m)
			assert.True(t, asset.IsValidation(err), "%v", err)
			assert.Zero(t, n)
			assert.Equal(t, before, model.BoneCount())
			for _, name := range c.bones {
				assert.NotNil(t, model.FindBone(name), name)
			}
			assert.NoError(t, model.CheckHierarchy(assettest.Tolerance))
			assert.Empty(t, m.Entities())
			assert.Empty(t, rec.changes)
			assert.Len(t, rec.errors, 1)
		})
	}
}

func TestLinkVehicleEntitiesAndWheelPreview(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	rec.reset()

	linked, err := m.LinkVehicleEntities(0)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, []ChangeKind{ChangeAdd}, rec.changes)

	model := m.Model(0)
	for _, e := range linked {
		b := e.Link.Resolve()
		require.NotNil(t, b)
		assert.Equal(t, b.Name, e.Name)
		assert.Equal(t, b.CombinedTransform, e.Transform)
	}
	assert.Equal(t, asset.EntityWheel, linked[0].Type)
	assert.Equal(t, asset.EntityDriver, linked[1].Type)
	assert.NotEqual(t, linked[0].ID, linked[1].ID)

	wheel := asset.NewModel("wheel")
	m.SetWheelPreview(wheel)
	assert.Equal(t, asset.EntityAssetModel, linked[0].AssetType)
	assert.Same(t, wheel, linked[0].Asset)
	assert.Equal(t, asset.EntityAssetSprite, linked[1].AssetType)

	m.SetWheelPreview(nil)
	assert.Equal(t, asset.EntityAssetSprite, linked[0].AssetType)
	assert.Nil(t, linked[0].Asset)

	// links are weak
	require.NoError(t, m.DeleteBone(ModelBoneKey(0, model.FindBone("wheel_fl").Handle)))
	assert.Nil(t, linked[0].Link.Resolve())
}

func paintTexture() *asset.Texture {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.SetNRGBA(i%4, i/4, color.NRGBA{uint8(i * 16), 0x80, 0x20, 0xff})
	}
	return asset.NewTextureFromImage("paint", "paint.png", img)
}

func TestSaveAndLoadVehicle(t *testing.T) {
	m := New(nil, asset.LeftHanded)
	var progress []string
	m.Subscribe(ObserverFuncs{Progress: func(s string) { progress = append(progress, s) }})

	car := assettest.Car()
	require.NoError(t, m.Add(car))
	paint := m.Textures().GetOrAdd(paintTexture())
	m.Materials().Add(asset.NewMaterial("paint", paint))
	m.Materials().Add(asset.NewMaterial("chrome", paint))
	m.Materials().Add(asset.NewMaterial("glass", asset.NewPlaceholderTexture("glass")))

	dir := filepath.Join(t.TempDir(), "eagle")
	require.NoError(t, m.SaveVehicle(dir, VehicleOptions{PrettyName: "Eagle R", Author: "me", Package: true}))

	for _, name := range []string{"car.cnt", "paint.tif", "car.mat", "setup.lol", "Structure.xml",
		"SystemsDamage.xml", "vehicle_setup.cfg", "car.flump", "eagle.zip"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "glass.tif"))
	assert.Equal(t, "Vehicle 'eagle' saved successfully!", progress[len(progress)-1])
	assert.Len(t, car.Documents, 4)

	flump, err := kvdoc.Load(filepath.Join(dir, "car.flump"))
	require.NoError(t, err)
	assert.Equal(t, "eagle", flump.GetOr("car", ""))
	assert.Equal(t, "Eagle R", flump.GetOr("pretty.name", ""))
	assert.Equal(t, "me", flump.GetOr("author", ""))

	zr, err := zip.OpenReader(filepath.Join(dir, "eagle.zip"))
	require.NoError(t, err)
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	zr.Close()
	sort.Strings(entries)
	assert.Contains(t, entries, "eagle/car.cnt")
	assert.Contains(t, entries, "eagle/setup.lol")
	assert.NotContains(t, entries, "eagle/eagle.zip")

	// existing paperwork is kept
	custom := []byte("module((...), vehicle_setup_context)\nMass{Value=900}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.lol"), custom, 0666))
	require.NoError(t, m.SaveVehicle(dir, VehicleOptions{}))
	data, err := os.ReadFile(filepath.Join(dir, "setup.lol"))
	require.NoError(t, err)
	assert.Equal(t, custom, data)

	loader := New(nil, asset.LeftHanded)
	loaded, err := loader.LoadVehicle(dir)
	require.NoError(t, err)
	assettest.AssertModelsEqual(t, car, loaded)
	assert.Len(t, loaded.Documents, 4)
	setup := loaded.Documents[asset.DocumentSetup].(*asset.Setup)
	mass, ok := setup.Parameter("Mass", "Value")
	assert.True(t, ok)
	assert.Equal(t, "900", mass)
	cfg := loaded.Documents[asset.DocumentVehicleSetupConfig].(*asset.VehicleSetupConfig)
	assert.Equal(t, "eagle", cfg.Values.GetOr("VehicleName", ""))

	var types []asset.EntityType
	for _, e := range loader.Entities() {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []asset.EntityType{asset.EntityWheel, asset.EntityDriver}, types)
}

func TestSaveVehicleEmptyScene(t *testing.T) {
	m, rec := newScene(t)
	err := m.SaveVehicle(t.TempDir(), VehicleOptions{})
	assert.True(t, asset.IsValidation(err))
	assert.Len(t, rec.errors, 1)
}

func TestSaveVehicleRejectsBrokenSidecarValues(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	dir := filepath.Join(t.TempDir(), "eagle")

	err := m.SaveVehicle(dir, VehicleOptions{Author: "me\nwebsite:=evil"})
	assert.True(t, asset.IsValidation(err), "%v", err)
	assert.Len(t, rec.errors, 1)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "nothing may be written")
}

func TestLoadVehicleMissing(t *testing.T) {
	m := New(nil, asset.LeftHanded)
	_, err := m.LoadVehicle(t.TempDir())
	assert.Error(t, err)
	assert.Empty(t, m.Models())
}
