package scene

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/asset/assettest"
	"github.com/mogaika/assetpipe/pipeline"
)

type fakeImporter struct {
	pipeline.Info
	calls   int32
	delay   time.Duration
	produce func(ctx *pipeline.Context, path string) (asset.Asset, error)
}

func (f *fakeImporter) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay != 0 {
		time.Sleep(f.delay)
	}
	return f.produce(ctx, path)
}

func (f *fakeImporter) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

// carImporter reads nothing: it names a Car model after the file. Files
// containing "bad" fail with a FormatError.
func carImporter(ext string) *fakeImporter {
	f := &fakeImporter{Info: pipeline.Info{CodecName: "fake " + ext, Exts: []string{ext}, AssetKind: asset.KindModel}}
	f.produce = func(ctx *pipeline.Context, path string) (asset.Asset, error) {
		if data, err := os.ReadFile(path); err == nil && strings.Contains(string(data), "bad") {
			return nil, asset.FormatErrorf(f.Name(), path, "bad content")
		}
		m := assettest.Car()
		m.Name = asset.TextureName(path)
		return m, nil
	}
	return f
}

type recorder struct {
	lock     sync.Mutex
	changes  []ChangeKind
	keys     []int
	payloads []interface{}
	progress []string
	errors   []error
	warnings []error
}

func (r *recorder) OnChange(kind ChangeKind, key int, payload interface{}) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.changes = append(r.changes, kind)
	r.keys = append(r.keys, key)
	r.payloads = append(r.payloads, payload)
}

func (r *recorder) OnProgress(status string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.progress = append(r.progress, status)
}

func (r *recorder) OnError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) OnWarning(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.warnings = append(r.warnings, err)
}

func (r *recorder) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.changes, r.keys, r.payloads = nil, nil, nil
	r.progress, r.errors, r.warnings = nil, nil, nil
}

func newScene(t *testing.T, importers ...pipeline.Importer) (*Manager, *recorder) {
	t.Helper()
	r := pipeline.NewRegistry()
	for _, i := range importers {
		r.RegisterImporter(i)
	}
	m := New(r, asset.LeftHanded)
	rec := &recorder{}
	m.Subscribe(rec)
	return m, rec
}

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))
	return path
}

func TestKeyPacking(t *testing.T) {
	for _, c := range []struct {
		model int
		bone  asset.BoneHandle
	}{{0, 0}, {0, 7}, {3, 0}, {12, KeyMultiplier - 1}} {
		key := ModelBoneKey(c.model, c.bone)
		mi, h := SplitKey(key)
		assert.Equal(t, c.model, mi)
		assert.Equal(t, c.bone, h)
	}
	mi, h := SplitKey(SceneKey)
	assert.Equal(t, -1, mi)
	assert.Equal(t, asset.NoBone, h)
	assert.NotEqual(t, ModelBoneKey(1, 0), ModelBoneKey(0, 1))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	m, rec := newScene(t)
	var count int
	stop := m.Subscribe(ObserverFuncs{Change: func(ChangeKind, int, interface{}) { count++ }})
	m.Change(ChangeAdd, SceneKey, nil)
	stop()
	m.Change(ChangeAdd, SceneKey, nil)
	assert.Equal(t, 1, count)
	assert.Len(t, rec.changes, 2)
}

func TestLoadUsesCache(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")

	first, err := Load[*asset.Model](m, imp, "a.car", dir, true)
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeMunge}, rec.changes)
	assert.Equal(t, []int{SceneKey}, rec.keys)
	assert.Equal(t, []string{"Loaded a.car"}, rec.progress)
	require.Len(t, m.Models(), 1)

	second, err := Load[*asset.Model](m, imp, "a.car", dir+string(filepath.Separator), false)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, imp.Calls())

	reloaded, err := Load[*asset.Model](m, imp, "a.car", dir, false, ForceReload())
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
	assert.Equal(t, 2, imp.Calls())
	assettest.AssertModelsEqual(t, first, reloaded)
}

func TestLoadDecodesOncePerKeyConcurrently(t *testing.T) {
	imp := carImporter(".car")
	imp.delay = 20 * time.Millisecond
	m, _ := newScene(t, imp)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")

	results := make([]*asset.Model, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			model, err := Load[*asset.Model](m, imp, "a.car", dir, false)
			assert.NoError(t, err)
			results[i] = model
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, imp.Calls())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestLoadFailureLeavesSceneUnchanged(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	path := touch(t, dir, "a.car", "bad")

	_, err := Load[*asset.Model](m, imp, "a.car", dir, true)
	require.Error(t, err)
	assert.True(t, asset.IsFormat(err))
	assert.Empty(t, m.Models())
	assert.Empty(t, rec.changes)
	require.Len(t, rec.errors, 1)
	assert.Equal(t, err, rec.errors[0])

	// failures are not cached
	require.NoError(t, os.WriteFile(path, []byte("good"), 0666))
	_, err = Load[*asset.Model](m, imp, "a.car", dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, imp.Calls())
	assert.Len(t, m.Models(), 1)
}

func TestLoadWrongAssetType(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")

	_, err := Load[*asset.Texture](m, imp, "a.car", dir, true)
	assert.True(t, asset.IsValidation(err))
	assert.Empty(t, m.Models())
	assert.Empty(t, rec.changes)
}

func TestLoadSameModelTwice(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")

	_, err := Load[*asset.Model](m, imp, "a.car", dir, true)
	require.NoError(t, err)
	_, err = Load[*asset.Model](m, imp, "a.car", dir, true)
	assert.True(t, asset.IsValidation(err))
	assert.Len(t, m.Models(), 1)
	assert.Len(t, rec.changes, 1)
}

func TestLoadSharesMaterialsAndTextures(t *testing.T) {
	imp := carImporter(".car")
	inner := imp.produce
	imp.produce = func(ctx *pipeline.Context, path string) (asset.Asset, error) {
		tex, err := ctx.LoadTexture(filepath.Join(filepath.Dir(path), "paint.png"), path)
		if err != nil {
			return nil, err
		}
		ctx.Materials.Add(asset.NewMaterial("paint", tex))
		return inner(ctx, path)
	}
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")
	touch(t, dir, "b.car", "")

	_, err := m.LoadPath(filepath.Join(dir, "a.car"), asset.KindModel, true)
	require.NoError(t, err)
	_, err = m.LoadPath(filepath.Join(dir, "b.car"), asset.KindModel, true)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Materials().Len())
	assert.Equal(t, 1, m.Textures().Len())
	paint := m.Materials().Find("paint")
	require.NotNil(t, paint)
	assert.Same(t, m.Textures().Get("paint"), paint.Texture)
	assert.True(t, paint.Texture.Placeholder)

	// one warning per decode
	require.Len(t, rec.warnings, 2)
	assert.True(t, asset.IsNotFound(rec.warnings[0]))
}

func TestLoadDocumentAttachesToSelection(t *testing.T) {
	car := carImporter(".car")
	doc := &fakeImporter{Info: pipeline.Info{CodecName: "fake setup", Exts: []string{"setup.lol"}, AssetKind: asset.KindDocument}}
	doc.produce = func(*pipeline.Context, string) (asset.Asset, error) { return asset.NewVehicleSetup(), nil }
	m, rec := newScene(t, car, doc)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")
	setupPath := touch(t, dir, "setup.lol", "")

	_, err := m.LoadPath(setupPath, asset.KindDocument, true)
	assert.True(t, asset.IsValidation(err))
	assert.Empty(t, rec.changes)

	model, err := m.LoadPath(filepath.Join(dir, "a.car"), asset.KindModel, true)
	require.NoError(t, err)
	_, err = m.LoadPath(setupPath, asset.KindDocument, true)
	require.NoError(t, err)
	assert.IsType(t, &asset.Setup{}, model.(*asset.Model).Documents[asset.DocumentSetup])
	assert.Equal(t, 1, doc.Calls())
}

func TestLoadPathUnsupported(t *testing.T) {
	m, rec := newScene(t)
	_, err := m.LoadPath("model.xyz", asset.KindModel, true)
	assert.True(t, asset.IsUnsupported(err))
	assert.Len(t, rec.errors, 1)
}

func TestResetKeepsCache(t *testing.T) {
	imp := carImporter(".car")
	m, rec := newScene(t, imp)
	dir := t.TempDir()
	touch(t, dir, "a.car", "")

	_, err := Load[*asset.Model](m, imp, "a.car", dir, true)
	require.NoError(t, err)
	m.Materials().Add(asset.NewMaterial("x", nil))
	m.AddEntity(asset.NewEntity("e", asset.EntityVFX))

	m.Reset()
	assert.Empty(t, m.Models())
	assert.Empty(t, m.Entities())
	assert.Equal(t, 0, m.Materials().Len())
	mi, _ := m.Selection()
	assert.Equal(t, -1, mi)

	_, err = Load[*asset.Model](m, imp, "a.car", dir, true)
	require.NoError(t, err)
	assert.Equal(t, 1, imp.Calls())
	assert.Len(t, m.Models(), 1)
	assert.Equal(t, ChangeMunge, rec.changes[len(rec.changes)-1])
}

func TestCoordinateSystemNotRetroactive(t *testing.T) {
	m, _ := newScene(t)
	model := assettest.Car()
	require.NoError(t, m.Add(model))
	before := model.WorldPositions(model.FindBone("body").Handle)

	m.SetCoordinateSystem(asset.RightHanded)
	assert.Equal(t, asset.RightHanded, m.CoordinateSystem())
	assert.Equal(t, before, model.WorldPositions(model.FindBone("body").Handle))
}

// chain builds root -> a -> b with non trivial transforms.
func chain(t *testing.T, m *Manager) (root, a, b asset.BoneHandle) {
	model := asset.NewModel("chain")
	var err error
	root, err = model.AddBone(asset.NoBone, "root", mgl32.Translate3D(1, 2, 3), nil)
	require.NoError(t, err)
	a, err = model.AddBone(root, "a", mgl32.HomogRotate3DZ(0.5).Mul4(mgl32.Scale3D(2, 2, 2)), nil)
	require.NoError(t, err)
	b, err = model.AddBone(a, "b", mgl32.Translate3D(0, 1, 0), nil)
	require.NoError(t, err)
	require.NoError(t, m.Add(model))
	return
}

func TestDeleteBone(t *testing.T) {
	m, rec := newScene(t)
	root, a, b := chain(t, m)
	model := m.Model(0)
	before := model.Bone(b).CombinedTransform
	rec.reset()

	require.NoError(t, m.DeleteBone(ModelBoneKey(0, a)))
	assert.Equal(t, []ChangeKind{ChangeDelete}, rec.changes)
	assert.Equal(t, []int{ModelBoneKey(0, a)}, rec.keys)
	assert.Equal(t, "a", rec.payloads[0].(*asset.Bone).Name)

	assert.Nil(t, model.Bone(a))
	assert.Equal(t, root, model.Bone(b).Parent)
	assert.True(t, before.ApproxEqualThreshold(model.Bone(b).CombinedTransform, 1e-5))
	require.NoError(t, model.CheckHierarchy(1e-4))

	rec.reset()
	err := m.DeleteBone(ModelBoneKey(0, a))
	assert.True(t, asset.IsValidation(err))
	assert.Empty(t, rec.changes)
	assert.Len(t, rec.errors, 1)

	err = m.DeleteBone(ModelBoneKey(5, 0))
	assert.True(t, asset.IsValidation(err))
}

func TestEditsFireOneChange(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	model := m.Model(0)
	body := model.FindBone("body").Handle
	key := ModelBoneKey(0, body)

	for _, c := range []struct {
		name string
		edit func() error
		kind ChangeKind
	}{
		{"rename", func() error { return m.RenameBone(key, "chassis") }, ChangeRename},
		{"transform", func() error { return m.TransformBone(key, mgl32.Translate3D(0, 1, 0)) }, ChangeTransform},
		{"munge", func() error { return m.MungeBone(key) }, ChangeMunge},
		{"flip uvs", func() error { return m.FlipUVs(key) }, ChangeMunge},
	} {
		rec.reset()
		require.NoError(t, c.edit(), c.name)
		assert.Equal(t, []ChangeKind{c.kind}, rec.changes, c.name)
		assert.Equal(t, []int{key}, rec.keys, c.name)
	}
	assert.Equal(t, "chassis", model.Bone(body).Name)
	require.NoError(t, model.CheckHierarchy(1e-4))

	rec.reset()
	assert.Error(t, m.RenameBone(key, ""))
	assert.Error(t, m.MungeBone(ModelBoneKey(0, model.FindBone("driver").Handle)))
	assert.Empty(t, rec.changes)
	assert.Len(t, rec.errors, 2)
}

func TestAddBone(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	rec.reset()

	root := m.Model(0).Root().Handle
	h, err := m.AddBone(0, root, "vfx_exhaust", mgl32.Translate3D(0, 0, -2), nil)
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeAdd}, rec.changes)
	assert.Equal(t, []int{ModelBoneKey(0, h)}, rec.keys)

	_, err = m.AddBone(0, 999, "orphan", mgl32.Ident4(), nil)
	assert.Error(t, err)
	assert.Len(t, rec.changes, 1)
}

func TestMungeBoneIdempotent(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	model := m.Model(0)
	body := model.FindBone("body").Handle
	key := ModelBoneKey(0, body)
	before := model.WorldPositions(body)

	rec.reset()
	require.NoError(t, m.MungeBone(key))
	once := model.WorldPositions(body)
	require.NoError(t, m.MungeBone(key))
	twice := model.WorldPositions(body)

	require.Len(t, rec.payloads, 2)
	assert.NotEqual(t, mgl32.Vec3{}, rec.payloads[0])
	assert.True(t, rec.payloads[1].(mgl32.Vec3).ApproxEqualThreshold(mgl32.Vec3{}, 1e-5))
	for i := range before {
		assert.True(t, before[i].ApproxEqualThreshold(once[i], 1e-4))
		assert.True(t, once[i].ApproxEqualThreshold(twice[i], 1e-4))
	}
}

func TestEditCanceled(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	rec.reset()

	err := m.Edit("dialog", ModelBoneKey(0, 0), func(*asset.Model, asset.BoneHandle) (ChangeKind, interface{}, error) {
		return ChangeRename, nil, ErrCanceled
	})
	assert.Equal(t, ErrCanceled, err)
	assert.Empty(t, rec.changes)
	assert.Empty(t, rec.errors)
}

func TestSelection(t *testing.T) {
	m, rec := newScene(t)
	require.NoError(t, m.Add(assettest.Car()))
	mi, h := m.Selection()
	assert.Equal(t, 0, mi)
	assert.Equal(t, asset.NoBone, h)

	wheel := m.Model(0).FindBone("wheel_fl").Handle
	rec.reset()
	require.NoError(t, m.Select(ModelBoneKey(0, wheel)))
	assert.Empty(t, rec.changes)

	require.NoError(t, m.EditSelected("rename", func(model *asset.Model, h asset.BoneHandle) (ChangeKind, interface{}, error) {
		return ChangeRename, "wheel_fr", model.Rename(h, "wheel_fr")
	}))
	assert.Equal(t, "wheel_fr", m.Model(0).Bone(wheel).Name)

	require.NoError(t, m.DeleteBone(ModelBoneKey(0, wheel)))
	_, h = m.Selection()
	assert.Equal(t, asset.NoBone, h)

	assert.Error(t, m.Select(ModelBoneKey(0, wheel)))
	assert.Error(t, m.SelectModel(3))
}

func TestSaveUnsupported(t *testing.T) {
	m, rec := newScene(t)
	err := m.Save(filepath.Join(t.TempDir(), "car.xyz"), assettest.Car(), nil)
	assert.True(t, asset.IsUnsupported(err))
	assert.Len(t, rec.errors, 1)
}

func TestWatchInvalidatesCache(t *testing.T) {
	imp := carImporter(".car")
	m, _ := newScene(t, imp)
	dir := t.TempDir()
	path := touch(t, dir, "a.car", "")

	_, err := Load[*asset.Model](m, imp, "a.car", dir, false)
	require.NoError(t, err)
	require.True(t, m.Cached(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx, dir))

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0666))
	require.Eventually(t, func() bool { return !m.Cached(path) }, 5*time.Second, 10*time.Millisecond)

	_, err = Load[*asset.Model](m, imp, "a.car", dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, imp.Calls())
}
