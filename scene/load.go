package scene

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

type cacheKey struct {
	dir, name, importer string
}

// cacheEntry is created before decoding starts. done is closed once the
// fields below it are final, so concurrent loads of one key wait instead of
// decoding again.
type cacheEntry struct {
	path string
	done chan struct{}

	asset     asset.Asset
	materials *asset.MaterialList
	textures  *asset.TextureCache
	warnings  []error
	err       error
}

type loadCache struct {
	lock    sync.Mutex
	entries map[cacheKey]*cacheEntry
}

type loadOptions struct {
	force bool
}

type LoadOption func(*loadOptions)

// ForceReload decodes the file again and replaces the cached result.
func ForceReload() LoadOption {
	return func(o *loadOptions) { o.force = true }
}

func importerId(imp pipeline.Importer) string {
	return fmt.Sprintf("%T/%s", imp, imp.Name())
}

// decode returns the cached entry for the key or decodes it. fresh is true
// for the caller that actually ran the importer.
func (m *Manager) decode(imp pipeline.Importer, dir, name string, force bool) (e *cacheEntry, fresh bool, err error) {
	key := cacheKey{dir: filepath.Clean(dir), name: name, importer: importerId(imp)}

	m.cache.lock.Lock()
	if existing, ok := m.cache.entries[key]; ok && !force {
		m.cache.lock.Unlock()
		<-existing.done
		return existing, false, existing.err
	}
	e = &cacheEntry{path: filepath.Join(key.dir, name), done: make(chan struct{})}
	m.cache.entries[key] = e
	m.cache.lock.Unlock()

	log.Printf("[scene] Decoding %q with %s", e.path, imp.Name())
	ctx := m.decodeContext()
	e.asset, e.err = imp.Import(ctx, e.path)
	e.materials, e.textures = ctx.Materials, ctx.Textures
	e.warnings = ctx.Warnings()
	if e.err == nil && e.asset == nil {
		e.err = errors.Errorf("%s returned no asset", imp.Name())
	}

	if e.err != nil {
		m.cache.lock.Lock()
		if m.cache.entries[key] == e {
			delete(m.cache.entries, key)
		}
		m.cache.lock.Unlock()
	}
	close(e.done)
	return e, true, e.err
}

// Load imports dir/name with imp, at most once per (dir, name, importer)
// unless ForceReload is given. With addToScene the asset is inserted and a
// Munge change for the whole scene is fired. On failure the scene is left
// as it was and the error is also sent to error observers.
func Load[T asset.Asset](m *Manager, imp pipeline.Importer, name, dir string, addToScene bool, opts ...LoadOption) (T, error) {
	var zero T
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	e, fresh, err := m.decode(imp, dir, name, o.force)
	if fresh {
		m.warn(e.warnings)
	}
	if err != nil {
		return zero, m.fail(errors.Wrapf(err, "Can't load %q", filepath.Join(dir, name)))
	}

	result, ok := e.asset.(T)
	if !ok {
		return zero, m.fail(asset.Validationf("load", "%s produced %T for %q", imp.Name(), e.asset, e.path))
	}

	if addToScene {
		if err := m.insert(e.asset, e.materials.Entries(), e.textures); err != nil {
			return zero, m.fail(err)
		}
		m.Progress(fmt.Sprintf("Loaded %s", name))
		m.Change(ChangeMunge, SceneKey, e.asset)
	}
	return result, nil
}

// LoadPath resolves the importer from the file name.
func (m *Manager) LoadPath(path string, kind asset.Kind, addToScene bool, opts ...LoadOption) (asset.Asset, error) {
	imp, err := m.Registry.ImporterFor(path, kind)
	if err != nil {
		return nil, m.fail(err)
	}
	return Load[asset.Asset](m, imp, filepath.Base(path), filepath.Dir(path), addToScene, opts...)
}

// Add inserts an asset that was not loaded from a file.
func (m *Manager) Add(a asset.Asset) error {
	if err := m.insert(a, nil, nil); err != nil {
		return m.fail(err)
	}
	m.Change(ChangeMunge, SceneKey, a)
	return nil
}

// insert validates first and mutates after, so a failure changes nothing.
// materials and textures come from the decode and are merged into the
// shared ones.
func (m *Manager) insert(a asset.Asset, materials []*asset.Material, textures *asset.TextureCache) error {
	var target *asset.Model
	switch a := a.(type) {
	case *asset.Model:
		if m.ModelIndex(a) >= 0 {
			return asset.Validationf("load", "model %q is already in the scene", a.Name)
		}
	case asset.SupportingDocument:
		if target = m.SelectedModel(); target == nil {
			return asset.Validationf("load", "no model selected to attach %v to", a.DocumentKind())
		}
	}

	m.adopt(materials, textures)

	switch a := a.(type) {
	case *asset.Model:
		m.models = append(m.models, a)
		if m.selectedModel < 0 {
			m.selectedModel, m.selectedBone = len(m.models)-1, asset.NoBone
		}
	case *asset.MaterialList:
		m.adopt(a.Entries(), nil)
	case *asset.Texture:
		m.textures.GetOrAdd(a)
	case asset.SupportingDocument:
		target.Documents[a.DocumentKind()] = a
	}
	return nil
}

// adopt merges decoded materials and textures into the shared ones. Material
// textures are swapped for the shared instance of the same name.
func (m *Manager) adopt(materials []*asset.Material, textures *asset.TextureCache) {
	shared := make(map[*asset.Texture]*asset.Texture)
	if textures != nil {
		for _, name := range textures.Names() {
			t := textures.Get(name)
			shared[t] = m.textures.GetOrAdd(t)
		}
	}
	for _, mat := range materials {
		if mat.Texture != nil {
			if t, ok := shared[mat.Texture]; ok {
				mat.Texture = t
			} else {
				mat.Texture = m.textures.GetOrAdd(mat.Texture)
			}
		}
		m.materials.Add(mat)
	}
}

// Save resolves the exporter from the file name and the asset kind.
func (m *Manager) Save(path string, a asset.Asset, s *pipeline.Settings) error {
	exp, err := m.Registry.ExporterFor(path, a.AssetKind())
	if err != nil {
		return m.fail(err)
	}
	return m.SaveWith(exp, a, path, s)
}

func (m *Manager) SaveWith(exp pipeline.Exporter, a asset.Asset, path string, s *pipeline.Settings) error {
	ctx := m.newContext()
	err := exp.Export(ctx, a, path, s)
	m.warn(ctx.Warnings())
	if err != nil {
		return m.fail(errors.Wrapf(err, "Can't save %q", path))
	}
	m.Progress(fmt.Sprintf("Saved %s", filepath.Base(path)))
	return nil
}

// Invalidate drops cached decodes of path and returns how many were dropped.
func (m *Manager) Invalidate(path string) int {
	path = filepath.Clean(path)
	m.cache.lock.Lock()
	defer m.cache.lock.Unlock()
	n := 0
	for key, e := range m.cache.entries {
		if e.path == path {
			delete(m.cache.entries, key)
			n++
		}
	}
	return n
}

// Cached reports whether any importer has a decode of path cached.
func (m *Manager) Cached(path string) bool {
	path = filepath.Clean(path)
	m.cache.lock.Lock()
	defer m.cache.lock.Unlock()
	for _, e := range m.cache.entries {
		if e.path == path {
			return true
		}
	}
	return false
}

func (m *Manager) ClearCache() {
	m.cache.lock.Lock()
	m.cache.entries = make(map[cacheKey]*cacheEntry)
	m.cache.lock.Unlock()
}
