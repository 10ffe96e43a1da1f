// Package scene owns the loaded models, entities and materials, and is the
// only place where they are mutated. Every mutation is announced through the
// Change channel.
package scene

import (
	"fmt"
	"log"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

// Manager is not safe for concurrent mutation: callers serialize edits, loads
// with addToScene and Reset onto one goroutine. Decoding (LoadConcurrent,
// the load cache) may run in parallel.
type Manager struct {
	Registry *pipeline.Registry

	models    []*asset.Model
	entities  []*asset.Entity
	materials *asset.MaterialList
	textures  *asset.TextureCache
	cs        asset.CoordinateSystem

	selectedModel int
	selectedBone  asset.BoneHandle

	cache     loadCache
	observers observers
}

// New creates an empty scene. A nil registry means pipeline.DefaultRegistry.
func New(r *pipeline.Registry, cs asset.CoordinateSystem) *Manager {
	if r == nil {
		r = pipeline.DefaultRegistry
	}
	return &Manager{
		Registry:      r,
		materials:     asset.NewMaterialList("scene"),
		textures:      asset.NewTextureCache(),
		cs:            cs,
		selectedModel: -1,
		selectedBone:  asset.NoBone,
		cache:         loadCache{entries: make(map[cacheKey]*cacheEntry)},
	}
}

func (m *Manager) Models() []*asset.Model {
	return append([]*asset.Model(nil), m.models...)
}

// Model returns nil for an index out of range.
func (m *Manager) Model(i int) *asset.Model {
	if i < 0 || i >= len(m.models) {
		return nil
	}
	return m.models[i]
}

// ModelIndex is -1 when model is not part of the scene.
func (m *Manager) ModelIndex(model *asset.Model) int {
	for i, x := range m.models {
		if x == model {
			return i
		}
	}
	return -1
}

func (m *Manager) Entities() []*asset.Entity {
	return append([]*asset.Entity(nil), m.entities...)
}

func (m *Manager) Materials() *asset.MaterialList { return m.materials }
func (m *Manager) Textures() *asset.TextureCache  { return m.textures }

func (m *Manager) CoordinateSystem() asset.CoordinateSystem { return m.cs }

// SetCoordinateSystem affects subsequent imports and exports only.
func (m *Manager) SetCoordinateSystem(cs asset.CoordinateSystem) {
	log.Printf("[scene] Coordinate system %v -> %v", m.cs, cs)
	m.cs = cs
}

// Reset clears models, entities, materials and textures. The load cache
// survives, so reloading a file does not decode it again.
func (m *Manager) Reset() {
	m.models = nil
	m.entities = nil
	m.materials.Clear()
	m.textures.Clear()
	m.selectedModel = -1
	m.selectedBone = asset.NoBone
	m.Change(ChangeMunge, SceneKey, nil)
}

// Selection returns the cursor used by editing operations.
func (m *Manager) Selection() (int, asset.BoneHandle) {
	return m.selectedModel, m.selectedBone
}

func (m *Manager) SelectedModel() *asset.Model {
	return m.Model(m.selectedModel)
}

// Select moves the cursor to key. It is not a mutation and fires no change.
func (m *Manager) Select(key int) error {
	mi, h := SplitKey(key)
	model := m.Model(mi)
	if model == nil {
		return m.fail(asset.Validationf("select", "model %d does not exist", mi))
	}
	if model.Bone(h) == nil {
		return m.fail(asset.Validationf("select", "bone %d does not exist in %q", h, model.Name))
	}
	m.selectedModel, m.selectedBone = mi, h
	return nil
}

// SelectModel points the cursor at a whole model, no bone.
func (m *Manager) SelectModel(i int) error {
	if m.Model(i) == nil {
		return m.fail(asset.Validationf("select", "model %d does not exist", i))
	}
	m.selectedModel, m.selectedBone = i, asset.NoBone
	return nil
}

func (m *Manager) AddEntity(e *asset.Entity) {
	m.entities = append(m.entities, e)
	m.Change(ChangeAdd, SceneKey, e)
}

// newContext returns a codec context bound to the scene's materials and
// textures, used for exports.
func (m *Manager) newContext() *pipeline.Context {
	ctx := pipeline.NewContext(m.Registry, m.cs)
	ctx.Materials = m.materials
	ctx.Textures = m.textures
	return ctx
}

// decodeContext isolates an import from the scene until it is inserted.
func (m *Manager) decodeContext() *pipeline.Context {
	ctx := pipeline.NewContext(m.Registry, m.cs)
	ctx.Materials = asset.NewMaterialList("")
	ctx.Textures = asset.NewTextureCache()
	return ctx
}

func (m *Manager) String() string {
	return fmt.Sprintf("scene{models: %d, entities: %d, materials: %d, textures: %d, %v}",
		len(m.models), len(m.entities), m.materials.Len(), m.textures.Len(), m.cs)
}
