package asset

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type Material struct {
	Name    string
	Texture *Texture
	Color   mgl32.Vec4
}

func NewMaterial(name string, texture *Texture) *Material {
	return &Material{Name: name, Texture: texture, Color: White}
}

// TextureName is empty for untextured materials.
func (m *Material) TextureName() string {
	if m.Texture == nil {
		return ""
	}
	return m.Texture.Name
}

// MaterialList is an ordered set of materials keyed by name. It is shared by
// every model of a scene, so lookups and inserts are guarded.
type MaterialList struct {
	Name string

	mu      sync.RWMutex
	entries []*Material
	byName  map[string]*Material
}

func NewMaterialList(name string) *MaterialList {
	return &MaterialList{Name: name, byName: make(map[string]*Material)}
}

func (l *MaterialList) AssetKind() Kind { return KindMaterialList }

// Add inserts m unless a material with the same name exists, and returns
// the entry stored in the list.
func (l *MaterialList) Add(m *Material) *Material {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byName[m.Name]; ok {
		return existing
	}
	if l.byName == nil {
		l.byName = make(map[string]*Material)
	}
	l.byName[m.Name] = m
	l.entries = append(l.entries, m)
	return m
}

func (l *MaterialList) Find(name string) *Material {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byName[name]
}

func (l *MaterialList) Entries() []*Material {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := make([]*Material, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *MaterialList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *MaterialList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.byName = make(map[string]*Material)
}
