package pipeline

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mogaika/assetpipe/asset"
)

type codecKey struct {
	ext  string
	kind asset.Kind
}

type Registry struct {
	lock      sync.RWMutex
	importers map[codecKey]Importer
	exporters map[codecKey]Exporter
}

func NewRegistry() *Registry {
	return &Registry{
		importers: make(map[codecKey]Importer),
		exporters: make(map[codecKey]Exporter),
	}
}

// DefaultRegistry is filled by the init functions of the format packages.
var DefaultRegistry = NewRegistry()

func RegisterImporter(i Importer) { DefaultRegistry.RegisterImporter(i) }
func RegisterExporter(e Exporter) { DefaultRegistry.RegisterExporter(e) }

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimSpace(ext))
}

func (r *Registry) RegisterImporter(i Importer) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, ext := range i.Extensions() {
		k := codecKey{normalizeExt(ext), i.Kind()}
		if old, ok := r.importers[k]; ok {
			log.Printf("[pipeline] Importer %s replaces %s for '%s'", i.Name(), old.Name(), k.ext)
		}
		r.importers[k] = i
	}
}

func (r *Registry) RegisterExporter(e Exporter) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, ext := range e.Extensions() {
		k := codecKey{normalizeExt(ext), e.Kind()}
		if old, ok := r.exporters[k]; ok {
			log.Printf("[pipeline] Exporter %s replaces %s for '%s'", e.Name(), old.Name(), k.ext)
		}
		r.exporters[k] = e
	}
}

func (r *Registry) ResolveImporter(ext string, kind asset.Kind) (Importer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if i, ok := r.importers[codecKey{normalizeExt(ext), kind}]; ok {
		return i, nil
	}
	return nil, &asset.UnsupportedFormatError{Ext: ext, Kind: kind, Direction: "importer"}
}

func (r *Registry) ResolveExporter(ext string, kind asset.Kind) (Exporter, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if e, ok := r.exporters[codecKey{normalizeExt(ext), kind}]; ok {
		return e, nil
	}
	return nil, &asset.UnsupportedFormatError{Ext: ext, Kind: kind, Direction: "exporter"}
}

// Resolve prefers an importer and falls back to an exporter.
func (r *Registry) Resolve(ext string, kind asset.Kind) (Codec, error) {
	if i, err := r.ResolveImporter(ext, kind); err == nil {
		return i, nil
	}
	if e, err := r.ResolveExporter(ext, kind); err == nil {
		return e, nil
	}
	return nil, &asset.UnsupportedFormatError{Ext: ext, Kind: kind, Direction: "codec"}
}

// pathKeys lists lookup keys for a path: the full file name first, then the
// extension.
func pathKeys(path string) []string {
	base := normalizeExt(filepath.Base(path))
	return []string{base, filepath.Ext(base)}
}

func (r *Registry) ImporterFor(path string, kind asset.Kind) (Importer, error) {
	keys := pathKeys(path)
	for _, k := range keys {
		if i, err := r.ResolveImporter(k, kind); err == nil {
			return i, nil
		}
	}
	return nil, &asset.UnsupportedFormatError{Ext: keys[1], Kind: kind, Direction: "importer"}
}

func (r *Registry) ExporterFor(path string, kind asset.Kind) (Exporter, error) {
	keys := pathKeys(path)
	for _, k := range keys {
		if e, err := r.ResolveExporter(k, kind); err == nil {
			return e, nil
		}
	}
	return nil, &asset.UnsupportedFormatError{Ext: keys[1], Kind: kind, Direction: "exporter"}
}

// Detect finds an importer for path regardless of asset kind.
func (r *Registry) Detect(path string) (Importer, error) {
	keys := pathKeys(path)
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, ext := range keys {
		for kind := asset.KindModel; kind <= asset.KindDocument; kind++ {
			if i, ok := r.importers[codecKey{ext, kind}]; ok {
				return i, nil
			}
		}
	}
	return nil, &asset.UnsupportedFormatError{Ext: keys[1], Kind: -1, Direction: "importer"}
}

func (r *Registry) Importers() []Importer {
	r.lock.RLock()
	defer r.lock.RUnlock()
	seen := make(map[string]bool)
	result := make([]Importer, 0)
	for _, i := range r.importers {
		if !seen[i.Name()] {
			seen[i.Name()] = true
			result = append(result, i)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Name() < result[b].Name() })
	return result
}

func (r *Registry) Exporters() []Exporter {
	r.lock.RLock()
	defer r.lock.RUnlock()
	seen := make(map[string]bool)
	result := make([]Exporter, 0)
	for _, e := range r.exporters {
		if !seen[e.Name()] {
			seen[e.Name()] = true
			result = append(result, e)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Name() < result[b].Name() })
	return result
}
