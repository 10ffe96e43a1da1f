package pipeline

import (
	"log"
	"os"
	"sync"

	"github.com/mogaika/assetpipe/asset"
)

// Context carries what a codec may consult besides the file itself.
// Warnings are collected for recoverable problems such as missing textures.
type Context struct {
	CoordinateSystem asset.CoordinateSystem
	Registry         *Registry
	// Textures, when set, deduplicates textures loaded as sub-resources.
	Textures *asset.TextureCache
	// Materials, when set, receives materials embedded in model files and is
	// consulted by exporters that write materials alongside geometry.
	Materials *asset.MaterialList
	// OnWarning is called for every warning in addition to collecting it.
	OnWarning func(err error)

	lock     sync.Mutex
	warnings []error
}

func NewContext(r *Registry, cs asset.CoordinateSystem) *Context {
	if r == nil {
		r = DefaultRegistry
	}
	return &Context{CoordinateSystem: cs, Registry: r}
}

func (c *Context) Warn(err error) {
	log.Printf("[pipeline] Warning: %v", err)
	c.lock.Lock()
	c.warnings = append(c.warnings, err)
	c.lock.Unlock()
	if c.OnWarning != nil {
		c.OnWarning(err)
	}
}

func (c *Context) Warnings() []error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]error(nil), c.warnings...)
}

// ImportFile resolves an importer for path and kind and runs it.
func (c *Context) ImportFile(path string, kind asset.Kind) (asset.Asset, error) {
	imp, err := c.Registry.ImporterFor(path, kind)
	if err != nil {
		return nil, err
	}
	return imp.Import(c, path)
}

// ExportFile resolves an exporter for path and the asset's kind and runs it.
func (c *Context) ExportFile(a asset.Asset, path string, s *Settings) error {
	exp, err := c.Registry.ExporterFor(path, a.AssetKind())
	if err != nil {
		return err
	}
	return exp.Export(c, a, path, s)
}

// AddTexture deduplicates t through Textures when it is set.
func (c *Context) AddTexture(t *asset.Texture) *asset.Texture {
	if c.Textures == nil {
		return t
	}
	return c.Textures.GetOrAdd(t)
}

// LoadTexture imports the texture at path through the registry. A missing
// file yields a placeholder, a NotFoundError warning and no error.
func (c *Context) LoadTexture(path, referrer string) (*asset.Texture, error) {
	name := asset.TextureName(path)
	if c.Textures != nil {
		if t := c.Textures.Get(name); t != nil && !t.Placeholder {
			return t, nil
		}
	}

	var t *asset.Texture
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.Warn(&asset.NotFoundError{Resource: "texture " + name, Path: path, Referrer: referrer})
		t = asset.NewPlaceholderTexture(name)
	} else {
		a, err := c.ImportFile(path, asset.KindTexture)
		if err != nil {
			return nil, err
		}
		t = a.(*asset.Texture)
	}

	return c.AddTexture(t), nil
}
