package asset

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"strings"
	"sync"
)

type Texture struct {
	Name     string
	FileName string
	Image    *image.NRGBA
	// Placeholder marks a stand-in for a texture that could not be found.
	Placeholder bool
}

func (t *Texture) AssetKind() Kind { return KindTexture }

func NewTextureFromImage(name, fileName string, img image.Image) *Texture {
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		b := img.Bounds()
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return &Texture{Name: name, FileName: fileName, Image: nrgba}
}

const placeholderSize = 8

// NewPlaceholderTexture returns a magenta/black checker used in place of a missing texture.
func NewPlaceholderTexture(name string) *Texture {
	img := image.NewNRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			c := color.NRGBA{0, 0, 0, 0xff}
			if (x/2+y/2)%2 == 0 {
				c = color.NRGBA{0xff, 0, 0xff, 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return &Texture{Name: name, Image: img, Placeholder: true}
}

// TextureName is the file name without directory and extension.
func TextureName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TextureCache deduplicates textures by name.
type TextureCache struct {
	mu       sync.RWMutex
	textures map[string]*Texture
	order    []string
}

func NewTextureCache() *TextureCache {
	return &TextureCache{textures: make(map[string]*Texture)}
}

func (c *TextureCache) Get(name string) *Texture {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.textures[name]
}

// GetOrAdd returns the cached texture with t's name, inserting t if there is
// none. A cached placeholder is replaced by a real texture.
func (c *TextureCache) GetOrAdd(t *Texture) *Texture {
	c.mu.RLock()
	existing, ok := c.textures[t.Name]
	c.mu.RUnlock()
	if ok && !(existing.Placeholder && !t.Placeholder) {
		return existing
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.textures[t.Name]; ok {
		if !existing.Placeholder || t.Placeholder {
			return existing
		}
		*existing = *t
		return existing
	}
	c.textures[t.Name] = t
	c.order = append(c.order, t.Name)
	return t
}

func (c *TextureCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

func (c *TextureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *TextureCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textures = make(map[string]*Texture)
	c.order = nil
}
