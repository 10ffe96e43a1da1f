package gltfutils

import (
	"io"

	"github.com/qmuntal/gltf"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// Cacher remembers what was already written into Doc so that shared
// materials and textures are emitted once.
type Cacher struct {
	Doc   *gltf.Document
	cache map[string]interface{}
}

func NewCacher(doc *gltf.Document) *Cacher {
	return &Cacher{Doc: doc, cache: make(map[string]interface{})}
}

func (c *Cacher) GetCachedOr(key string, create func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.cache[key]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return nil, err
	}
	c.cache[key] = v
	return v, nil
}

// ExportBinary writes doc as a .glb. Root nodes must already be listed in
// the first scene.
func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

func Decode(r io.Reader) (*gltf.Document, error) {
	doc := &gltf.Document{}
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// BufferViewRange returns the bytes of the buffer behind a view and the
// view bounds in it. ok is false when an index or a bound is out of range.
func BufferViewRange(doc *gltf.Document, view uint32) (data []byte, start, end int64, ok bool) {
	if int(view) >= len(doc.BufferViews) {
		return nil, 0, 0, false
	}
	bv := doc.BufferViews[view]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return nil, 0, 0, false
	}
	data = doc.Buffers[bv.Buffer].Data
	start = int64(bv.ByteOffset)
	end = start + int64(bv.ByteLength)
	if end > int64(len(data)) {
		return nil, 0, 0, false
	}
	return data, start, end, true
}

// BufferViewData returns the bytes behind a buffer view.
func BufferViewData(doc *gltf.Document, view uint32) ([]byte, bool) {
	data, start, end, ok := BufferViewRange(doc, view)
	if !ok {
		return nil, false
	}
	return data[start:end], true
}
