package utils

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// BufWriter is the writing counterpart of BufStack. Errors are sticky.
type BufWriter struct {
	order binary.ByteOrder
	buf   bytes.Buffer
	err   error
}

func NewBufWriter(order binary.ByteOrder) *BufWriter {
	return &BufWriter{order: order}
}

func (w *BufWriter) Err() error    { return w.err }
func (w *BufWriter) Bytes() []byte { return w.buf.Bytes() }
func (w *BufWriter) Len() int      { return w.buf.Len() }

func (w *BufWriter) WriteBytes(b []byte) {
	w.buf.Write(b)
}

func (w *BufWriter) WriteU8(b byte) {
	w.buf.WriteByte(b)
}

func (w *BufWriter) WriteU16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *BufWriter) WriteU32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *BufWriter) WriteI32(v int32) { w.WriteU32(uint32(v)) }
func (w *BufWriter) WriteF(v float32) { w.WriteU32(math.Float32bits(v)) }
func (w *BufWriter) WriteCount(n int) { w.WriteU32(uint32(n)) }

func (w *BufWriter) WriteVec2(v mgl32.Vec2) {
	w.WriteF(v[0])
	w.WriteF(v[1])
}

func (w *BufWriter) WriteVec3(v mgl32.Vec3) {
	for _, f := range v {
		w.WriteF(f)
	}
}

func (w *BufWriter) WriteVec4(v mgl32.Vec4) {
	for _, f := range v {
		w.WriteF(f)
	}
}

func (w *BufWriter) WriteMat4(m mgl32.Mat4) {
	for _, f := range m {
		w.WriteF(f)
	}
}

// WriteStringBuffer writes s encoded into exactly size bytes.
func (w *BufWriter) WriteStringBuffer(s string, size int) {
	b, err := StringToBytesBuffer(s, size, false)
	if err != nil && w.err == nil {
		w.err = err
	}
	w.buf.Write(b)
}

// WritePrefixedString writes a u16 length prefixed encoded string.
func (w *BufWriter) WritePrefixedString(s string) {
	b, err := StringToBytes(s, false)
	if err != nil && w.err == nil {
		w.err = err
	}
	if len(b) > math.MaxUint16 && w.err == nil {
		w.err = errors.Errorf("string of %d bytes is too long", len(b))
	}
	w.WriteU16(uint16(len(b)))
	w.buf.Write(b)
}

// Chunk writes id, a u32 size placeholder, the body produced by fn, then
// patches the size.
func (w *BufWriter) Chunk(id uint32, fn func()) {
	w.WriteU32(id)
	sizePos := w.buf.Len()
	w.WriteU32(0)
	fn()
	w.order.PutUint32(w.buf.Bytes()[sizePos:], uint32(w.buf.Len()-sizePos-4))
}
