package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// BufStack is a bounded reader over a byte slice. Sub buffers carve chunks
// out of their parent. The first out-of-bounds read poisons the buffer and
// all of its parents: later reads return zero values and Err reports the
// failure, so parsers can check once per chunk.
type BufStack struct {
	parent         *BufStack
	buf            []byte
	absoluteOffset int
	pos            int
	kind           string
	name           string
	err            error
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		kind: kind,
	}
}

func (bs *BufStack) fail(format string, args ...interface{}) {
	err := errors.Errorf("%s: %s", bs.String(), fmt.Sprintf(format, args...))
	for b := bs; b != nil; b = b.parent {
		if b.err == nil {
			b.err = err
		}
	}
}

// SubBuf takes the next size bytes as a child buffer and skips them in bs.
func (bs *BufStack) SubBuf(kind string, size int) *BufStack {
	child := &BufStack{
		parent:         bs,
		absoluteOffset: bs.absoluteOffset + bs.pos,
		kind:           kind,
	}
	if size < 0 || size > bs.Remaining() {
		bs.fail("chunk %q of size %d does not fit in %d remaining bytes", kind, size, bs.Remaining())
		child.err = bs.err
		return child
	}
	child.buf = bs.buf[bs.pos : bs.pos+size]
	bs.pos += size
	return child
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

func (bs *BufStack) Name() string      { return bs.name }
func (bs *BufStack) Kind() string      { return bs.kind }
func (bs *BufStack) Size() int         { return len(bs.buf) }
func (bs *BufStack) Pos() int          { return bs.pos }
func (bs *BufStack) Remaining() int    { return len(bs.buf) - bs.pos }
func (bs *BufStack) Parent() *BufStack { return bs.parent }
func (bs *BufStack) Err() error        { return bs.err }

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[p:0x%x,s:0x%x,ao:0x%x]",
		bs.kind, bs.name, bs.pos, len(bs.buf), bs.absoluteOffset)
}

func (bs *BufStack) StringChain() string {
	s := bs.String()
	if bs.parent != nil {
		s += fmt.Sprintf("::%s", bs.parent.StringChain())
	}
	return s
}

func (bs *BufStack) Read(amount int) []byte {
	if bs.err != nil {
		return make([]byte, amount)
	}
	if amount < 0 || amount > bs.Remaining() {
		bs.fail("read of %d bytes with %d remaining", amount, bs.Remaining())
		if amount < 0 {
			amount = 0
		}
		return make([]byte, amount)
	}
	oldPos := bs.pos
	bs.pos += amount
	return bs.buf[oldPos:bs.pos]
}

func (bs *BufStack) Skip(amount int) {
	bs.Read(amount)
}

func (bs *BufStack) ReadLU32() uint32 { return binary.LittleEndian.Uint32(bs.Read(4)) }
func (bs *BufStack) ReadLU16() uint16 { return binary.LittleEndian.Uint16(bs.Read(2)) }
func (bs *BufStack) ReadBU32() uint32 { return binary.BigEndian.Uint32(bs.Read(4)) }
func (bs *BufStack) ReadBU16() uint16 { return binary.BigEndian.Uint16(bs.Read(2)) }
func (bs *BufStack) ReadLI32() int32  { return int32(bs.ReadLU32()) }
func (bs *BufStack) ReadU8() byte     { return bs.Read(1)[0] }
func (bs *BufStack) ReadLF() float32  { return math.Float32frombits(bs.ReadLU32()) }
func (bs *BufStack) ReadBF() float32  { return math.Float32frombits(bs.ReadBU32()) }

func (bs *BufStack) ReadLVec2() mgl32.Vec2 { return mgl32.Vec2{bs.ReadLF(), bs.ReadLF()} }
func (bs *BufStack) ReadLVec3() mgl32.Vec3 { return mgl32.Vec3{bs.ReadLF(), bs.ReadLF(), bs.ReadLF()} }
func (bs *BufStack) ReadBVec4() mgl32.Vec4 {
	return mgl32.Vec4{bs.ReadBF(), bs.ReadBF(), bs.ReadBF(), bs.ReadBF()}
}

// ReadLMat4 reads 16 little-endian floats in column-major order.
func (bs *BufStack) ReadLMat4() (m mgl32.Mat4) {
	for i := range m {
		m[i] = bs.ReadLF()
	}
	return m
}

// ReadCount reads a little-endian count and rejects it when count elements
// of elemSize bytes cannot fit in the remaining buffer.
func (bs *BufStack) ReadCount(elemSize int) int {
	return bs.checkCount(int64(bs.ReadLU32()), elemSize)
}

func (bs *BufStack) ReadBCount(elemSize int) int {
	return bs.checkCount(int64(bs.ReadBU32()), elemSize)
}

func (bs *BufStack) checkCount(count int64, elemSize int) int {
	if bs.err != nil {
		return 0
	}
	if count*int64(elemSize) > int64(bs.Remaining()) {
		bs.fail("count %d of %d byte elements exceeds %d remaining bytes", count, elemSize, bs.Remaining())
		return 0
	}
	return int(count)
}

func (bs *BufStack) ReadStringBuffer(size int) string {
	raw := bs.Read(size)
	if bs.err != nil {
		return ""
	}
	s, err := BytesToString(raw)
	if err != nil {
		bs.fail("%v", err)
	}
	return s
}

// ReadLString reads a u16 length followed by that many encoded bytes.
func (bs *BufStack) ReadLString() string {
	return bs.ReadStringBuffer(int(bs.ReadLU16()))
}

func (bs *BufStack) ReadBString() string {
	return bs.ReadStringBuffer(int(bs.ReadBU16()))
}

// VerifySize fails when the buffer was not consumed completely.
func (bs *BufStack) VerifySize() error {
	if bs.err == nil && bs.pos != len(bs.buf) {
		bs.fail("%d trailing bytes", len(bs.buf)-bs.pos)
	}
	return bs.err
}
