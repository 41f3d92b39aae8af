// Package chunktest builds chunk streams for tests.
package chunktest

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
)

// Builder appends primitives and nested chunks in one byte order.
// Begin/End pairs nest; End patches the size of the innermost open chunk.
type Builder struct {
	order binary.ByteOrder
	buf   []byte
	open  []int
}

// New returns an empty builder. A nil order means little-endian.
func New(order binary.ByteOrder) *Builder {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Builder{order: order}
}

// Begin writes a chunk header with a placeholder size.
func (b *Builder) Begin(id, version uint32) *Builder {
	b.open = append(b.open, len(b.buf))
	b.U32(id).U32(0).U32(version)
	return b
}

// End closes the innermost chunk opened by Begin.
func (b *Builder) End() *Builder {
	start := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]
	b.order.PutUint32(b.buf[start+4:], uint32(len(b.buf)-start-12))
	return b
}

// Chunk writes a complete chunk whose payload is produced by body.
func (b *Builder) Chunk(id, version uint32, body func(*Builder)) *Builder {
	b.Begin(id, version)
	if body != nil {
		body(b)
	}
	return b.End()
}

// Header writes a raw header with an arbitrary declared size.
func (b *Builder) Header(id, size, version uint32) *Builder {
	return b.U32(id).U32(size).U32(version)
}

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) U16(v uint16) *Builder {
	var t [2]byte
	b.order.PutUint16(t[:], v)
	b.buf = append(b.buf, t[:]...)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	var t [4]byte
	b.order.PutUint32(t[:], v)
	b.buf = append(b.buf, t[:]...)
	return b
}

func (b *Builder) I16(v int16) *Builder { return b.U16(uint16(v)) }

func (b *Builder) I32(v int32) *Builder { return b.U32(uint32(v)) }

func (b *Builder) F32(vs ...float32) *Builder {
	for _, v := range vs {
		b.U32(math.Float32bits(v))
	}
	return b
}

// Mat4 writes a matrix in column-major order.
func (b *Builder) Mat4(m mgl32.Mat4) *Builder {
	return b.F32(m[:]...)
}

// String writes s as an n byte NUL-padded field.
func (b *Builder) String(s string, n int) *Builder {
	b.buf = append(b.buf, encoding.UTF8ToFixedString(s, n)...)
	return b
}

// Raw appends bytes verbatim.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Pad appends n zero bytes.
func (b *Builder) Pad(n int) *Builder {
	b.buf = append(b.buf, make([]byte, n)...)
	return b
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes returns the built stream. Open chunks are left unpatched.
func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
