package chunk

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
)

// Reader is a cursor restricted to one byte range of a buffer.
//
// Primitive reads are sticky: the first read that would cross the bound
// records ErrOutOfBounds and every later read returns a zero value. Callers
// check Err once after a block of reads.
type Reader struct {
	buf   []byte
	order binary.ByteOrder
	start int
	end   int
	pos   int
	align int
	chunk *Chunk
	err   error
}

// NewReader returns a reader over the whole of buf.
func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Reader{buf: buf, order: order, end: len(buf), align: 1}
}

// SetAlignment sets the boundary chunk headers are aligned to. Sub-readers inherit it.
func (r *Reader) SetAlignment(n int) {
	if n < 1 {
		n = 1
	}
	r.align = n
}

// Order returns the reader's byte order.
func (r *Reader) Order() binary.ByteOrder { return r.order }

// Chunk returns the chunk this reader was entered for, nil for the root reader.
func (r *Reader) Chunk() *Chunk { return r.chunk }

// Pos returns the absolute cursor offset.
func (r *Reader) Pos() int { return r.pos }

// Start returns the absolute offset of the reader's first byte.
func (r *Reader) Start() int { return r.start }

// End returns the absolute offset just past the reader's last byte.
func (r *Reader) End() int { return r.end }

// Remaining returns the number of unread bytes in range.
func (r *Reader) Remaining() int { return r.end - r.pos }

// Err returns the first primitive read failure.
func (r *Reader) Err() error { return r.err }

// Need reports whether n more bytes are available, recording ErrOutOfBounds if not.
func (r *Reader) Need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || n > r.end-r.pos {
		r.err = errors.Wrapf(ErrOutOfBounds, "need %d bytes at 0x%x, %d left", n, r.pos, r.end-r.pos)
		return false
	}
	return true
}

// Fits reports whether count elements of size bytes each are available without
// consuming them. It guards allocations sized by untrusted counts.
func (r *Reader) Fits(count, size int) bool {
	if count < 0 || size <= 0 {
		return count == 0
	}
	return count <= (r.end-r.pos)/size
}

// ReadChunkHeader reads the header at the cursor and leaves the cursor on its payload.
// The declared payload must fit inside the reader's range.
func (r *Reader) ReadChunkHeader() (*Chunk, error) {
	if r.end-r.pos < HeaderSize {
		return nil, truncated(r.pos, "header at 0x%x needs %d bytes, %d left", r.pos, HeaderSize, r.end-r.pos)
	}
	c := &Chunk{
		ID:      r.order.Uint32(r.buf[r.pos:]),
		Size:    r.order.Uint32(r.buf[r.pos+4:]),
		Version: r.order.Uint32(r.buf[r.pos+8:]),
		Offset:  r.pos,
		Parent:  r.chunk,
	}
	if uint64(c.Size) > uint64(r.end-c.DataOffset()) {
		return nil, truncated(c.Offset, "%s overruns its container by %d bytes", c, uint64(c.Size)-uint64(r.end-c.DataOffset()))
	}
	r.pos = c.DataOffset()
	return c, nil
}

// Enter returns a reader bounded to c's payload and moves this reader past c.
// The outer cursor lands on c.End() however much of the sub-reader is consumed.
func (r *Reader) Enter(c *Chunk) *Reader {
	sub := &Reader{
		buf:   r.buf,
		order: r.order,
		start: c.DataOffset(),
		end:   c.End(),
		pos:   c.DataOffset(),
		align: r.align,
		chunk: c,
	}
	if c.DataOffset() < r.start || c.End() > r.end {
		sub.start, sub.end, sub.pos = r.end, r.end, r.end
		sub.err = errors.Wrapf(ErrOutOfBounds, "%s outside reader range 0x%x-0x%x", c, r.start, r.end)
		return sub
	}
	r.pos = c.End()
	return sub
}

// Skip moves this reader past c without descending into it.
func (r *Reader) Skip(c *Chunk) {
	if c.End() <= r.end {
		r.pos = c.End()
	}
}

// Next returns the next chunk header at the cursor, or nil when the range is exhausted.
// Bytes left over that cannot hold a header must be zero padding.
func (r *Reader) Next() (*Chunk, error) {
	if r.align > 1 {
		if rem := (r.pos - r.start) % r.align; rem != 0 {
			r.pos += r.align - rem
			if r.pos > r.end {
				r.pos = r.end
			}
		}
	}
	if r.pos >= r.end {
		return nil, nil
	}
	if r.end-r.pos < HeaderSize {
		for _, b := range r.buf[r.pos:r.end] {
			if b != 0 {
				return nil, truncated(r.pos, "%d trailing bytes at 0x%x", r.end-r.pos, r.pos)
			}
		}
		r.pos = r.end
		return nil, nil
	}
	return r.ReadChunkHeader()
}

// ZeroTail reports whether every byte left in range is zero.
func (r *Reader) ZeroTail() bool {
	for _, b := range r.buf[r.pos:r.end] {
		if b != 0 {
			return false
		}
	}
	return true
}

// Walk calls fn for every chunk remaining in range with a reader bounded to it.
// Iteration stops at the first error from the traversal or from fn.
func (r *Reader) Walk(fn func(c *Chunk, sub *Reader) error) error {
	for {
		c, err := r.Next()
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		if err := fn(c, r.Enter(c)); err != nil {
			return err
		}
	}
}

// Slice returns n bytes at offset off relative to the reader's start without moving the cursor.
func (r *Reader) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > r.end-r.start || n > r.end-r.start-off {
		return nil, errors.Wrapf(ErrOutOfBounds, "range 0x%x+%d outside %d byte payload", off, n, r.end-r.start)
	}
	return r.buf[r.start+off : r.start+off+n], nil
}

// Discard advances the cursor by n bytes.
func (r *Reader) Discard(n int) {
	if r.Need(n) {
		r.pos += n
	}
}

// Bytes returns the next n bytes. The slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) []byte {
	if !r.Need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) U8() uint8 {
	if !r.Need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *Reader) U16() uint16 {
	if !r.Need(2) {
		return 0
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) U32() uint32 {
	if !r.Need(4) {
		return 0
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) I16() int16 { return int16(r.U16()) }

func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }

// Vec3 reads three floats.
func (r *Reader) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.F32(), r.F32(), r.F32()}
}

// Vec2 reads two floats.
func (r *Reader) Vec2() mgl32.Vec2 {
	return mgl32.Vec2{r.F32(), r.F32()}
}

// Mat4 reads sixteen floats in column-major order.
func (r *Reader) Mat4() mgl32.Mat4 {
	var m mgl32.Mat4
	if !r.Need(64) {
		return m
	}
	for i := range m {
		m[i] = r.F32()
	}
	return m
}

// FixedString reads an n byte NUL-padded Windows-1252 string.
func (r *Reader) FixedString(n int) string {
	b := r.Bytes(n)
	if b == nil {
		return ""
	}
	return encoding.FixedStringToUTF8(b)
}
