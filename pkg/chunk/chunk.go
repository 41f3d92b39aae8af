// Package chunk provides a bounded cursor over tagged, length-prefixed binary records.
//
// Every record starts with a 12 byte header:
//
//	id      uint32
//	size    uint32  payload length, header excluded
//	version uint32
//
// Payloads may contain further records. A Reader only ever exposes the byte
// range of the record it was entered for, so a malformed size can never move
// a cursor outside its parent.
package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// HeaderSize is the size of a chunk header in bytes.
const HeaderSize = 12

var (
	// ErrTruncatedChunk is returned when a header or a declared payload does not fit its container.
	ErrTruncatedChunk = errors.New("truncated chunk")
	// ErrUnsupportedByteOrder is returned when the byte order of a buffer cannot be determined.
	ErrUnsupportedByteOrder = errors.New("unsupported byte order")
	// ErrOutOfBounds is returned by primitive reads that would cross the reader's bound.
	ErrOutOfBounds = errors.New("read out of bounds")
)

// TruncationError locates a header or payload that does not fit its container.
type TruncationError struct {
	Offset int // absolute offset of the offending header or trailing bytes
	err    error
}

func (e *TruncationError) Error() string { return e.err.Error() }

func (e *TruncationError) Unwrap() error { return e.err }

func truncated(offset int, format string, args ...any) error {
	return &TruncationError{Offset: offset, err: errors.Wrapf(ErrTruncatedChunk, format, args...)}
}

// TruncationOffset returns the offset recorded in err by a failed traversal.
func TruncationOffset(err error) (int, bool) {
	var te *TruncationError
	if errors.As(err, &te) {
		return te.Offset, true
	}
	return 0, false
}

// Chunk describes one record found during traversal.
type Chunk struct {
	ID      uint32
	Size    uint32
	Version uint32
	Offset  int    // absolute offset of the header in the buffer
	Parent  *Chunk // nil for top-level chunks
}

// Length returns the header plus payload length.
func (c *Chunk) Length() int {
	return HeaderSize + int(c.Size)
}

// DataOffset returns the absolute offset of the payload.
func (c *Chunk) DataOffset() int {
	return c.Offset + HeaderSize
}

// End returns the absolute offset just past the payload.
func (c *Chunk) End() int {
	return c.Offset + c.Length()
}

// Depth returns the nesting level, 0 for top-level chunks.
func (c *Chunk) Depth() int {
	d := 0
	for p := c.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// ParentID returns the id of the enclosing chunk, or 0 at top level.
func (c *Chunk) ParentID() uint32 {
	if c.Parent == nil {
		return 0
	}
	return c.Parent.ID
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk %s size=%d ver=%d @0x%x", IDString(c.ID), c.Size, c.Version, c.Offset)
}

// FourCC packs a four character tag so that its bytes read s in a little-endian stream.
func FourCC(s string) uint32 {
	var b [4]byte
	copy(b[:], s)
	return binary.LittleEndian.Uint32(b[:])
}

// IDString formats a chunk id as its tag when all four bytes are printable, hex otherwise.
func IDString(id uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], id)
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%04x", id)
		}
	}
	return string(b[:])
}

// DetectOrder guesses the byte order of buf from its first chunk header.
//
// A root id accepted by known wins in either order. Otherwise the order in
// which the root's declared size exactly covers the buffer is chosen, provided
// only one order does so.
func DetectOrder(buf []byte, known func(id uint32) bool) (binary.ByteOrder, error) {
	if len(buf) < HeaderSize {
		return nil, errors.Wrapf(ErrTruncatedChunk, "buffer of %d bytes has no header", len(buf))
	}

	le := binary.LittleEndian.Uint32(buf)
	be := binary.BigEndian.Uint32(buf)
	if known != nil {
		if known(le) {
			return binary.LittleEndian, nil
		}
		if known(be) {
			return binary.BigEndian, nil
		}
	}

	want := uint64(len(buf) - HeaderSize)
	leFits := uint64(binary.LittleEndian.Uint32(buf[4:])) == want
	beFits := uint64(binary.BigEndian.Uint32(buf[4:])) == want
	switch {
	case leFits && !beFits:
		return binary.LittleEndian, nil
	case beFits && !leFits:
		return binary.BigEndian, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedByteOrder, "root id 0x%08x", le)
}

// OrderName returns "little" or "big".
func OrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}

// ParseOrder maps a configuration value to a byte order. "auto" and "" yield nil.
func ParseOrder(s string) (binary.ByteOrder, error) {
	switch s {
	case "", "auto":
		return nil, nil
	case "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, errors.Errorf("unknown byte order %q", s)
}
