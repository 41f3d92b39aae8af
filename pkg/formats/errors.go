package formats

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

// File level errors. These abort the decode of one file.
var (
	ErrTruncatedChunk       = chunk.ErrTruncatedChunk
	ErrUnsupportedByteOrder = chunk.ErrUnsupportedByteOrder
	ErrUnrecognizedFormat   = errors.New("unrecognized format")
	ErrUnexpectedRoot       = errors.New("root chunk does not match extension")
	ErrInflate              = errors.New("inflating compressed container")
)

// Entity level errors. These drop one model, geometry or primitive block.
var (
	ErrInvalidFrameHierarchy = errors.New("invalid frame hierarchy")
	ErrInvalidGeometry       = errors.New("invalid geometry")
	ErrInvalidAtomic         = errors.New("invalid atomic")
	ErrInvalidMaterial       = errors.New("invalid material")
	ErrTruncatedTexture      = errors.New("truncated texture")
	ErrInvalidTexture        = errors.New("invalid texture")
	ErrCollisionRange        = errors.New("collision block out of range")
	ErrInvalidSpatialIndex   = errors.New("invalid spatial index")
	ErrWorldRange            = errors.New("world records out of range")
	ErrUnsupportedFeature    = errors.New("unsupported feature")
)

// FormatError reports a file that could not be decoded at all.
type FormatError struct {
	File   string
	Offset int
	Err    error
}

func (e *FormatError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("format error at 0x%x: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: format error at 0x%x: %v", e.File, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// isFileFatal reports whether err must abort the whole file rather than one
// entity. It applies to the direct children of a container root; truncation
// below an entity chunk is confined to that entity.
func isFileFatal(err error) bool {
	return errors.Is(err, chunk.ErrTruncatedChunk) || isCanceled(err)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isTruncation reports whether err is a nested chunk overrunning its entity.
func isTruncation(err error) bool {
	return errors.Is(err, chunk.ErrTruncatedChunk)
}

// errorOffset returns where err was detected, or fallback when it does not say.
func errorOffset(err error, fallback int) int {
	if off, ok := chunk.TruncationOffset(err); ok {
		return off
	}
	return fallback
}

// wrap joins a taxonomy sentinel with the underlying cause so both match errors.Is.
func wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}
