package asset

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrReferenceUnresolved is the error carried by diagnostics for references with no target.
var ErrReferenceUnresolved = errors.New("reference unresolved")

// Kind classifies a diagnostic by how much of the input it invalidates.
type Kind uint8

const (
	// KindFormat: the whole file was rejected.
	KindFormat Kind = iota + 1
	// KindStructural: one entity (a model, a geometry) was omitted.
	KindStructural
	// KindRange: one sub-entity (a texture entry, a primitive block) was omitted.
	KindRange
	// KindReferenceUnresolved: a name or hash matched nothing in the session.
	KindReferenceUnresolved
	// KindUnsupportedFeature: a recognised chunk was skipped because it is not decoded.
	KindUnsupportedFeature
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "FormatError"
	case KindStructural:
		return "StructuralError"
	case KindRange:
		return "RangeError"
	case KindReferenceUnresolved:
		return "ReferenceUnresolved"
	case KindUnsupportedFeature:
		return "UnsupportedFeature"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Fatal reports whether the kind caused data to be dropped.
func (k Kind) Fatal() bool {
	return k == KindFormat || k == KindStructural || k == KindRange
}

// Diagnostic records one degraded decode or resolution path.
type Diagnostic struct {
	Kind    Kind
	File    string
	Entity  string // e.g. `geometry 2`, `texture "road"`
	ChunkID uint32
	Offset  int
	Err     error
}

func (d Diagnostic) String() string {
	s := d.Kind.String()
	if d.File != "" {
		s += " " + d.File
	}
	if d.Entity != "" {
		s += " " + d.Entity
	}
	if d.ChunkID != 0 {
		s += fmt.Sprintf(" (chunk 0x%04x @0x%x)", d.ChunkID, d.Offset)
	}
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}

// UnknownChunk records a chunk that was skipped because its id is not understood.
type UnknownChunk struct {
	File     string
	ID       uint32
	Version  uint32
	Size     uint32
	Offset   int
	ParentID uint32
	Depth    int
}

func (u UnknownChunk) String() string {
	return fmt.Sprintf("%s: chunk 0x%04x ver=%d size=%d @0x%x parent=0x%04x", u.File, u.ID, u.Version, u.Size, u.Offset, u.ParentID)
}
