package formats

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

// Nested chunk ids.
const (
	IDFrameList    uint32 = 0x0101
	IDGeometryList uint32 = 0x0102
	IDGeometry     uint32 = 0x0103
	IDMaterialList uint32 = 0x0104
	IDMaterial     uint32 = 0x0105
	IDTextureRef   uint32 = 0x0106
	IDAtomic       uint32 = 0x0107
	IDModelName    uint32 = 0x0108
	IDAnimation    uint32 = 0x0109
	IDSkin         uint32 = 0x010A

	IDDictionaryHeader uint32 = 0x0201
	IDTextureEntry     uint32 = 0x0202
	IDTextureHeader    uint32 = 0x0203
	IDTexturePixels    uint32 = 0x0204
	IDTexturePalette   uint32 = 0x0205
	IDPixelPool        uint32 = 0x0206

	IDCollisionModel   uint32 = 0x0300
	IDCollisionHeader  uint32 = 0x0301
	IDCollisionSpheres uint32 = 0x0302
	IDCollisionBoxes   uint32 = 0x0303
	IDCollisionMesh    uint32 = 0x0304
	IDSpatialIndex     uint32 = 0x0305

	IDWorldHeader  uint32 = 0x0401
	IDSectionList  uint32 = 0x0402
	IDInstanceList uint32 = 0x0403
)

// sectionFunc decodes one chunk. r is bounded to the chunk payload and st is
// the state of the enclosing entity. A returned error aborts the enclosing
// entity; problems confined to the chunk itself are reported on dc instead.
type sectionFunc[T any] func(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st T) error

// sectionTable maps chunk ids to decoders for one nesting level.
type sectionTable[T any] struct {
	handlers    map[uint32]sectionFunc[T]
	unsupported map[uint32]string // id -> feature name
}

// walk dispatches every chunk left in r through tbl.
func walk[T any](dc *decodeContext, r *chunk.Reader, tbl *sectionTable[T], st T) error {
	return r.Walk(func(c *chunk.Chunk, sub *chunk.Reader) error {
		if err := dc.ctx.Err(); err != nil {
			return err
		}
		if fn, ok := tbl.handlers[c.ID]; ok {
			return fn(sub, c, dc, st)
		}
		if feature, ok := tbl.unsupported[c.ID]; ok {
			dc.unsupported(c, feature)
			return nil
		}
		dc.unknown(c)
		return nil
	})
}

type decodeContext struct {
	ctx  context.Context
	file string
	opts Options
	log  *zap.Logger
	frag *asset.Fragment
}

func (dc *decodeContext) report(kind asset.Kind, c *chunk.Chunk, entity string, err error) {
	d := asset.Diagnostic{Kind: kind, File: dc.file, Entity: entity, Err: err}
	if c != nil {
		d.ChunkID = c.ID
		d.Offset = errorOffset(err, c.Offset)
	}
	dc.frag.Diagnostics = append(dc.frag.Diagnostics, d)
	dc.log.Warn("dropped "+entity,
		zap.Stringer("kind", kind),
		zap.Int("offset", d.Offset),
		zap.Error(err),
	)
}

func (dc *decodeContext) unknown(c *chunk.Chunk) {
	dc.frag.Unknown = append(dc.frag.Unknown, asset.UnknownChunk{
		File:     dc.file,
		ID:       c.ID,
		Version:  c.Version,
		Size:     c.Size,
		Offset:   c.Offset,
		ParentID: c.ParentID(),
		Depth:    c.Depth(),
	})
	dc.log.Debug("skipped unknown chunk", zap.Stringer("chunk", c))
}

func (dc *decodeContext) unsupported(c *chunk.Chunk, feature string) {
	dc.frag.Diagnostics = append(dc.frag.Diagnostics, asset.Diagnostic{
		Kind:    asset.KindUnsupportedFeature,
		File:    dc.file,
		Entity:  feature,
		ChunkID: c.ID,
		Offset:  c.Offset,
		Err:     ErrUnsupportedFeature,
	})
	dc.log.Debug("skipped unsupported chunk", zap.String("feature", feature), zap.Stringer("chunk", c))
}
