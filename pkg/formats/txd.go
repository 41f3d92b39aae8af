package formats

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

const (
	dictionaryNameSize  = 32
	textureHeaderSize   = 32 + 32 + 2 + 2 + 4 + 1 + 1 + 2 + 4 + 4
	textureMaskNameSize = 32
)

type dictionaryState struct {
	dict     *asset.TextureDictionary
	payload  *chunk.Reader // whole dictionary payload; entry ranges are relative to its start
	declared int
	entries  int
}

type entryState struct {
	base    int // absolute offset of the dictionary payload
	header  bool
	entry   asset.TextureEntry
	inline  *asset.Range
	palette *asset.Range
}

var dictionarySections = &sectionTable[*dictionaryState]{
	handlers: map[uint32]sectionFunc[*dictionaryState]{
		IDDictionaryHeader: decodeDictionaryHeader,
		IDTextureEntry:     decodeTextureEntry,
		IDPixelPool:        decodePixelPool,
	},
}

var entrySections = &sectionTable[*entryState]{
	handlers: map[uint32]sectionFunc[*entryState]{
		IDTextureHeader:  decodeTextureHeader,
		IDTexturePixels:  decodeTexturePixels,
		IDTexturePalette: decodeTexturePalette,
	},
}

// decodeDictionary decodes a texture dictionary. Entries that fail are dropped
// individually; the dictionary is always returned.
func decodeDictionary(r *chunk.Reader, root *chunk.Chunk, dc *decodeContext) error {
	st := &dictionaryState{
		dict:    &asset.TextureDictionary{File: dc.file},
		payload: r,
	}
	if err := walk(dc, r, dictionarySections, st); err != nil {
		if isFileFatal(err) {
			return err
		}
		dc.report(asset.KindStructural, root, "texture dictionary", err)
	}
	if st.dict.Name == "" {
		st.dict.Name = baseName(dc.file)
	}
	if st.declared != st.entries {
		dc.log.Debug("texture count mismatch", zap.Int("declared", st.declared), zap.Int("found", st.entries))
	}
	dc.frag.Dictionaries = append(dc.frag.Dictionaries, st.dict)
	return nil
}

func decodeDictionaryHeader(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *dictionaryState) error {
	declared := int(r.U32())
	platform := asset.Platform(r.U32())
	name := r.FixedString(dictionaryNameSize)
	if err := r.Err(); err != nil {
		dc.report(asset.KindRange, c, "texture dictionary header", wrap(ErrInvalidTexture, err))
		return nil
	}
	st.declared = declared
	st.dict.Platform = platform
	st.dict.Name = name
	return nil
}

// decodePixelPool accepts the shared pixel block. Entries address it by range.
func decodePixelPool(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *dictionaryState) error {
	return nil
}

func decodeTextureEntry(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *dictionaryState) error {
	index := st.entries
	st.entries++

	es := &entryState{base: st.payload.Start()}
	err := walk(dc, r, entrySections, es)
	entity := fmt.Sprintf("texture %d", index)
	if es.header {
		entity = fmt.Sprintf("texture %q", es.entry.Name)
	}
	if err != nil {
		if isCanceled(err) {
			return err
		}
		if isTruncation(err) {
			err = wrap(ErrTruncatedTexture, err)
		}
		dc.report(asset.KindRange, c, entity, err)
		return nil
	}
	if !es.header {
		dc.report(asset.KindStructural, c, entity, errors.Wrap(ErrInvalidTexture, "entry has no header"))
		return nil
	}

	e := es.entry
	if es.inline != nil {
		e.Data = *es.inline
	}
	pixels, err := st.payload.Slice(e.Data.Offset, e.Data.Length)
	if err != nil {
		dc.report(asset.KindRange, c, entity, wrap(ErrTruncatedTexture, err))
		return nil
	}
	if err := checkTexture(&e, dc.opts.AllowNonPow2); err != nil {
		dc.report(asset.KindStructural, c, entity, err)
		return nil
	}
	if es.palette != nil {
		if need := e.Format.PaletteSize(); need > 0 && es.palette.Length < need {
			dc.report(asset.KindRange, c, entity,
				errors.Wrapf(ErrTruncatedTexture, "palette holds %d of %d bytes", es.palette.Length, need))
			return nil
		}
		e.Palette = es.palette
	}

	e.Pixels = pixels
	e.Mips = mipChain(&e)
	st.dict.Entries = append(st.dict.Entries, e)
	return nil
}

func decodeTextureHeader(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, es *entryState) error {
	if !r.Need(textureHeaderSize) {
		return wrap(ErrTruncatedTexture, r.Err())
	}
	e := asset.TextureEntry{
		Name:   r.FixedString(textureNameSize),
		Mask:   r.FixedString(textureMaskNameSize),
		Width:  int(r.U16()),
		Height: int(r.U16()),
		Format: asset.PixelFormat(r.U32()),
	}
	e.MipCount = int(r.U8())
	e.Depth = int(r.U8())
	e.Flags = asset.TextureFlags(r.U16())
	e.Data.Offset = int(r.U32())
	e.Data.Length = int(r.U32())
	if err := r.Err(); err != nil {
		return wrap(ErrTruncatedTexture, err)
	}
	es.entry = e
	es.header = true
	return nil
}

// decodeTexturePixels records an inline pixel block that replaces the header's range.
func decodeTexturePixels(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, es *entryState) error {
	es.inline = &asset.Range{Offset: c.DataOffset() - es.base, Length: int(c.Size)}
	return nil
}

func decodeTexturePalette(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, es *entryState) error {
	es.palette = &asset.Range{Offset: c.DataOffset() - es.base, Length: int(c.Size)}
	return nil
}

func checkTexture(e *asset.TextureEntry, allowNonPow2 bool) error {
	if e.Width == 0 || e.Height == 0 {
		return errors.Wrapf(ErrInvalidTexture, "dimensions %dx%d", e.Width, e.Height)
	}
	pow2 := asset.IsPow2(e.Width) && asset.IsPow2(e.Height)
	if !pow2 && !allowNonPow2 && e.Flags&asset.TextureNonPow2 == 0 {
		return errors.Wrapf(ErrInvalidTexture, "dimensions %dx%d are not powers of two", e.Width, e.Height)
	}
	if e.MipCount < 1 {
		return errors.Wrapf(ErrInvalidTexture, "mip count %d", e.MipCount)
	}
	return nil
}

// mipChain lists the mip levels that fit inside the entry's data range.
func mipChain(e *asset.TextureEntry) []asset.Range {
	var mips []asset.Range
	off := e.Data.Offset
	w, h := e.Width, e.Height
	for level := 0; level < e.MipCount; level++ {
		size := e.Format.LevelSize(w, h)
		if size == 0 || off+size > e.Data.End() {
			break
		}
		mips = append(mips, asset.Range{Offset: off, Length: size})
		off += size
		w, h = max(w/2, 1), max(h/2, 1)
	}
	return mips
}
