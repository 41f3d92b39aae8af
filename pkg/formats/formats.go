// Package formats decodes model, texture dictionary, collision and world
// containers into asset fragments.
//
// A container is a root chunk whose nested chunks are dispatched through
// per-format tables. Chunk ids missing from a table are skipped and recorded
// as unknown; recognised ids that are not decoded yet are recorded as
// unsupported. Failures scoped to one entity become diagnostics on the
// fragment; only failures that leave the file unreadable are returned.
package formats

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

// Container identifies the kind of root chunk.
type Container uint8

const (
	ContainerUnknown Container = iota
	ContainerModel
	ContainerTextureDictionary
	ContainerCollision
	ContainerWorld
)

func (c Container) String() string {
	switch c {
	case ContainerModel:
		return "Model"
	case ContainerTextureDictionary:
		return "TextureDictionary"
	case ContainerCollision:
		return "Collision"
	case ContainerWorld:
		return "World"
	default:
		return "Unknown"
	}
}

// Root chunk ids.
var (
	RootModel             = chunk.FourCC("CLMP")
	RootTextureDictionary = chunk.FourCC("TXDC")
	RootCollision         = chunk.FourCC("COL2")
	RootWorld             = chunk.FourCC("WRLD")
)

var extensions = map[string]Container{
	"mdl":  ContainerModel,
	"dff":  ContainerModel,
	"txd":  ContainerTextureDictionary,
	"xtx":  ContainerTextureDictionary,
	"chk":  ContainerTextureDictionary,
	"tex":  ContainerTextureDictionary,
	"col2": ContainerCollision,
	"col":  ContainerCollision,
	"wrld": ContainerWorld,
	"lvz":  ContainerWorld,
	"wbl":  ContainerWorld,
}

// ContainerForExtension maps an extension hint to a container. The hint may be
// a bare extension ("mdl"), a dotted one (".MDL") or a file name.
func ContainerForExtension(hint string) Container {
	if strings.ContainsAny(hint, `./\`) {
		hint = filepath.Ext(hint)
	}
	return extensions[strings.ToLower(strings.TrimPrefix(hint, "."))]
}

// ContainerForID maps a root chunk id to a container.
func ContainerForID(id uint32) Container {
	switch id {
	case RootModel:
		return ContainerModel
	case RootTextureDictionary:
		return ContainerTextureDictionary
	case RootCollision:
		return ContainerCollision
	case RootWorld:
		return ContainerWorld
	}
	return ContainerUnknown
}

func isRootID(id uint32) bool {
	return ContainerForID(id) != ContainerUnknown
}

// DefaultMaxInflated caps the size of an inflated container.
const DefaultMaxInflated = 256 << 20

// Options controls a single decode.
type Options struct {
	// Name identifies the file in diagnostics.
	Name string
	// Hint is an extension hint; it takes precedence over the root chunk id.
	Hint string
	// Order forces a byte order. Nil means detect from the root chunk.
	Order binary.ByteOrder
	// Alignment is the boundary nested chunk headers start on. 0 means 1.
	Alignment int
	// AllowNonPow2 accepts texture dimensions that are not powers of two.
	AllowNonPow2 bool
	// MaxInflated caps the size of compressed containers once inflated.
	MaxInflated int
	Logger      *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// DecodeFile decodes buf using hint as both the extension hint and the file name.
func DecodeFile(buf []byte, extensionHint string) (*asset.Fragment, error) {
	return Decode(context.Background(), buf, Options{Name: extensionHint, Hint: extensionHint})
}

// ReadFile reads path from disk and decodes it, taking the hint from its extension.
func ReadFile(ctx context.Context, path string, opts Options) (*asset.Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading asset file")
	}
	if opts.Name == "" {
		opts.Name = path
	}
	if opts.Hint == "" {
		opts.Hint = filepath.Ext(path)
	}
	return Decode(ctx, data, opts)
}

// Decode decodes one file buffer into a fragment.
//
// The returned error is a *FormatError when the file cannot be decoded, or the
// context's error when ctx is done. Problems confined to one entity are
// reported in the fragment's diagnostics instead.
func Decode(ctx context.Context, buf []byte, opts Options) (*asset.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := opts.logger().With(zap.String("file", opts.Name))

	buf, err := inflate(buf, opts.MaxInflated)
	if err != nil {
		return nil, &FormatError{File: opts.Name, Err: err}
	}

	order := opts.Order
	if order == nil {
		if order, err = chunk.DetectOrder(buf, isRootID); err != nil {
			return nil, &FormatError{File: opts.Name, Err: err}
		}
	}

	r := chunk.NewReader(buf, order)
	r.SetAlignment(opts.Alignment)
	dc := &decodeContext{
		ctx:  ctx,
		file: opts.Name,
		opts: opts,
		log:  log,
		frag: &asset.Fragment{File: opts.Name},
	}

	hint := ContainerForExtension(opts.Hint)
	roots := 0
	for {
		// archive members are padded out to whole sectors
		if roots > 0 && r.ZeroTail() {
			break
		}
		c, err := r.Next()
		if err != nil {
			return nil, &FormatError{File: opts.Name, Offset: errorOffset(err, r.Pos()), Err: err}
		}
		if c == nil {
			break
		}

		kind := ContainerForID(c.ID)
		if roots == 0 {
			switch {
			case hint != ContainerUnknown && kind != ContainerUnknown && kind != hint:
				return nil, &FormatError{File: opts.Name, Offset: c.Offset,
					Err: errors.Wrapf(ErrUnexpectedRoot, "%s root in %s file", kind, hint)}
			case hint != ContainerUnknown:
				kind = hint
			case kind == ContainerUnknown:
				return nil, &FormatError{File: opts.Name, Offset: c.Offset,
					Err: errors.Wrapf(ErrUnrecognizedFormat, "root chunk %s", chunk.IDString(c.ID))}
			}
		}
		roots++

		sub := r.Enter(c)
		if err := decodeContainer(kind, sub, c, dc); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &FormatError{File: opts.Name, Offset: errorOffset(err, c.Offset), Err: err}
		}
	}
	if roots == 0 {
		return nil, &FormatError{File: opts.Name, Err: errors.Wrap(ErrUnrecognizedFormat, "no root chunk")}
	}

	log.Debug("decoded",
		zap.String("order", chunk.OrderName(order)),
		zap.Int("bytes", len(buf)),
		zap.Int("models", len(dc.frag.Models)),
		zap.Int("dictionaries", len(dc.frag.Dictionaries)),
		zap.Int("collisions", len(dc.frag.Collisions)),
		zap.Int("instances", dc.frag.Instances()),
		zap.Int("unknown", len(dc.frag.Unknown)),
		zap.Int("diagnostics", len(dc.frag.Diagnostics)),
	)
	return dc.frag, nil
}

func decodeContainer(kind Container, r *chunk.Reader, c *chunk.Chunk, dc *decodeContext) error {
	switch kind {
	case ContainerModel:
		return decodeModel(r, c, dc)
	case ContainerTextureDictionary:
		return decodeDictionary(r, c, dc)
	case ContainerCollision:
		return decodeCollisionFile(r, c, dc)
	case ContainerWorld:
		return decodeWorld(r, c, dc)
	}
	dc.unknown(c)
	return nil
}

// isZlib reports whether buf starts with a zlib stream header.
func isZlib(buf []byte) bool {
	if len(buf) < 2 || buf[0] != 0x78 {
		return false
	}
	switch buf[1] {
	case 0x01, 0x5E, 0x9C, 0xDA:
		return (uint16(buf[0])<<8|uint16(buf[1]))%31 == 0
	}
	return false
}

func inflate(buf []byte, limit int) ([]byte, error) {
	if !isZlib(buf) {
		return buf, nil
	}
	if limit <= 0 {
		limit = DefaultMaxInflated
	}
	zr, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(ErrInflate, err.Error())
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, errors.Wrap(ErrInflate, err.Error())
	}
	if len(out) > limit {
		return nil, errors.Wrapf(ErrInflate, "inflated size exceeds %d bytes", limit)
	}
	return out, nil
}

// baseName returns a file name without directory or extension.
func baseName(file string) string {
	base := filepath.Base(strings.ReplaceAll(file, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
