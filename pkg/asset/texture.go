package asset

import "fmt"

// Platform identifies the console or PC variant a texture dictionary was built for.
type Platform uint32

const (
	PlatformPS2    Platform = 1
	PlatformPSP    Platform = 2
	PlatformMobile Platform = 3
	PlatformPC     Platform = 4
)

func (p Platform) String() string {
	switch p {
	case PlatformPS2:
		return "PS2"
	case PlatformPSP:
		return "PSP"
	case PlatformMobile:
		return "Mobile"
	case PlatformPC:
		return "PC"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// PixelFormat is the tag describing how a texture's pixel block is encoded.
type PixelFormat uint32

const (
	FormatPal4     PixelFormat = 1
	FormatPal8     PixelFormat = 2
	FormatRGBA5551 PixelFormat = 3
	FormatRGBA8888 PixelFormat = 4
	FormatDXT1     PixelFormat = 5
	FormatDXT3     PixelFormat = 6
	FormatDXT5     PixelFormat = 7
	FormatPVRTC4   PixelFormat = 8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatPal4:
		return "PAL4"
	case FormatPal8:
		return "PAL8"
	case FormatRGBA5551:
		return "RGBA5551"
	case FormatRGBA8888:
		return "RGBA8888"
	case FormatDXT1:
		return "DXT1"
	case FormatDXT3:
		return "DXT3"
	case FormatDXT5:
		return "DXT5"
	case FormatPVRTC4:
		return "PVRTC4"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// PaletteSize returns the palette length in bytes for indexed formats, 0 otherwise.
func (f PixelFormat) PaletteSize() int {
	switch f {
	case FormatPal4:
		return 16 * 4
	case FormatPal8:
		return 256 * 4
	}
	return 0
}

// LevelSize returns the byte size of one mip level, or 0 for unknown formats.
func (f PixelFormat) LevelSize(width, height int) int {
	w, h := max(width, 1), max(height, 1)
	switch f {
	case FormatPal4:
		return (w*h + 1) / 2
	case FormatPal8:
		return w * h
	case FormatRGBA5551:
		return w * h * 2
	case FormatRGBA8888:
		return w * h * 4
	case FormatDXT1:
		return blocks(w) * blocks(h) * 8
	case FormatDXT3, FormatDXT5:
		return blocks(w) * blocks(h) * 16
	case FormatPVRTC4:
		return max(w, 8) * max(h, 8) / 2
	}
	return 0
}

func blocks(n int) int { return (n + 3) / 4 }

// Range is a byte span relative to the start of a texture dictionary's payload.
type Range struct {
	Offset int
	Length int
}

// End returns the offset just past the range.
func (r Range) End() int { return r.Offset + r.Length }

// TextureFlags carries per-entry options.
type TextureFlags uint16

const (
	// TextureNonPow2 marks an entry whose dimensions may be any size.
	TextureNonPow2 TextureFlags = 1 << 0
)

// TextureEntry locates one texture's pixel data without decoding it.
type TextureEntry struct {
	Name     string
	Mask     string
	Width    int
	Height   int
	Format   PixelFormat
	Depth    int
	MipCount int
	Flags    TextureFlags
	Data     Range
	Mips     []Range // levels that fit inside Data, largest first
	Palette  *Range
	Pixels   []byte // aliases the decoded file buffer
}

// TextureDictionary is a named collection of texture entries.
type TextureDictionary struct {
	Name     string
	File     string
	Platform Platform
	Entries  []TextureEntry
}

// Find returns the entry named name, matched case-insensitively.
func (d *TextureDictionary) Find(name string) *TextureEntry {
	key := normalize(name)
	for i := range d.Entries {
		if normalize(d.Entries[i].Name) == key {
			return &d.Entries[i]
		}
	}
	return nil
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
