// Package encoding provides text helpers for the fixed-width names stored in asset files.
package encoding

import (
	"bytes"
	"hash/crc32"
	"path"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// UTF8ToWindows1252 converts a UTF-8 string to Windows-1252 bytes.
// Characters outside the code page make the conversion fall back to the raw bytes.
func UTF8ToWindows1252(s string) []byte {
	result, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// FixedStringToUTF8 decodes a NUL-terminated fixed-size field.
// Bytes after the first NUL are ignored; they are often left over from the tool that wrote the file.
func FixedStringToUTF8(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Windows1252ToUTF8(data)
}

// UTF8ToFixedString encodes s into a NUL-padded field of the given size.
// Names longer than size-1 are cut so the field stays terminated.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	encoded := UTF8ToWindows1252(s)
	if len(encoded) > size-1 {
		encoded = encoded[:size-1]
	}
	copy(result, encoded)
	return result
}

// NormalizeName folds an asset name for case-insensitive lookup.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizePath normalizes an archive path for case-insensitive lookup.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.ToLower(path.Clean(strings.TrimPrefix(p, "/")))
}

// HashName returns the lookup hash for name: CRC-32 (IEEE) of the upper-cased name.
// World instances that store a hash instead of a name refer to models through this value.
func HashName(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToUpper(strings.TrimSpace(name))))
}
