package chunktest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Member is one file placed in a test archive.
type Member struct {
	Name string
	Data []byte
}

const sector = 2048

// WriteArchive writes members to path. A .img path gets a VER2 archive; a
// .dir path gets a directory file plus the .img beside it. It returns the
// path to open.
func WriteArchive(t testing.TB, path string, members ...Member) string {
	t.Helper()

	ver2 := !strings.EqualFold(filepath.Ext(path), ".dir")
	headerSectors := 0
	if ver2 {
		headerSectors = (8 + 32*len(members) + sector - 1) / sector
	}

	dir := New(nil)
	data := make([]byte, headerSectors*sector)
	for _, m := range members {
		sectors := (len(m.Data) + sector - 1) / sector
		offset := len(data) / sector
		if ver2 {
			dir.U32(uint32(offset)).U16(uint16(sectors)).U16(0)
		} else {
			dir.U32(uint32(offset)).U32(uint32(sectors))
		}
		dir.String(m.Name, 24)
		data = append(data, m.Data...)
		data = append(data, make([]byte, sectors*sector-len(m.Data))...)
	}

	imgPath := path
	if ver2 {
		head := New(nil).Raw([]byte("VER2")).U32(uint32(len(members))).Raw(dir.Bytes()).Bytes()
		copy(data, head)
	} else {
		imgPath = strings.TrimSuffix(path, filepath.Ext(path)) + ".img"
		if err := os.WriteFile(path, dir.Bytes(), 0o644); err != nil {
			t.Fatalf("writing directory: %v", err)
		}
	}
	if err := os.WriteFile(imgPath, data, 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return path
}
