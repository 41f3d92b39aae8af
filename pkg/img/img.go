// Package img reads IMG archives, the sector-aligned containers that ship
// models, texture dictionaries and worlds together.
//
// Two layouts are supported: a single VER2 file carrying its own directory,
// and the older pair of a .dir directory file beside a headerless .img.
package img

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
)

// SectorSize is the allocation unit for entry offsets and sizes.
const SectorSize = 2048

const (
	ver2Magic     = "VER2"
	dirEntrySize  = 32
	entryNameSize = 24
)

// Version identifies the archive layout.
type Version int

const (
	VersionDir Version = 1 // .dir + .img pair
	Version2   Version = 2 // single file with VER2 header
)

func (v Version) String() string {
	switch v {
	case VersionDir:
		return "DIR"
	case Version2:
		return "VER2"
	}
	return fmt.Sprintf("Unknown(%d)", int(v))
}

var (
	ErrNotFound     = errors.New("img: entry not found")
	ErrInvalidEntry = errors.New("img: entry outside archive")
	ErrNoDirectory  = errors.New("img: no directory")
)

// Archive is an opened IMG archive. It is safe for concurrent Read calls.
type Archive struct {
	file    *os.File
	path    string
	size    int64
	version Version
	entries map[string]*Entry
	order   []*Entry
}

// Entry is one archive member.
type Entry struct {
	Name string
	// Offset and Sectors are in units of SectorSize.
	Offset  uint32
	Sectors uint32
}

// Size returns the entry's byte length, including sector padding.
func (e *Entry) Size() int64 { return int64(e.Sectors) * SectorSize }

// Open opens an IMG archive. path may name a VER2 .img, a .dir, or the .img
// half of a pair.
func Open(path string) (*Archive, error) {
	imgPath, dirPath := path, ""
	if strings.EqualFold(filepath.Ext(path), ".dir") {
		imgPath, dirPath = swapExt(path, ".img"), path
	}

	file, err := os.Open(imgPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	a := &Archive{
		file:    file,
		path:    imgPath,
		size:    info.Size(),
		entries: make(map[string]*Entry),
	}

	if dirPath == "" {
		var magic [4]byte
		if _, err := file.ReadAt(magic[:], 0); err == nil && string(magic[:]) == ver2Magic {
			err := a.readVer2()
			if err != nil {
				file.Close()
				return nil, fmt.Errorf("reading directory: %w", err)
			}
			return a, nil
		}
		dirPath = swapExt(imgPath, ".dir")
	}

	dir, err := os.ReadFile(dirPath)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrNoDirectory, "%s: %v", dirPath, err)
	}
	a.version = VersionDir
	if err := a.readEntries(dir, uint32(len(dir)/dirEntrySize)); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return a, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *Archive) readVer2() error {
	a.version = Version2
	var hdr [8]byte
	if _, err := a.file.ReadAt(hdr[:], 0); err != nil {
		return err
	}
	count := binary.LittleEndian.Uint32(hdr[4:])
	if int64(count)*dirEntrySize > a.size-8 {
		return errors.Errorf("directory of %d entries exceeds archive size %d", count, a.size)
	}
	dir := make([]byte, int(count)*dirEntrySize)
	if _, err := a.file.ReadAt(dir, 8); err != nil {
		return err
	}
	return a.readEntries(dir, count)
}

func (a *Archive) readEntries(dir []byte, count uint32) error {
	for i := uint32(0); i < count; i++ {
		rec := dir[i*dirEntrySize : (i+1)*dirEntrySize]
		e := &Entry{
			Offset: binary.LittleEndian.Uint32(rec),
			Name:   encoding.NormalizePath(encoding.FixedStringToUTF8(rec[8 : 8+entryNameSize])),
		}
		if a.version == Version2 {
			streaming := binary.LittleEndian.Uint16(rec[4:])
			archived := binary.LittleEndian.Uint16(rec[6:])
			e.Sectors = uint32(streaming)
			if archived != 0 {
				e.Sectors = uint32(archived)
			}
		} else {
			e.Sectors = binary.LittleEndian.Uint32(rec[4:])
		}
		if e.Name == "" || e.Name == "." {
			continue
		}
		if _, dup := a.entries[e.Name]; dup {
			// first entry wins, like the game's streaming lookup
			continue
		}
		a.entries[e.Name] = e
		a.order = append(a.order, e)
	}
	return nil
}

// Path returns the path of the file holding entry data.
func (a *Archive) Path() string { return a.path }

// Version returns the archive layout.
func (a *Archive) Version() Version { return a.version }

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.order) }

// List returns all entry names, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.order))
	for _, e := range a.order {
		result = append(result, e.Name)
	}
	sort.Strings(result)
	return result
}

// Entries returns the entries in directory order.
func (a *Archive) Entries() []*Entry {
	return append([]*Entry(nil), a.order...)
}

// Entry looks up an entry by name, ignoring case and slash style.
func (a *Archive) Entry(name string) (*Entry, bool) {
	e, ok := a.entries[encoding.NormalizePath(name)]
	return e, ok
}

// Contains checks if an entry exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.Entry(name)
	return ok
}

// Match returns the sorted names matching a filepath.Match pattern. An empty
// pattern matches everything.
func (a *Archive) Match(pattern string) ([]string, error) {
	if pattern == "" {
		return a.List(), nil
	}
	pattern = strings.ToLower(pattern)
	var result []string
	for _, name := range a.List() {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", pattern)
		}
		if ok {
			result = append(result, name)
		}
	}
	return result, nil
}

// Read reads an entry's sectors.
func (a *Archive) Read(name string) ([]byte, error) {
	e, ok := a.Entry(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	start := int64(e.Offset) * SectorSize
	if start+e.Size() > a.size {
		return nil, errors.Wrapf(ErrInvalidEntry, "%s: sectors %d+%d, archive is %d bytes",
			e.Name, e.Offset, e.Sectors, a.size)
	}
	data := make([]byte, e.Size())
	if _, err := io.ReadFull(io.NewSectionReader(a.file, start, e.Size()), data); err != nil {
		return nil, errors.Wrapf(err, "reading %s", e.Name)
	}
	return data, nil
}

func swapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
