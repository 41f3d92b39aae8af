package loader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/formats"
	"github.com/Faultbox/leeds-assets/pkg/img"
)

// Source is one file to decode. Name identifies it in diagnostics and, unless
// Hint is set, supplies the extension hint.
type Source struct {
	Name string
	Hint string
	Open func(ctx context.Context) ([]byte, error)
}

func (s Source) hint() string {
	if s.Hint != "" {
		return s.Hint
	}
	return filepath.Ext(s.Name)
}

// FileSource reads path from disk.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func(ctx context.Context) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := os.ReadFile(path)
			return data, errors.Wrap(err, "reading asset file")
		},
	}
}

// SourcesFromFiles returns a file source for each path.
func SourcesFromFiles(paths []string) []Source {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource(p))
	}
	return sources
}

// SourcesFromDir walks root and returns a source for every file whose
// extension names a known container, sorted by path.
func SourcesFromDir(root string) ([]Source, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && formats.ContainerForExtension(filepath.Ext(path)) != formats.ContainerUnknown {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", root)
	}
	sort.Strings(paths)
	return SourcesFromFiles(paths), nil
}

// SourcesFromArchive returns a source for every archive entry matching
// pattern. Entries are named "<archive>/<entry>".
func SourcesFromArchive(a *img.Archive, pattern string) ([]Source, error) {
	names, err := a.Match(pattern)
	if err != nil {
		return nil, err
	}
	prefix := filepath.Base(a.Path())
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, Source{
			Name: prefix + "/" + name,
			Hint: filepath.Ext(name),
			Open: func(ctx context.Context) ([]byte, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return a.Read(name)
			},
		})
	}
	return sources, nil
}
