package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/internal/logger"
	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/loader"
)

func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".img", ".dir":
		return true
	}
	return false
}

// collectSources expands paths plus the configured search paths and archives
// into decode sources. The returned archive set must be closed by the caller.
func (a *app) collectSources(paths []string) ([]loader.Source, *loader.Archives, error) {
	archives := loader.NewArchives()
	var sources []loader.Source

	all := append(append([]string(nil), a.cfg.Data.SearchPaths...), a.cfg.Data.Archives...)
	all = append(all, paths...)
	for _, p := range all {
		info, err := os.Stat(p)
		switch {
		case err != nil:
			archives.Close()
			return nil, nil, errors.Wrapf(err, "input %s", p)
		case info.IsDir():
			found, err := loader.SourcesFromDir(p)
			if err != nil {
				archives.Close()
				return nil, nil, err
			}
			sources = append(sources, found...)
		case isArchive(p):
			if err := archives.Add(p); err != nil {
				archives.Close()
				return nil, nil, err
			}
		default:
			sources = append(sources, loader.FileSource(p))
		}
	}

	if archives.Len() > 0 {
		found, err := archives.Sources("")
		if err != nil {
			archives.Close()
			return nil, nil, err
		}
		sources = append(sources, found...)
	}
	if len(sources) == 0 {
		archives.Close()
		return nil, nil, errors.New("no input files")
	}
	return sources, archives, nil
}

// loadSession decodes paths into a fresh session. Per-file failures are
// written to warn and recorded in the session; only a cancelled load or
// unusable inputs fail the command.
func (a *app) loadSession(ctx context.Context, paths []string, warn io.Writer) (*asset.Session, error) {
	sources, archives, err := a.collectSources(paths)
	if err != nil {
		return nil, err
	}
	defer archives.Close()

	decode, err := a.cfg.Decode.Options(logger.Named("formats"))
	if err != nil {
		return nil, err
	}

	s := asset.NewSession(logger.Named("session"))
	results, err := loader.Load(ctx, s, sources, loader.Options{
		Workers: a.cfg.Decode.Workers,
		Decode:  decode,
		Logger:  logger.Log,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(warn, "Warning: %v\n", res.Err)
		}
	}
	if failed == len(results) {
		return nil, errors.Wrap(err, "no file could be decoded")
	}
	hits, misses := archives.Stats()
	logger.Debug("session loaded",
		zap.Stringer("session", s.ID()),
		zap.Int("failed", failed),
		zap.Int64("archive_hits", hits),
		zap.Int64("archive_misses", misses),
	)
	return s, nil
}
