package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPrefix is the dataset name used in catalog file names:
// <prefix>.<tag><ext>.
const DefaultPrefix = "autotrad"

// Source supplies a whole catalog for one language tag. found is false when
// the source has nothing for tag; that is not an error.
type Source interface {
	Lookup(ctx context.Context, tag string) (entries map[string]string, found bool, err error)
}

// FSSource reads catalogs from a directory of flat files named
// <prefix>.<tag>.json (or .yaml, .yml, .toml). The first existing extension
// wins.
type FSSource struct {
	dir    string
	prefix string
}

func NewFSSource(dir, prefix string) *FSSource {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &FSSource{dir: dir, prefix: prefix}
}

// Path returns the catalog path for tag and extension ext.
func (s *FSSource) Path(tag, ext string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%s%s", s.prefix, tag, ext))
}

func (s *FSSource) Lookup(ctx context.Context, tag string) (map[string]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	for _, ext := range Extensions {
		path := s.Path(tag, ext)
		entries, err := ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return entries, true, nil
	}
	return nil, false, nil
}

// Layered combines several sources. Entries from later layers override
// earlier ones; the result is found when any layer has the tag. A failing
// layer aborts the lookup.
type Layered []Source

func (l Layered) Lookup(ctx context.Context, tag string) (map[string]string, bool, error) {
	var (
		merged map[string]string
		found  bool
	)
	for _, src := range l {
		entries, ok, err := src.Lookup(ctx, tag)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		if merged == nil {
			merged = make(map[string]string, len(entries))
		}
		for k, v := range entries {
			merged[k] = v
		}
		found = true
	}
	return merged, found, nil
}

// MergeResult reports what Merge changed.
type MergeResult struct {
	Added      int
	Overridden int
	Total      int
}

// Merge unions the reviewed file at pendingPath into the catalog at
// catalogPath. On a key collision the pending value wins. A missing catalog
// is created.
func Merge(catalogPath, pendingPath string) (MergeResult, error) {
	var res MergeResult

	pending, err := ReadFile(pendingPath)
	if err != nil {
		return res, fmt.Errorf("reading pending file: %w", err)
	}

	cat, err := ReadFile(catalogPath)
	if errors.Is(err, os.ErrNotExist) {
		cat = make(map[string]string, len(pending))
	} else if err != nil {
		return res, fmt.Errorf("reading catalog: %w", err)
	}

	for k, v := range pending {
		old, exists := cat[k]
		switch {
		case !exists:
			res.Added++
		case old != v:
			res.Overridden++
		}
		cat[k] = v
	}
	res.Total = len(cat)

	if err := WriteFile(catalogPath, cat); err != nil {
		return res, err
	}
	return res, nil
}
