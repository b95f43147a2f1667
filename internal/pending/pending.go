// Package pending keeps the review queue of captured translations.
//
// Every translation the engine produces (or gives up on) is appended here
// per language. The first value recorded for a key is kept forever so the
// queue reviewers work through stays stable.
package pending

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/autotrad/internal/catalog"
	"github.com/valpere/autotrad/internal/memory"
)

const (
	filePrefix = "autotrad.pending."
	fileExt    = ".json"
)

// FileName returns the pending file name for a language.
func FileName(lang string) string {
	return filePrefix + memory.Language(lang) + fileExt
}

// Store is safe for concurrent use. The files on disk are the source of
// truth; each language is loaded on first touch and cached.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	langs map[string]map[string]string
}

func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		dir:    dir,
		logger: logger,
		langs:  make(map[string]map[string]string),
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Path returns the pending file for tag's language.
func (s *Store) Path(tag string) string {
	return filepath.Join(s.dir, FileName(tag))
}

// load returns the cached entries for lang, reading the file on first use.
// Callers hold s.mu.
func (s *Store) load(lang string) map[string]string {
	if entries, ok := s.langs[lang]; ok {
		return entries
	}
	entries, err := catalog.ReadFile(s.Path(lang))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("pending file unreadable, starting empty", "lang", lang, "error", err)
		}
		entries = make(map[string]string)
	}
	s.langs[lang] = entries
	return entries
}

// Append records value for (tag, key) unless the key is already present.
// It reports whether a new entry was added. Write failures are logged; the
// entry stays in memory either way.
func (s *Store) Append(tag, key, value string) bool {
	lang := memory.Language(tag)
	if lang == "" || key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load(lang)
	if _, exists := entries[key]; exists {
		return false
	}
	entries[key] = value

	if err := catalog.WriteFile(s.Path(lang), entries); err != nil {
		s.logger.Error("failed to persist pending entry", "lang", lang, "key", key, "error", err)
	}
	return true
}

// Get returns the captured value for (tag, key).
func (s *Store) Get(tag, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.load(memory.Language(tag))[key]
	return v, ok
}

// Entries returns a copy of the captured entries for tag's language.
func (s *Store) Entries(tag string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.load(memory.Language(tag))
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Files lists the pending files present on disk, sorted by name.
func (s *Store) Files() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Languages lists the languages that have a pending file.
func (s *Store) Languages() ([]string, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		langs = append(langs, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt))
	}
	return langs, nil
}

// Manifest describes an export bundle.
type Manifest struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Files     map[string]int `json:"files"`
}

// ExportName returns a timestamped bundle file name.
func ExportName(now time.Time) string {
	return fmt.Sprintf("autotrad-pending-%s.zip", now.UTC().Format("20060102-150405"))
}

// Export writes a zip bundle of every pending file plus a manifest.json to
// w. The store is not modified.
func (s *Store) Export(w io.Writer) (*Manifest, error) {
	files, err := s.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending files: %w", err)
	}

	manifest := &Manifest{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]int, len(files)),
	}

	zw := zip.NewWriter(w)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		entries, err := catalog.Decode(path, data)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		name := filepath.Base(path)
		fw, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		manifest.Files[name] = len(entries)
	}

	fw, err := zw.Create("manifest.json")
	if err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to add manifest: %w", err)
	}
	enc := json.NewEncoder(fw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish bundle: %w", err)
	}
	return manifest, nil
}
