package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/autotrad/internal/locale"
	"github.com/valpere/autotrad/internal/memory"
)

const userLanguageKey = "user_lang"

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- translation_memory persists accepted translations per base language
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		lang TEXT NOT NULL,
		source_text TEXT NOT NULL,
		final_text TEXT NOT NULL,
		service_used TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(lang, source_text)
	);

	-- glossary stores fixed terminology; an empty source_lang matches any source
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL DEFAULT '',
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	-- preferences holds small user settings such as the chosen language
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lang ON translation_memory(lang);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(target_lang, source_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveToMemory inserts or updates the translation of key for lang. An
// invalidated row becomes active again.
func (s *Store) SaveToMemory(ctx context.Context, lang, key, text, provider string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_memory (id, lang, source_text, final_text, service_used, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, FALSE, ?, ?)
		 ON CONFLICT(lang, source_text) DO UPDATE SET
			final_text = excluded.final_text,
			service_used = excluded.service_used,
			invalidated = FALSE,
			last_used = excluded.last_used`,
		uuid.New().String(), memory.Language(lang), memory.Normalize(key), text, provider, now, now)
	return err
}

// GetCachedTranslation returns the active translation of key for tag's
// language and bumps its usage counter.
func (s *Store) GetCachedTranslation(ctx context.Context, tag, key string) (string, bool, error) {
	lang, key := memory.Language(tag), memory.Normalize(key)

	var finalText string
	var invalidated bool
	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM translation_memory WHERE lang = ? AND source_text = ?`,
		lang, key).Scan(&finalText, &invalidated)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE lang = ? AND source_text = ?`,
		time.Now(), lang, key)

	return finalText, true, err
}

// Lookup returns every active translation for tag, so the store can serve
// as a catalog source. Rows are kept per base language, so only a bare
// language tag ("fr", not "fr-CA") is found here; a regional lookup falls
// through to the base tag and other sources get their turn for both.
func (s *Store) Lookup(ctx context.Context, tag string) (map[string]string, bool, error) {
	lang := memory.Language(tag)
	if lang == "" || !strings.EqualFold(strings.TrimSpace(tag), lang) {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_text, final_text FROM translation_memory WHERE lang = ? AND NOT invalidated`,
		lang)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var src, text string
		if err := rows.Scan(&src, &text); err != nil {
			return nil, false, err
		}
		entries[src] = text
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return entries, len(entries) > 0, nil
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID          string
	Lang        string
	SourceText  string
	FinalText   string
	ServiceUsed string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
	Languages      int
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes translation memory entries, for one language or, with
// an empty lang, all of them.
func (s *Store) ClearMemory(ctx context.Context, lang string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if lang == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE lang = ?`, memory.Language(lang))
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns translation memory entries ordered by most recently
// used, optionally restricted to one language.
func (s *Store) ListMemory(ctx context.Context, lang string) ([]MemoryEntry, error) {
	query := `SELECT id, lang, source_text, final_text, COALESCE(service_used, ''), usage_count, invalidated, last_used FROM translation_memory`
	var args []any
	if lang != "" {
		query += ` WHERE lang = ?`
		args = append(args, memory.Language(lang))
	}
	query += ` ORDER BY last_used DESC, source_text`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.Lang, &e.SourceText, &e.FinalText, &e.ServiceUsed, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0),
			COUNT(DISTINCT lang)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
		&stats.Languages,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// UserLanguage reads the persisted language choice.
func (s *Store) UserLanguage(ctx context.Context) (locale.UserChoice, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, userLanguageKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return locale.NoChoice(), nil
	}
	if err != nil {
		return locale.NoChoice(), err
	}
	return locale.ParseUserChoice(value), nil
}

// SetUserLanguage persists choice; NoChoice removes the stored value.
func (s *Store) SetUserLanguage(ctx context.Context, choice locale.UserChoice) error {
	if choice.Kind == locale.ChoiceNone {
		_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, userLanguageKey)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userLanguageKey, choice.String(), time.Now())
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent glossary term comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
