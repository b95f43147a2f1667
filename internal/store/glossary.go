package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/autotrad/internal/memory"
)

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// AddGlossaryTerm inserts or replaces a glossary entry. An empty sourceLang
// applies the term whatever the source language.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm, targetTerm string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_lang, target_lang, source_term, target_term)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), memory.Language(sourceLang), memory.Language(targetLang), normalizeText(sourceTerm), targetTerm)
	return err
}

// GetGlossaryTerms returns the terms for a language pair as a
// source-term → target-term map. Terms recorded for any source language are
// included; a term recorded for sourceLang itself takes precedence. With an
// empty sourceLang every term for targetLang is returned.
func (s *Store) GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string]string, error) {
	query := `SELECT source_term, target_term FROM glossary WHERE target_lang = ?`
	args := []any{memory.Language(targetLang)}
	if src := memory.Language(sourceLang); src != "" {
		query += ` AND source_lang IN ('', ?)`
		args = append(args, src)
	}
	// '' sorts first so source-specific rows overwrite generic ones
	query += ` ORDER BY source_lang`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := make(map[string]string)
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		terms[src] = tgt
	}
	return terms, rows.Err()
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by language
// pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary`
	var args []any

	sourceLang, targetLang = memory.Language(sourceLang), memory.Language(targetLang)
	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	return err
}
