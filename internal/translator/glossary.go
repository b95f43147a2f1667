package translator

import (
	"context"
	"time"
)

// DefaultDoNotTranslate is used when NewGlossaryService gets a nil set.
var DefaultDoNotTranslate = []string{"ID", "AutoTrad"}

// TermSource supplies glossary terms for a language pair. An empty
// sourceLang matches terms recorded for any source language.
type TermSource interface {
	GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string]string, error)
}

// GlossaryService forces fixed terminology before machine translation:
// texts in the do-not-translate set come back unchanged, exact matches in
// the term tables are returned as-is, and anything else goes to the
// delegate.
type GlossaryService struct {
	terms         map[string]string
	dontTranslate map[string]struct{}
	source        TermSource
	delegate      TranslationService
}

type GlossaryOption func(*GlossaryService)

// WithTermSource adds per-language-pair terms (e.g. the SQLite glossary).
// They take precedence over the static table.
func WithTermSource(src TermSource) GlossaryOption {
	return func(s *GlossaryService) { s.source = src }
}

// NewGlossaryService wraps delegate, which may be nil to make the glossary
// the last word on the texts it knows.
func NewGlossaryService(terms map[string]string, dontTranslate []string, delegate TranslationService, opts ...GlossaryOption) *GlossaryService {
	if dontTranslate == nil {
		dontTranslate = DefaultDoNotTranslate
	}
	s := &GlossaryService{
		terms:         make(map[string]string, len(terms)),
		dontTranslate: make(map[string]struct{}, len(dontTranslate)),
		delegate:      delegate,
	}
	for k, v := range terms {
		s.terms[k] = v
	}
	for _, t := range dontTranslate {
		s.dontTranslate[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GlossaryService) Name() string {
	if s.delegate != nil {
		return "glossary+" + s.delegate.Name()
	}
	return "glossary"
}

func (s *GlossaryService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	start := time.Now()
	hit := func(text, origin string) *ServiceResult {
		return &ServiceResult{
			ServiceName:    s.Name(),
			TranslatedText: text,
			Metadata:       map[string]string{"glossary": origin},
			Latency:        time.Since(start),
		}
	}

	if _, ok := s.dontTranslate[req.Text]; ok {
		return hit(req.Text, "do-not-translate"), nil
	}

	if s.source != nil {
		// a failing term source is a miss, not a chain failure
		if terms, err := s.source.GetGlossaryTerms(ctx, baseLang(req.SourceLang), baseLang(req.TargetLang)); err == nil {
			if v, ok := terms[req.Text]; ok {
				return hit(v, "terms"), nil
			}
		}
	}

	if v, ok := s.terms[req.Text]; ok {
		return hit(v, "static"), nil
	}

	if s.delegate == nil {
		return nil, nil
	}
	return s.delegate.Translate(ctx, req)
}
