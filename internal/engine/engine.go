// Package engine is the runtime translation pipeline: translation memory
// lookup, the ordered provider chain, the quality gate and the bookkeeping
// (memory, pending capture, telemetry, persistence) that follows an
// accepted translation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valpere/autotrad/internal/catalog"
	"github.com/valpere/autotrad/internal/memory"
	"github.com/valpere/autotrad/internal/orchestrator"
	"github.com/valpere/autotrad/internal/placeholder"
	"github.com/valpere/autotrad/internal/telemetry"
	"github.com/valpere/autotrad/internal/translator"
	"github.com/valpere/autotrad/internal/validator"
)

var (
	// ErrQualityRejected is returned by UpsertTranslation when the edit
	// fails the quality gate. The gate's reason is wrapped alongside.
	ErrQualityRejected = errors.New("translation rejected by quality gate")

	// ErrUntranslated is reported by Warm for literals that no provider
	// could translate.
	ErrUntranslated = errors.New("no acceptable translation")
)

// ManualProvider is the provider name recorded for UpsertTranslation.
const ManualProvider = "manual"

// PendingStore receives every translated or given-up literal for review.
type PendingStore interface {
	Append(tag, key, value string) bool
}

// Persister stores accepted translations beyond the process lifetime.
type Persister interface {
	SaveToMemory(ctx context.Context, lang, key, text, provider string) error
}

// LocaleSource publishes the effective locale; locale.Resolver implements it.
type LocaleSource interface {
	Current() string
	Subscribe(fn func(tag string)) (cancel func())
}

type Option func(*Engine)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func WithMemory(tm *memory.TM) Option {
	return func(e *Engine) { e.tm = tm }
}

func WithPending(p PendingStore) Option {
	return func(e *Engine) { e.pending = p }
}

func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(e *Engine) { e.telemetry = t }
}

// WithCatalog sets the source preloaded into memory on SetLocale.
func WithCatalog(src catalog.Source) Option {
	return func(e *Engine) { e.catalog = src }
}

// WithPersistence writes accepted translations through to p.
func WithPersistence(p Persister) Option {
	return func(e *Engine) { e.persist = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLocale sets the initial default target without loading a catalog.
func WithLocale(tag string) Option {
	return func(e *Engine) { e.locale = tag }
}

// WithSourceLanguage declares the language literals are written in. Empty
// means unknown, leaving detection to the providers.
func WithSourceLanguage(tag string) Option {
	return func(e *Engine) { e.sourceLang = tag }
}

// WithWarmConcurrency bounds Warm's parallelism.
func WithWarmConcurrency(n int) Option {
	return func(e *Engine) { e.warmLimit = n }
}

// Engine is safe for concurrent use. Concurrent misses for the same key
// each run the chain; the memory keeps the last accepted value and the
// pending store the first.
type Engine struct {
	orch       *orchestrator.Orchestrator
	tm         *memory.TM
	pending    PendingStore
	telemetry  *telemetry.Telemetry
	catalog    catalog.Source
	persist    Persister
	logger     *slog.Logger
	timeout    time.Duration
	sourceLang string
	warmLimit  int

	mu     sync.RWMutex
	locale string
}

// New builds an engine over the ordered provider chain.
func New(services []translator.TranslationService, opts ...Option) *Engine {
	e := &Engine{
		timeout:   10 * time.Second,
		warmLimit: 4,
		locale:    "en",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tm == nil {
		e.tm = memory.New()
	}
	if e.telemetry == nil {
		e.telemetry = telemetry.New(e.logger)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	e.orch = orchestrator.New(services, orchestrator.OrchestratorConfig{Timeout: e.timeout})
	return e
}

func (e *Engine) Memory() *memory.TM {
	return e.tm
}

func (e *Engine) Telemetry() *telemetry.Telemetry {
	return e.telemetry
}

// Current returns the default target locale.
func (e *Engine) Current() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.locale
}

// Translate translates raw into the current locale. It never fails; when
// nothing acceptable is found raw is returned.
func (e *Engine) Translate(ctx context.Context, raw string) string {
	return e.TranslateTo(ctx, raw, e.Current())
}

// TranslateTo translates raw into tag.
func (e *Engine) TranslateTo(ctx context.Context, raw, tag string) string {
	text, _ := e.translate(ctx, raw, tag)
	return text
}

func (e *Engine) translate(ctx context.Context, raw, tag string) (string, bool) {
	key := memory.Normalize(raw)
	lang := memory.Language(tag)
	if key == "" || lang == "" {
		return raw, false
	}

	if v, ok := e.tm.Get(tag, key); ok {
		e.telemetry.TMHit(lang)
		return v, true
	}

	start := time.Now()
	req := translator.TranslateRequest{Text: key, SourceLang: e.sourceLang, TargetLang: tag}
	result := e.orch.Execute(ctx, req, func(res *translator.ServiceResult) error {
		if err := validator.Check(key, res.TranslatedText, validator.RoleNone); err != nil {
			e.telemetry.QualityReject(lang)
			e.logger.Debug("candidate rejected", "provider", res.ServiceName, "lang", lang, "key", key, "reason", err)
			return err
		}
		return nil
	})

	if ctx.Err() != nil {
		// a cancelled call leaves no trace
		return raw, false
	}

	for _, err := range result.Errors {
		e.logger.Debug("provider gave no answer", "lang", lang, "key", key, "error", err)
	}

	if result.Accepted == nil {
		e.appendPending(tag, key, raw)
		return raw, false
	}

	text := result.Accepted.TranslatedText
	e.telemetry.MTCall(lang, time.Since(start))
	e.tm.Put(tag, key, text)
	e.appendPending(tag, key, text)
	e.save(ctx, lang, key, text, result.Accepted.ServiceName)
	return text, true
}

func (e *Engine) appendPending(tag, key, value string) {
	if e.pending != nil {
		e.pending.Append(tag, key, value)
	}
}

func (e *Engine) save(ctx context.Context, lang, key, text, provider string) {
	if e.persist == nil {
		return
	}
	if err := e.persist.SaveToMemory(ctx, lang, key, text, provider); err != nil {
		e.logger.Warn("failed to persist translation", "lang", lang, "key", key, "error", err)
	}
}

// UpsertTranslation records a manual translation of raw for tag. The edit
// is checked against role's length limit as well as the automatic checks;
// a rejected edit changes nothing.
func (e *Engine) UpsertTranslation(ctx context.Context, raw, translated, tag string, role validator.Role) error {
	key := memory.Normalize(raw)
	lang := memory.Language(tag)
	if key == "" || lang == "" {
		return fmt.Errorf("%w: empty source or locale", ErrQualityRejected)
	}
	if strings.TrimSpace(translated) == "" {
		e.telemetry.QualityReject(lang)
		return fmt.Errorf("%w: blank translation", ErrQualityRejected)
	}

	if err := validator.Check(key, translated, role); err != nil {
		e.telemetry.QualityReject(lang)
		return fmt.Errorf("%w: %w", ErrQualityRejected, err)
	}

	e.tm.Put(tag, key, translated)
	e.appendPending(tag, key, translated)
	e.save(ctx, lang, key, translated, ManualProvider)
	e.telemetry.ManualEdit(lang)
	return nil
}

// Render translates raw into the current locale, re-checks the result for
// role and fills {name} placeholders from args. A translation that does not
// fit role falls back to raw.
func (e *Engine) Render(ctx context.Context, raw string, role validator.Role, args map[string]any) string {
	text := e.Translate(ctx, raw)
	if text != raw && !validator.IsAcceptable(memory.Normalize(raw), text, role) {
		text = raw
	}
	return placeholder.Substitute(text, args)
}

// Warm translates literals into tag in parallel so later lookups hit the
// memory. Every literal is attempted; the returned error lists those that
// stayed untranslated.
func (e *Engine) Warm(ctx context.Context, literals []string, tag string) error {
	seen := make(map[string]struct{}, len(literals))
	unique := make([]string, 0, len(literals))
	for _, lit := range literals {
		key := memory.Normalize(lit)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}

	return orchestrator.Warm(ctx, unique, e.warmLimit, func(ctx context.Context, lit string) error {
		if _, ok := e.translate(ctx, lit, tag); !ok {
			return ErrUntranslated
		}
		return nil
	})
}

// SetLocale makes tag the default target and preloads its catalog: the
// exact tag first, then its base language. The first catalog found is
// merged into memory as a whole.
func (e *Engine) SetLocale(ctx context.Context, tag string) {
	e.mu.Lock()
	e.locale = tag
	e.mu.Unlock()

	e.loadCatalog(ctx, tag)
}

func (e *Engine) loadCatalog(ctx context.Context, tag string) {
	if e.catalog == nil {
		return
	}

	candidates := []string{tag}
	if base := memory.Language(tag); base != "" && base != tag {
		candidates = append(candidates, base)
	}

	for _, c := range candidates {
		entries, found, err := e.catalog.Lookup(ctx, c)
		if err != nil {
			e.logger.Warn("failed to load catalog", "tag", c, "error", err)
			continue
		}
		if !found {
			continue
		}
		n := e.tm.Merge(tag, entries)
		e.logger.Debug("catalog loaded", "tag", c, "entries", n)
		return
	}
}

// Follow keeps the default target in sync with src until the returned
// function is called.
func (e *Engine) Follow(ctx context.Context, src LocaleSource) (cancel func()) {
	e.SetLocale(ctx, src.Current())
	return src.Subscribe(func(tag string) {
		e.SetLocale(ctx, tag)
	})
}
