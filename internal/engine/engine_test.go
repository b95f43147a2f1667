package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/autotrad/internal/catalog"
	"github.com/valpere/autotrad/internal/locale"
	"github.com/valpere/autotrad/internal/pending"
	"github.com/valpere/autotrad/internal/store"
	"github.com/valpere/autotrad/internal/translator"
	"github.com/valpere/autotrad/internal/validator"
)

type fakeProvider struct {
	name  string
	fn    func(ctx context.Context, req translator.TranslateRequest) (string, error)
	calls atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	p.calls.Add(1)
	out, err := p.fn(ctx, req)
	if err != nil {
		return nil, err
	}
	return &translator.ServiceResult{ServiceName: p.name, TranslatedText: out}, nil
}

func constant(name, out string) *fakeProvider {
	return &fakeProvider{name: name, fn: func(context.Context, translator.TranslateRequest) (string, error) {
		return out, nil
	}}
}

type recordingPersister struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (p *recordingPersister) SaveToMemory(ctx context.Context, lang, key, text, provider string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, lang+"|"+key+"|"+text+"|"+provider)
	return p.err
}

func newEngine(t *testing.T, services ...translator.TranslationService) (*Engine, *pending.Store) {
	t.Helper()
	store := pending.New(t.TempDir(), nil)
	return New(services, WithPending(store), WithLocale("es"), WithTimeout(time.Second)), store
}

func TestTranslate_IdempotentAfterFirstSuccess(t *testing.T) {
	p := constant("mt", "Guardar")
	e, _ := newEngine(t, p)

	assert.Equal(t, "Guardar", e.Translate(context.Background(), "Save"))
	assert.Equal(t, "Guardar", e.Translate(context.Background(), "  Save "))
	assert.Equal(t, int32(1), p.calls.Load())

	snap := e.Telemetry().Snapshot()
	assert.Equal(t, int64(1), snap.MTCalls)
	assert.Equal(t, int64(1), snap.TMHits)
}

func TestTranslate_MemoryBucketedByLanguage(t *testing.T) {
	p := constant("mt", "Salvar")
	e, _ := newEngine(t, p)

	assert.Equal(t, "Salvar", e.TranslateTo(context.Background(), "Save", "pt-BR"))
	assert.Equal(t, "Salvar", e.TranslateTo(context.Background(), "Save", "pt-PT"))
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestTranslate_AcceptedGoesToPendingAndPersistence(t *testing.T) {
	persister := &recordingPersister{err: errors.New("disk full")}
	store := pending.New(t.TempDir(), nil)
	e := New([]translator.TranslationService{constant("mt", "Guardar")},
		WithPending(store), WithPersistence(persister), WithLocale("es"))

	assert.Equal(t, "Guardar", e.Translate(context.Background(), "Save"))

	v, ok := store.Get("es", "Save")
	require.True(t, ok)
	assert.Equal(t, "Guardar", v)
	assert.Equal(t, []string{"es|Save|Guardar|mt"}, persister.saved)
}

func TestTranslate_FallbackToRaw(t *testing.T) {
	failing := &fakeProvider{name: "down", fn: func(context.Context, translator.TranslateRequest) (string, error) {
		return "", errors.New("unreachable")
	}}
	e, store := newEngine(t, failing, constant("blank", "  "))

	assert.Equal(t, " Save ", e.Translate(context.Background(), " Save "))

	v, ok := store.Get("es", "Save")
	require.True(t, ok)
	assert.Equal(t, " Save ", v)
	assert.Equal(t, 0, e.Memory().Len("es"))
	assert.Equal(t, int64(0), e.Telemetry().Snapshot().MTCalls)
}

func TestTranslate_RejectionFallsThrough(t *testing.T) {
	bad := constant("bad", "Hola")
	good := constant("good", "Hola {name}")
	skipped := constant("skipped", "never")
	e, store := newEngine(t, bad, good, skipped)

	assert.Equal(t, "Hola {name}", e.Translate(context.Background(), "Hi {name}"))
	assert.Equal(t, int32(0), skipped.calls.Load())
	assert.Equal(t, int64(1), e.Telemetry().Snapshot().QualityRejects)

	v, _ := store.Get("es", "Hi {name}")
	assert.Equal(t, "Hola {name}", v)
}

func TestTranslate_NoRoleLimitOnAutomaticPath(t *testing.T) {
	long := strings.Repeat("x", 40)
	e, _ := newEngine(t, constant("mt", long))

	assert.Equal(t, long, e.Translate(context.Background(), "Save"))
}

func TestTranslate_BlacklistedSource(t *testing.T) {
	e, _ := newEngine(t, constant("mt", "usuario@ejemplo.com"), translator.NewEchoService())

	assert.Equal(t, "user@example.com", e.Translate(context.Background(), "user@example.com"))
	assert.Equal(t, int64(1), e.Telemetry().Snapshot().QualityRejects)
}

func TestTranslate_EmptyInput(t *testing.T) {
	p := constant("mt", "x")
	e, _ := newEngine(t, p)

	assert.Equal(t, "  ", e.Translate(context.Background(), "  "))
	assert.Equal(t, "Save", e.TranslateTo(context.Background(), "Save", ""))
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestTranslate_CancelledCallWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{name: "mt", fn: func(context.Context, translator.TranslateRequest) (string, error) {
		cancel()
		return "Guardar", nil
	}}
	persister := &recordingPersister{}
	store := pending.New(t.TempDir(), nil)
	e := New([]translator.TranslationService{p}, WithPending(store), WithPersistence(persister), WithLocale("es"))

	assert.Equal(t, "Save", e.Translate(ctx, "Save"))

	assert.Equal(t, 0, e.Memory().Len("es"))
	assert.Empty(t, store.Entries("es"))
	assert.Empty(t, persister.saved)
	assert.Equal(t, int64(0), e.Telemetry().Snapshot().MTCalls)
}

func TestTranslate_ConcurrentMissesStayCoherent(t *testing.T) {
	var n atomic.Int32
	p := &fakeProvider{name: "mt", fn: func(context.Context, translator.TranslateRequest) (string, error) {
		time.Sleep(10 * time.Millisecond)
		if n.Add(1)%2 == 0 {
			return "Guardar", nil
		}
		return "Salvar", nil
	}}
	e, store := newEngine(t, p)

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Translate(context.Background(), "Save")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Contains(t, []string{"Guardar", "Salvar"}, r)
	}
	assert.Equal(t, 1, e.Memory().Len("es"))
	v, ok := e.Memory().Get("es", "Save")
	require.True(t, ok)
	assert.Contains(t, []string{"Guardar", "Salvar"}, v)
	assert.Len(t, store.Entries("es"), 1)
}

func TestUpsertTranslation_Accepted(t *testing.T) {
	persister := &recordingPersister{}
	store := pending.New(t.TempDir(), nil)
	e := New(nil, WithPending(store), WithPersistence(persister))

	require.NoError(t, e.UpsertTranslation(context.Background(), " Save ", "Guardar", "es", validator.RoleButton))

	v, ok := e.Memory().Get("es", "Save")
	require.True(t, ok)
	assert.Equal(t, "Guardar", v)
	pv, _ := store.Get("es", "Save")
	assert.Equal(t, "Guardar", pv)
	assert.Equal(t, []string{"es|Save|Guardar|manual"}, persister.saved)
	assert.Equal(t, int64(1), e.Telemetry().Snapshot().ManualEdits)
}

func TestUpsertTranslation_PlaceholderMismatchLeavesNoTrace(t *testing.T) {
	e, store := newEngine(t)

	err := e.UpsertTranslation(context.Background(), "Hi {name}", "Hola {nombre}", "es", validator.RoleNone)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQualityRejected)
	assert.ErrorIs(t, err, validator.ErrPlaceholderMismatch)
	assert.Equal(t, 0, e.Memory().Len("es"))
	assert.Empty(t, store.Entries("es"))
	assert.Equal(t, int64(1), e.Telemetry().Snapshot().QualityRejects)
}

func TestUpsertTranslation_BlankRejected(t *testing.T) {
	e, store := newEngine(t)

	for _, blank := range []string{"", "   "} {
		err := e.UpsertTranslation(context.Background(), "Save", blank, "es", validator.RoleNone)
		assert.ErrorIs(t, err, ErrQualityRejected)
	}
	assert.Equal(t, 0, e.Memory().Len("es"))
	assert.Empty(t, store.Entries("es"))
	assert.Equal(t, int64(2), e.Telemetry().Snapshot().QualityRejects)
}

func TestUpsertTranslation_RoleLimit(t *testing.T) {
	e, _ := newEngine(t)

	err := e.UpsertTranslation(context.Background(), "Save", strings.Repeat("a", 17), "es", validator.RoleButton)
	assert.ErrorIs(t, err, validator.ErrTooLong)

	assert.NoError(t, e.UpsertTranslation(context.Background(), "Save", strings.Repeat("á", 16), "es", validator.RoleButton))
}

func TestUpsertTranslation_OverridesMemoryButNotPending(t *testing.T) {
	e, store := newEngine(t, constant("mt", "Salvar"))
	e.Translate(context.Background(), "Save")

	require.NoError(t, e.UpsertTranslation(context.Background(), "Save", "Guardar", "es", validator.RoleNone))

	assert.Equal(t, "Guardar", e.Translate(context.Background(), "Save"))
	pv, _ := store.Get("es", "Save")
	assert.Equal(t, "Salvar", pv)
}

func TestRender(t *testing.T) {
	e, _ := newEngine(t, constant("mt", "Hola {name}, tienes mensajes nuevos"))

	got := e.Render(context.Background(), "Hi {name}", validator.RoleNone, map[string]any{"name": "Ana"})
	assert.Equal(t, "Hola Ana, tienes mensajes nuevos", got)

	// the cached translation is too long for a chip, so the source is used
	got = e.Render(context.Background(), "Hi {name}", validator.RoleChip, map[string]any{"name": "Ana"})
	assert.Equal(t, "Hi Ana", got)
}

func TestWarm(t *testing.T) {
	p := &fakeProvider{name: "mt", fn: func(ctx context.Context, req translator.TranslateRequest) (string, error) {
		if req.Text == "Broken" {
			return "", errors.New("no model")
		}
		return strings.ToUpper(req.Text), nil
	}}
	e, _ := newEngine(t, p)

	err := e.Warm(context.Background(), []string{"Save", " Save", "Cancel", "Broken", ""}, "de")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUntranslated)
	assert.Contains(t, err.Error(), "Broken")
	assert.Equal(t, int32(3), p.calls.Load())
	assert.Equal(t, map[string]string{"Save": "SAVE", "Cancel": "CANCEL"}, e.Memory().Snapshot("de"))

	assert.NoError(t, e.Warm(context.Background(), []string{"Save"}, "de"))
}

type mapSource map[string]map[string]string

func (m mapSource) Lookup(ctx context.Context, tag string) (map[string]string, bool, error) {
	entries, ok := m[tag]
	return entries, ok, nil
}

func TestSetLocale_LoadsCatalog(t *testing.T) {
	src := catalog.Layered{mapSource{
		"pt":    {"Save": "Salvar (pt)", "Cancel": "Cancelar"},
		"pt-BR": {"Save": "Salvar"},
	}}
	p := constant("mt", "from provider")
	e := New([]translator.TranslationService{p}, WithCatalog(src))

	e.SetLocale(context.Background(), "pt-BR")
	assert.Equal(t, "pt-BR", e.Current())
	assert.Equal(t, "Salvar", e.Translate(context.Background(), "Save"))
	// only the first catalog found is merged
	assert.Equal(t, "from provider", e.Translate(context.Background(), "Cancel"))

	e.SetLocale(context.Background(), "pt-PT")
	assert.Equal(t, "Cancelar", e.Translate(context.Background(), "Cancel"))
}

func TestSetLocale_FileCatalog(t *testing.T) {
	dir := t.TempDir()
	fs := catalog.NewFSSource(dir, "")
	require.NoError(t, catalog.WriteFile(fs.Path("fr", ".json"), map[string]string{"Save": "Enregistrer"}))

	e := New(nil, WithCatalog(fs))
	e.SetLocale(context.Background(), "fr-CA")

	assert.Equal(t, "Enregistrer", e.Translate(context.Background(), "Save"))
	assert.Equal(t, int64(1), e.Telemetry().Snapshot().TMHits)
}

func TestSetLocale_DatabaseAndFileCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(filepath.Join(t.TempDir(), "autotrad.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.SaveToMemory(ctx, "fr", "Cancel", "Annuler", "mt"))
	require.NoError(t, db.SaveToMemory(ctx, "fr", "Save", "Sauver", "mt"))

	fs := catalog.NewFSSource(t.TempDir(), "")
	require.NoError(t, catalog.WriteFile(fs.Path("fr", ".json"), map[string]string{"Save": "Enregistrer"}))

	e := New(nil, WithCatalog(catalog.Layered{db, fs}))
	e.SetLocale(ctx, "fr-CA")

	// the reviewed file overrides the remembered translation
	assert.Equal(t, "Enregistrer", e.Translate(ctx, "Save"))
	assert.Equal(t, "Annuler", e.Translate(ctx, "Cancel"))
	assert.Equal(t, int64(2), e.Telemetry().Snapshot().TMHits)
}

func TestFollow(t *testing.T) {
	ctx := context.Background()
	resolver := locale.NewResolver(locale.Policy{
		Mode:          locale.Hybrid,
		Supported:     []string{"en", "es"},
		FallbackChain: []string{"en"},
	}, locale.WithSystemLocale(func() string { return "fr-FR" }))

	e := New(nil)
	cancel := e.Follow(ctx, resolver)
	assert.Equal(t, "fr-FR", e.Current())

	resolver.Recompute(ctx)
	assert.Equal(t, "en", e.Current())

	resolver.SetUserLanguage(ctx, "es")
	assert.Equal(t, "es", e.Current())

	cancel()
	resolver.SetUserLanguage(ctx, "en")
	assert.Equal(t, "es", e.Current())
}
