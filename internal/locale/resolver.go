package locale

import (
	"context"
	"log/slog"
	"sync"
)

// PreferenceStore persists the user's language choice across restarts.
type PreferenceStore interface {
	UserLanguage(ctx context.Context) (UserChoice, error)
	SetUserLanguage(ctx context.Context, choice UserChoice) error
}

// MemoryPreferences keeps the choice in memory; useful for tests and
// for running without a database.
type MemoryPreferences struct {
	mu     sync.Mutex
	choice UserChoice
}

func (m *MemoryPreferences) UserLanguage(ctx context.Context) (UserChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.choice, nil
}

func (m *MemoryPreferences) SetUserLanguage(ctx context.Context, choice UserChoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choice = choice
	return nil
}

type Option func(*Resolver)

func WithSystemLocale(fn SystemLocaleFunc) Option {
	return func(r *Resolver) { r.system = fn }
}

func WithPreferences(store PreferenceStore) Option {
	return func(r *Resolver) { r.prefs = store }
}

func WithGeoHinter(h GeoHinter) Option {
	return func(r *Resolver) { r.geo = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

type subscriber func(version uint64, tag string)

// Resolver owns the effective locale. Subscribers are called synchronously,
// after the internal lock is released, whenever the value changes.
type Resolver struct {
	system SystemLocaleFunc
	prefs  PreferenceStore
	geo    GeoHinter
	logger *slog.Logger

	mu      sync.Mutex
	policy  Policy
	current string
	version uint64
	subs    map[int]subscriber
	nextID  int
}

// NewResolver returns a resolver whose initial value is the raw system
// locale; call Recompute to apply the policy.
func NewResolver(policy Policy, opts ...Option) *Resolver {
	r := &Resolver{
		system: EnvSystemLocale,
		policy: policy,
		subs:   make(map[int]subscriber),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.prefs == nil {
		r.prefs = &MemoryPreferences{}
	}
	if r.geo == nil {
		r.geo = SystemGeoHinter{System: r.system}
	}
	r.current = normalizeTag(r.system())
	return r
}

// Current returns the effective locale.
func (r *Resolver) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Resolver) Policy() Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy
}

// UserChoice reads the persisted choice. A failing store reads as no choice.
func (r *Resolver) UserChoice(ctx context.Context) UserChoice {
	choice, err := r.prefs.UserLanguage(ctx)
	if err != nil {
		r.logger.Warn("failed to read user language", "error", err)
		return NoChoice()
	}
	return choice
}

// Recompute gathers the signals, resolves and publishes the result.
func (r *Resolver) Recompute(ctx context.Context) string {
	policy := r.Policy()
	signals := Signals{
		System: normalizeTag(r.system()),
		User:   r.UserChoice(ctx),
	}
	if geo, ok := r.geo.Suggest(ctx, policy.Supported); ok {
		signals.Geo = geo
	}

	tag := Resolve(policy, signals)
	r.publish(tag)
	r.logger.Debug("locale resolved", "mode", policy.Mode.String(), "system", signals.System, "user", signals.User.String(), "geo", signals.Geo, "effective", tag)
	return tag
}

func (r *Resolver) publish(tag string) {
	r.mu.Lock()
	if tag == r.current {
		r.mu.Unlock()
		return
	}
	r.current = tag
	r.version++
	version := r.version
	subs := make([]subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s(version, tag)
	}
}

// SetPolicy replaces the policy and recomputes.
func (r *Resolver) SetPolicy(ctx context.Context, p Policy) string {
	r.mu.Lock()
	r.policy = p
	r.mu.Unlock()
	return r.Recompute(ctx)
}

func (r *Resolver) setMode(mode Mode, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy.Mode = mode
	r.policy.Tag = tag
}

func (r *Resolver) persist(ctx context.Context, choice UserChoice) {
	if err := r.prefs.SetUserLanguage(ctx, choice); err != nil {
		r.logger.Warn("failed to persist user language", "choice", choice.String(), "error", err)
	}
}

// SetUserLanguage stores tag as the user's choice and switches to
// UserSelected mode. An empty tag behaves like UseSystemLanguage.
func (r *Resolver) SetUserLanguage(ctx context.Context, tag string) string {
	choice := TagChoice(tag)
	if choice.Kind != ChoiceTag {
		return r.UseSystemLanguage(ctx)
	}
	r.persist(ctx, choice)
	r.setMode(UserSelected, choice.Tag)
	return r.Recompute(ctx)
}

// UseSystemLanguage records an explicit "system default" choice and
// switches to FollowSystem mode.
func (r *Resolver) UseSystemLanguage(ctx context.Context) string {
	r.persist(ctx, SystemChoice())
	r.setMode(FollowSystem, "")
	return r.Recompute(ctx)
}

// ClearUserLanguage forgets the stored choice. The mode is unchanged.
func (r *Resolver) ClearUserLanguage(ctx context.Context) string {
	r.persist(ctx, NoChoice())
	return r.Recompute(ctx)
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (r *Resolver) Subscribe(fn func(tag string)) (cancel func()) {
	return r.subscribe(func(_ uint64, tag string) { fn(tag) })
}

func (r *Resolver) subscribe(s subscriber) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = s
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Watch returns a channel holding the latest effective locale. It starts
// with the current value, keeps only the newest unread value and is closed
// when ctx is done.
func (r *Resolver) Watch(ctx context.Context) <-chan string {
	ch := make(chan string, 1)

	var (
		mu     sync.Mutex
		last   uint64
		sent   bool
		closed bool
	)
	push := func(version uint64, tag string) {
		mu.Lock()
		defer mu.Unlock()
		if closed || (sent && version <= last) {
			return
		}
		last, sent = version, true
		select {
		case <-ch:
		default:
		}
		ch <- tag
	}

	r.mu.Lock()
	version, tag := r.version, r.current
	r.mu.Unlock()

	cancel := r.subscribe(push)
	push(version, tag)

	go func() {
		<-ctx.Done()
		cancel()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}
