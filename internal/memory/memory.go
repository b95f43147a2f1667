// Package memory is the process-local translation memory: accepted
// translations keyed by language and normalised source text.
package memory

import (
	"strings"
	"sync"
)

// Normalize turns a raw UI literal into the key used by the translation
// memory and the pending store.
func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}

// Language returns the lower-case primary subtag of tag ("pt-BR" -> "pt").
// The memory is bucketed by this value so regional variants share entries.
func Language(tag string) string {
	base, _, _ := strings.Cut(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"), "-")
	return strings.ToLower(base)
}

// TM is safe for concurrent use. Later writes to the same (language, key)
// overwrite earlier ones; nothing is evicted.
type TM struct {
	mu      sync.RWMutex
	buckets map[string]map[string]string
}

func New() *TM {
	return &TM{buckets: make(map[string]map[string]string)}
}

func (m *TM) Get(tag, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.buckets[Language(tag)][key]
	return v, ok
}

func (m *TM) Put(tag, key, text string) {
	lang := Language(tag)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[lang]
	if !ok {
		b = make(map[string]string)
		m.buckets[lang] = b
	}
	b[key] = text
}

// Merge copies entries into the bucket for tag, overwriting existing keys.
// Keys are normalised on the way in.
func (m *TM) Merge(tag string, entries map[string]string) int {
	lang := Language(tag)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[lang]
	if !ok {
		b = make(map[string]string, len(entries))
		m.buckets[lang] = b
	}
	n := 0
	for k, v := range entries {
		key := Normalize(k)
		if key == "" || strings.TrimSpace(v) == "" {
			continue
		}
		b[key] = v
		n++
	}
	return n
}

// Snapshot returns a copy of the bucket for tag.
func (m *TM) Snapshot(tag string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.buckets[Language(tag)]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Len returns the number of entries for tag.
func (m *TM) Len(tag string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets[Language(tag)])
}

// Languages lists the populated buckets.
func (m *TM) Languages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.buckets))
	for lang := range m.buckets {
		out = append(out, lang)
	}
	return out
}
