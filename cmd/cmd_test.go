/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valpere/autotrad/internal/config"
	"github.com/valpere/autotrad/internal/locale"
	"github.com/valpere/autotrad/internal/orchestrator"
	"github.com/valpere/autotrad/internal/translator"
	"github.com/valpere/autotrad/internal/validator"
)

func TestGatherLiterals(t *testing.T) {
	dir := t.TempDir()

	textFile := filepath.Join(dir, "strings.txt")
	if err := os.WriteFile(textFile, []byte("Save\n\n  Cancel  \nDelete {count} files\n"), 0644); err != nil {
		t.Fatal(err)
	}
	catalogFile := filepath.Join(dir, "autotrad.en.json")
	if err := os.WriteFile(catalogFile, []byte(`{"Sign in": "Sign in", "Cart": "Cart"}`), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		args  []string
		path  string
		stdin string
		want  []string
	}{
		{"args joined", []string{"Save", "changes"}, textFile, "ignored", []string{"Save changes"}},
		{"text file lines", nil, textFile, "", []string{"Save", "Cancel", "Delete {count} files"}},
		{"catalog keys sorted", nil, catalogFile, "", []string{"Cart", "Sign in"}},
		{"stdin", nil, "", "Open\nClose\n", []string{"Open", "Close"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gatherLiterals(tt.args, tt.path, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatalf("gatherLiterals() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("gatherLiterals() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadLiterals_Missing(t *testing.T) {
	if _, err := readLiterals(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestCountErrors(t *testing.T) {
	one := errors.New("one")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"single", one, 1},
		{"joined", errors.Join(one, one, one), 3},
		{"wrapped single", fmt.Errorf("warm: %w", one), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countErrors(tt.err); got != tt.want {
				t.Errorf("countErrors() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("Save"); got != "Save" {
		t.Errorf("snippet() = %q", got)
	}
	long := strings.Repeat("é", 50)
	got := snippet(long)
	if len([]rune(got)) != 40 || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet() = %q, want 37 runes plus ellipsis", got)
	}
}

func TestAnyLang(t *testing.T) {
	if got := anyLang(""); got != "*" {
		t.Errorf("anyLang(\"\") = %q, want *", got)
	}
	if got := anyLang("en"); got != "en" {
		t.Errorf("anyLang(en) = %q, want en", got)
	}
}

func TestGradeAttempts(t *testing.T) {
	attempts := []orchestrator.Attempt{
		{Service: "detect+mymemory", Result: &translator.ServiceResult{ServiceName: "mymemory", TranslatedText: "Enregistrer"}},
		{Service: "detect+google", Err: errors.New("google: quota exceeded")},
		{Service: "detect+openrouter", Result: &translator.ServiceResult{ServiceName: "openrouter", TranslatedText: "Enregistrer les modifications"}},
		{Service: "detect+systran", Result: &translator.ServiceResult{ServiceName: "systran", TranslatedText: "  "}},
		{Service: "detect+ondevice"},
	}

	graded, acceptable := gradeAttempts("Save", validator.RoleButton, attempts)

	if len(graded) != len(attempts) {
		t.Fatalf("graded %d rows, want %d", len(graded), len(attempts))
	}
	want := []struct{ verdict, text string }{
		{"ok", "Enregistrer"},
		{"no answer", "google: quota exceeded"},
		{"", "Enregistrer les modifications"},
		{"no answer", ""},
		{"no answer", ""},
	}
	for i, w := range want {
		g := graded[i]
		if g.Service != attempts[i].Service || g.Text != w.text {
			t.Errorf("row %d = %+v, want service %q text %q", i, g, attempts[i].Service, w.text)
		}
		if w.verdict != "" && g.Verdict != w.verdict {
			t.Errorf("row %d verdict = %q, want %q", i, g.Verdict, w.verdict)
		}
	}
	if !strings.Contains(graded[2].Verdict, "button allows 16") {
		t.Errorf("expected a role length verdict, got %q", graded[2].Verdict)
	}

	if len(acceptable) != 1 {
		t.Fatalf("acceptable = %+v, want only the mymemory answer", acceptable)
	}
	if acceptable[0].ServiceName != "detect+mymemory" || acceptable[0].TranslatedText != "Enregistrer" {
		t.Errorf("unexpected candidate %+v", acceptable[0])
	}
}

func TestBuildServices_DetectsSourceLanguage(t *testing.T) {
	c := &config.Config{
		DefaultSource:   "en",
		DetectThreshold: 0.3,
		FuzzyThreshold:  0.9,
		Chain:           []string{"systran", "ondevice"},
		Locale: config.LocaleConfig{
			Supported: []string{"en", "fr", "de"},
		},
	}

	services, closers, err := buildServices(c, nil)
	if err != nil {
		t.Fatalf("buildServices() error = %v", err)
	}
	if len(services) != 3 || services[0].Name() != "glossary" {
		t.Fatalf("unexpected chain %v", names(services))
	}

	det, ok := services[1].(*translator.DetectingService)
	if !ok {
		t.Fatalf("expected a detecting wrapper, got %T", services[1])
	}
	if got := det.ResolveSource("Bonjour, ceci est un test en français.", c.SourceLanguage); got != "fr" {
		t.Errorf("ResolveSource(french) = %q, want fr", got)
	}
	if got := det.ResolveSource("Hallo, das ist ein Test auf Deutsch.", c.SourceLanguage); got != "de" {
		t.Errorf("ResolveSource(german) = %q, want de", got)
	}
	if got := det.ResolveSource("Bonjour tout le monde", "it"); got != "it" {
		t.Errorf("declared source should win, got %q", got)
	}

	if findOnDevice(closers) == nil {
		t.Error("expected the on-device link among the closers")
	}
	if findOnDevice(closers[:0]) != nil {
		t.Error("expected no on-device link without closers")
	}
}

func names(services []translator.TranslationService) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = s.Name()
	}
	return out
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchLocale(t *testing.T) {
	prefs := &locale.MemoryPreferences{}
	r := locale.NewResolver(locale.Policy{
		Mode:          locale.Hybrid,
		Supported:     []string{"en", "fr", "ar"},
		FallbackChain: []string{"en"},
	},
		locale.WithPreferences(prefs),
		locale.WithSystemLocale(func() string { return "en" }),
	)
	r.Recompute(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watchLocale(ctx, r, 5*time.Millisecond, out) }()

	// another process persists a new choice
	if err := prefs.SetUserLanguage(context.Background(), locale.TagChoice("ar")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "\tar\trtl") {
		if time.Now().After(deadline) {
			t.Fatalf("locale change not reported, output %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchLocale() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchLocale did not stop after cancel")
	}
	if !strings.Contains(out.String(), "\ten\tltr") {
		t.Errorf("expected the initial locale first, got %q", out.String())
	}
}
