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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"

	"github.com/valpere/autotrad/internal/catalog"
	"github.com/valpere/autotrad/internal/config"
	"github.com/valpere/autotrad/internal/detector"
	"github.com/valpere/autotrad/internal/engine"
	"github.com/valpere/autotrad/internal/locale"
	"github.com/valpere/autotrad/internal/pending"
	"github.com/valpere/autotrad/internal/store"
	"github.com/valpere/autotrad/internal/telemetry"
	"github.com/valpere/autotrad/internal/translator"
)

// openStore opens the SQLite database, creating its directory if needed.
func openStore() (*store.Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// buildServices constructs the provider chain in the configured order. The
// glossary always comes first; machine translation links are wrapped so a
// missing source language is detected among the configured locales.
// Unknown names are skipped.
func buildServices(c *config.Config, db *store.Store) ([]translator.TranslationService, []io.Closer, error) {
	defaultSource := c.DefaultSource
	if defaultSource == "" {
		defaultSource = "en"
	}

	var det *detector.Detector
	detecting := func(svc translator.TranslationService) translator.TranslationService {
		if det == nil {
			det = detector.NewForLanguages(c.DetectionLanguages()...)
		}
		return translator.NewDetectingService(det, c.DetectThreshold, defaultSource, svc)
	}

	var glossaryOpts []translator.GlossaryOption
	if db != nil {
		glossaryOpts = append(glossaryOpts, translator.WithTermSource(db))
	}
	list := []translator.TranslationService{
		translator.NewGlossaryService(c.Terms(), c.DontTranslate, nil, glossaryOpts...),
	}
	var closers []io.Closer

	for _, name := range c.Chain {
		p := c.Provider(name)
		switch name {
		case "memory":
			if db == nil {
				logger.Warn("memory provider needs the database, skipping")
				continue
			}
			list = append(list, db.Service(c.FuzzyThreshold))
		case "ondevice", "ollama":
			policy, err := translator.ParseDownloadPolicy(c.DownloadPolicy)
			if err != nil {
				return nil, nil, err
			}
			unmetered := c.Unmetered
			probe := func(context.Context) bool { return unmetered }
			backend := translator.NewOllamaBackend(c.Provider("ollama").BaseURL, c.Provider("ollama").Model)
			svc := translator.NewOnDeviceService(backend, policy, probe)
			closers = append(closers, svc)
			list = append(list, detecting(svc))
		case "google":
			svc := translator.NewGoogleService(p)
			closers = append(closers, svc)
			list = append(list, detecting(svc))
		case "mymemory":
			list = append(list, detecting(translator.NewMyMemoryService(p.Email, defaultSource)))
		case "openrouter":
			list = append(list, detecting(translator.NewOpenRouterService(p.APIKey, p.BaseURL, p.Model, c.Terms())))
		case "systran":
			list = append(list, detecting(translator.NewSystranService(p.APIKey)))
		case "echo":
			list = append(list, translator.NewEchoService())
		default:
			logger.Warn("unknown provider, skipping", "provider", name)
		}
	}

	if len(list) == 1 {
		return nil, nil, fmt.Errorf("no valid providers configured")
	}
	return list, closers, nil
}

// app bundles everything a pipeline command needs.
type app struct {
	db       *store.Store
	pending  *pending.Store
	resolver *locale.Resolver
	engine   *engine.Engine
	closers  []io.Closer
	unfollow func()
}

func newResolver(db *store.Store) *locale.Resolver {
	var geo locale.GeoHinter = locale.SystemGeoHinter{System: locale.EnvSystemLocale}
	if cfg.Locale.Region != "" {
		geo = locale.RegionGeoHinter{Region: cfg.Locale.Region}
	}
	return locale.NewResolver(cfg.Policy(),
		locale.WithPreferences(db),
		locale.WithGeoHinter(geo),
		locale.WithLogger(logger),
	)
}

// newApp opens the database, builds the chain and an engine that follows
// the resolved locale.
func newApp(ctx context.Context) (*app, error) {
	db, err := openStore()
	if err != nil {
		return nil, err
	}

	services, closers, err := buildServices(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	tel := telemetry.New(logger)
	obs, err := telemetry.NewOTelObserver(otel.GetMeterProvider())
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	} else {
		tel.SetObserver(obs)
	}

	a := &app{
		db:       db,
		pending:  pending.New(cfg.PendingDir, logger),
		resolver: newResolver(db),
		closers:  closers,
	}

	// Reviewed catalog files override what the database remembers.
	source := catalog.Layered{db, catalog.NewFSSource(cfg.CatalogDir, catalog.DefaultPrefix)}

	a.engine = engine.New(services,
		engine.WithTimeout(cfg.Timeout),
		engine.WithPending(a.pending),
		engine.WithTelemetry(tel),
		engine.WithCatalog(source),
		engine.WithPersistence(db),
		engine.WithLogger(logger),
		engine.WithSourceLanguage(cfg.SourceLanguage),
		engine.WithWarmConcurrency(cfg.WarmConcurrency),
	)

	a.resolver.Recompute(ctx)
	a.unfollow = a.engine.Follow(ctx, a.resolver)
	return a, nil
}

// target returns tag, or the resolved locale when tag is empty.
func (a *app) target(tag string) string {
	if tag != "" {
		return tag
	}
	return a.resolver.Current()
}

// onDevice returns the on-device link of the chain, nil when none is
// configured.
func (a *app) onDevice() *translator.OnDeviceService {
	return findOnDevice(a.closers)
}

func findOnDevice(closers []io.Closer) *translator.OnDeviceService {
	for _, c := range closers {
		if od, ok := c.(*translator.OnDeviceService); ok {
			return od
		}
	}
	return nil
}

func (a *app) Close() error {
	if a.unfollow != nil {
		a.unfollow()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
