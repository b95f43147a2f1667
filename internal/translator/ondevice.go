package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DownloadPolicy controls when a missing model may be fetched.
type DownloadPolicy int

const (
	// DownloadAnyNetwork fetches models on any connection.
	DownloadAnyNetwork DownloadPolicy = iota
	// DownloadUnmeteredOnly defers downloads until the network probe
	// reports an unmetered connection.
	DownloadUnmeteredOnly
)

// ParseDownloadPolicy maps "any" / "unmetered" to a DownloadPolicy.
func ParseDownloadPolicy(s string) (DownloadPolicy, error) {
	switch s {
	case "", "unmetered":
		return DownloadUnmeteredOnly, nil
	case "any":
		return DownloadAnyNetwork, nil
	default:
		return DownloadUnmeteredOnly, fmt.Errorf("unknown download policy %q", s)
	}
}

// NetworkProbe reports whether the current connection is unmetered.
type NetworkProbe func(ctx context.Context) bool

// ModelBackend is a local translation runtime that needs a model per
// language pair before it can translate.
type ModelBackend interface {
	Name() string
	HasModel(ctx context.Context, src, tgt string) (bool, error)
	DownloadModel(ctx context.Context, src, tgt string) error
	Translate(ctx context.Context, src, tgt, text string) (string, error)
}

type modelPair struct {
	mu    sync.Mutex
	ready bool
}

// OnDeviceService translates with a local model runtime. Model presence is
// checked once per (source, target) pair; missing models are downloaded
// according to the policy before first use.
type OnDeviceService struct {
	backend ModelBackend
	policy  DownloadPolicy
	probe   NetworkProbe

	mu    sync.Mutex
	pairs map[string]*modelPair
}

func NewOnDeviceService(backend ModelBackend, policy DownloadPolicy, probe NetworkProbe) *OnDeviceService {
	return &OnDeviceService{
		backend: backend,
		policy:  policy,
		probe:   probe,
		pairs:   make(map[string]*modelPair),
	}
}

func (s *OnDeviceService) Name() string {
	return "ondevice:" + s.backend.Name()
}

func (s *OnDeviceService) pair(src, tgt string) *modelPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := src + "->" + tgt
	p, ok := s.pairs[key]
	if !ok {
		p = &modelPair{}
		s.pairs[key] = p
	}
	return p
}

// ensure makes the model for src->tgt available, downloading it when the
// policy allows. Concurrent callers for the same pair wait for one another.
func (s *OnDeviceService) ensure(ctx context.Context, src, tgt string) error {
	p := s.pair(src, tgt)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ready {
		return nil
	}

	has, err := s.backend.HasModel(ctx, src, tgt)
	if err != nil {
		return fmt.Errorf("checking model %s->%s: %w", src, tgt, err)
	}
	if !has {
		if s.policy == DownloadUnmeteredOnly && (s.probe == nil || !s.probe(ctx)) {
			return fmt.Errorf("%s->%s: %w", src, tgt, ErrDownloadDeferred)
		}
		if err := s.backend.DownloadModel(ctx, src, tgt); err != nil {
			return fmt.Errorf("downloading model %s->%s: %w", src, tgt, err)
		}
	}

	p.ready = true
	return nil
}

func (s *OnDeviceService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	src, tgt := baseLang(req.SourceLang), baseLang(req.TargetLang)
	if src == "" {
		// model selection needs a concrete source language
		return nil, ErrNoSource
	}
	if src == tgt {
		result.TranslatedText = req.Text
		return result, nil
	}

	if err := s.ensure(ctx, src, tgt); err != nil {
		result.Error = err.Error()
		return result, err
	}

	out, err := s.backend.Translate(ctx, src, tgt, req.Text)
	if err != nil {
		result.Error = fmt.Sprintf("translation failed: %v", err)
		return result, err
	}

	result.TranslatedText = out
	result.Metadata = map[string]string{"pair": src + "->" + tgt}
	return result, nil
}

// PreDownload ensures models for every target language from src, so the
// first real translation does not pay the download latency.
func (s *OnDeviceService) PreDownload(ctx context.Context, src string, targets ...string) error {
	var errs []error
	for _, tgt := range targets {
		if baseLang(src) == baseLang(tgt) {
			continue
		}
		if err := s.ensure(ctx, baseLang(src), baseLang(tgt)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close forgets prepared pairs and closes the backend if it holds
// resources.
func (s *OnDeviceService) Close() error {
	s.mu.Lock()
	s.pairs = make(map[string]*modelPair)
	s.mu.Unlock()

	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *OnDeviceService) IsAvailable(ctx context.Context) error {
	if c, ok := s.backend.(Checker); ok {
		return c.IsAvailable(ctx)
	}
	return nil
}
