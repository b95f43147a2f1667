package translator

import (
	"context"
	"fmt"
	"sync"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/autotrad/internal/placeholder"
)

// GoogleService calls Google Cloud Translation (v2). The client is created
// on first use and reused until Close.
type GoogleService struct {
	cfg ServiceConfig

	mu     sync.Mutex
	client *translate.Client
}

func NewGoogleService(cfg ServiceConfig) *GoogleService {
	return &GoogleService{cfg: cfg}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) getClient(ctx context.Context) (*translate.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	opts := []option.ClientOption{}
	if s.cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.cfg.Credentials))
	}
	if s.cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(s.cfg.APIKey))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *GoogleService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	targetLangTag, err := language.Parse(req.TargetLang)
	if err != nil {
		result.Error = fmt.Sprintf("invalid target language: %v", err)
		return result, fmt.Errorf("invalid target language: %w", err)
	}

	client, err := s.getClient(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create client: %v", err)
		return result, fmt.Errorf("failed to create client: %w", err)
	}

	protected, markers := placeholder.Protect(req.Text)

	opts := &translate.Options{Format: translate.Text}
	if req.SourceLang != "" {
		if sourceLangTag, err := language.Parse(req.SourceLang); err == nil {
			opts.Source = sourceLangTag
		}
	}

	translations, err := client.Translate(ctx, []string{protected}, targetLangTag, opts)
	if err != nil {
		result.Error = fmt.Sprintf("translation failed: %v", err)
		return result, fmt.Errorf("translation failed: %w", err)
	}

	if len(translations) == 0 {
		result.Error = "no translation returned"
		return result, fmt.Errorf("no translation returned")
	}

	result.TranslatedText = placeholder.Restore(translations[0].Text, markers)
	if translations[0].Source != language.Und {
		result.Metadata = map[string]string{"detected_source": translations[0].Source.String()}
	}

	return result, nil
}

func (s *GoogleService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *GoogleService) IsAvailable(ctx context.Context) error {
	_, err := s.getClient(ctx)
	return err
}
