package translator

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNoSource is returned by providers that need a concrete source
	// language and were called without one.
	ErrNoSource = errors.New("source language unknown")

	// ErrDownloadDeferred is returned when a model is missing and the
	// download policy forbids fetching it on the current network.
	ErrDownloadDeferred = errors.New("model download deferred by network policy")
)

// ServiceConfig carries credentials and endpoints for remote providers.
type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
	Email       string        `mapstructure:"email" json:"email"`
}

// TranslateRequest asks a provider to translate Text into TargetLang.
// SourceLang may be empty when the source language is unknown.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type ServiceResult struct {
	ServiceName    string            `json:"service_name"`
	TranslatedText string            `json:"translated_text"`
	Metadata       map[string]string `json:"metadata"`
	Latency        time.Duration     `json:"latency"`
	Error          string            `json:"error,omitempty"`
}

// TranslationService is one link of the provider chain. A nil result or a
// blank TranslatedText means "no answer"; errors are treated the same way by
// the orchestrator and never reach the caller of the engine.
type TranslationService interface {
	Name() string
	Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error)
}

// Checker is implemented by providers that can report whether their backend
// is reachable and configured.
type Checker interface {
	IsAvailable(ctx context.Context) error
}

// Answered reports whether res carries a usable, non-blank translation.
func Answered(res *ServiceResult) bool {
	return res != nil && res.Error == "" && strings.TrimSpace(res.TranslatedText) != ""
}

// baseLang returns the primary language subtag of a BCP 47 tag in lower
// case ("pt-BR" -> "pt").
func baseLang(tag string) string {
	base, _, _ := strings.Cut(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"), "-")
	return strings.ToLower(base)
}
