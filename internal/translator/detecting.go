package translator

import (
	"context"
	"time"
)

// LanguageDetector reports the most likely language of text as an ISO 639-1
// code together with a confidence in [0, 1].
type LanguageDetector interface {
	DetectConfidence(text string) (lang string, confidence float64, ok bool)
}

// DetectingService fills in a missing source language before delegating.
// Detections below the threshold count as "unknown" and the configured
// default source is used instead. When source and target share a language
// the text is returned unchanged without calling the delegate.
type DetectingService struct {
	detector      LanguageDetector
	threshold     float64
	defaultSource string
	delegate      TranslationService
}

func NewDetectingService(detector LanguageDetector, threshold float64, defaultSource string, delegate TranslationService) *DetectingService {
	return &DetectingService{
		detector:      detector,
		threshold:     threshold,
		defaultSource: defaultSource,
		delegate:      delegate,
	}
}

func (s *DetectingService) Name() string {
	return "detect+" + s.delegate.Name()
}

// ResolveSource returns the source language that Translate would use.
func (s *DetectingService) ResolveSource(text, declared string) string {
	if declared != "" {
		return declared
	}
	if s.detector != nil {
		if lang, conf, ok := s.detector.DetectConfidence(text); ok && conf >= s.threshold {
			return lang
		}
	}
	return s.defaultSource
}

func (s *DetectingService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	start := time.Now()
	src := s.ResolveSource(req.Text, req.SourceLang)

	if src != "" && baseLang(src) == baseLang(req.TargetLang) {
		return &ServiceResult{
			ServiceName:    s.Name(),
			TranslatedText: req.Text,
			Metadata:       map[string]string{"source_lang": src, "identity": "true"},
			Latency:        time.Since(start),
		}, nil
	}

	req.SourceLang = src
	res, err := s.delegate.Translate(ctx, req)
	if res != nil {
		if res.Metadata == nil {
			res.Metadata = map[string]string{}
		}
		res.Metadata["source_lang"] = src
	}
	return res, err
}

func (s *DetectingService) IsAvailable(ctx context.Context) error {
	if c, ok := s.delegate.(Checker); ok {
		return c.IsAvailable(ctx)
	}
	return nil
}
