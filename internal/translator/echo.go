package translator

import (
	"context"
	"time"
)

// EchoService returns the text unchanged. Useful for bootstrapping an app
// before real providers are configured, and in tests.
type EchoService struct{}

func NewEchoService() *EchoService {
	return &EchoService{}
}

func (s *EchoService) Name() string {
	return "echo"
}

func (s *EchoService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	start := time.Now()
	return &ServiceResult{
		ServiceName:    s.Name(),
		TranslatedText: req.Text,
		Latency:        time.Since(start),
	}, nil
}
