package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/valpere/autotrad/internal/placeholder"
)

// MyMemoryService calls the free MyMemory API. Without a declared source
// language the defaultSource is used, since the API requires a pair.
type MyMemoryService struct {
	email         string
	defaultSource string
	baseURL       string
	client        *http.Client
}

func NewMyMemoryService(email, defaultSource string) *MyMemoryService {
	if defaultSource == "" {
		defaultSource = "en"
	}
	return &MyMemoryService{
		email:         email,
		defaultSource: defaultSource,
		baseURL:       "https://api.mymemory.translated.net",
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *MyMemoryService) Name() string {
	return "mymemory"
}

func (s *MyMemoryService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	sourceLang := req.SourceLang
	if sourceLang == "" {
		sourceLang = s.defaultSource
	}

	protected, markers := placeholder.Protect(req.Text)

	q := url.Values{}
	q.Set("q", protected)
	q.Set("langpair", fmt.Sprintf("%s|%s", sourceLang, req.TargetLang))
	if s.email != "" {
		q.Set("de", s.email)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/get?"+q.Encode(), nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result, err
	}
	defer resp.Body.Close()

	var mymemResp struct {
		ResponseData struct {
			TranslatedText string  `json:"translatedText"`
			Match          float64 `json:"match"`
		} `json:"responseData"`
		ResponseStatus  int    `json:"responseStatus"`
		ResponseDetails string `json:"responseDetails"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&mymemResp); err != nil {
		result.Error = fmt.Sprintf("failed to decode response: %v", err)
		return result, err
	}

	if mymemResp.ResponseStatus != http.StatusOK {
		result.Error = fmt.Sprintf("API error: %s (%d)", mymemResp.ResponseDetails, mymemResp.ResponseStatus)
		return result, fmt.Errorf("API error: %s", mymemResp.ResponseDetails)
	}

	result.TranslatedText = placeholder.Restore(mymemResp.ResponseData.TranslatedText, markers)
	result.Metadata = map[string]string{"match": fmt.Sprintf("%.2f", mymemResp.ResponseData.Match)}

	return result, nil
}

func (s *MyMemoryService) IsAvailable(ctx context.Context) error {
	return nil
}
