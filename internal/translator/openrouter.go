package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/valpere/autotrad/internal/placeholder"
	"github.com/valpere/autotrad/internal/postprocess"
)

const DefaultOpenRouterModel = "google/gemini-2.5-flash"

// OpenRouterService asks a hosted LLM for the translation. Glossary terms,
// when provided, are embedded in the system prompt.
type OpenRouterService struct {
	apiKey   string
	baseURL  string
	model    string
	glossary map[string]string
	client   *http.Client
}

func NewOpenRouterService(apiKey, baseURL, model string, glossary map[string]string) *OpenRouterService {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if model == "" {
		model = DefaultOpenRouterModel
	}
	return &OpenRouterService{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		glossary: glossary,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *OpenRouterService) Name() string {
	return "openrouter"
}

func (s *OpenRouterService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.apiKey == "" {
		result.Error = "OpenRouter API key required"
		return result, fmt.Errorf("OpenRouter API key required")
	}

	sourceLang := req.SourceLang
	if sourceLang == "" {
		sourceLang = "the detected language"
	}

	openrouterReq := map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemPrompt(sourceLang, req.TargetLang, s.glossary)},
			{"role": "user", "content": req.Text},
		},
		"max_tokens":  256,
		"temperature": 0.2,
	}

	jsonData, err := json.Marshal(openrouterReq)
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("X-Title", "autotrad")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("API returned status %d", resp.StatusCode)
		return result, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var openrouterResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&openrouterResp); err != nil {
		result.Error = fmt.Sprintf("failed to decode response: %v", err)
		return result, err
	}

	if len(openrouterResp.Choices) == 0 {
		result.Error = "empty response from API"
		return result, fmt.Errorf("empty response from API")
	}

	result.TranslatedText = postprocess.Clean(openrouterResp.Choices[0].Message.Content, req.Text)
	result.Metadata = map[string]string{
		"model":             s.model,
		"prompt_tokens":     fmt.Sprintf("%d", openrouterResp.Usage.PromptTokens),
		"completion_tokens": fmt.Sprintf("%d", openrouterResp.Usage.CompletionTokens),
	}

	return result, nil
}

func (s *OpenRouterService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("OpenRouter API key not configured")
	}
	return nil
}

// buildSystemPrompt constructs the system prompt for a single UI string,
// optionally listing glossary terms in a stable order.
func buildSystemPrompt(sourceLang, targetLang string, glossary map[string]string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You translate user interface strings from %s to %s.\n", sourceLang, targetLang))
	sb.WriteString("Only respond with the translation, nothing else. No explanations, no quotes. ")
	sb.WriteString("Keep the translation about as short as the original; it must fit the same button or label. ")
	sb.WriteString(placeholder.InstructionHint())

	if len(glossary) > 0 {
		terms := make([]string, 0, len(glossary))
		for src := range glossary {
			terms = append(terms, src)
		}
		sort.Strings(terms)

		sb.WriteString("\n\nTERMINOLOGY (use these exact translations):\n")
		for _, src := range terms {
			sb.WriteString(fmt.Sprintf("  %s → %s\n", src, glossary[src]))
		}
	}

	return sb.String()
}
