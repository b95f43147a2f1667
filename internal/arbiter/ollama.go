package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/autotrad/internal/translator"
	"github.com/valpere/autotrad/internal/validator"
)

// OllamaJudge asks a local Ollama model to pick a candidate.
type OllamaJudge struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func NewOllamaJudge(baseURL, model string) *OllamaJudge {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = translator.DefaultOllamaModel
	}
	return &OllamaJudge{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (j *OllamaJudge) Pick(ctx context.Context, source, targetLang string, role validator.Role, candidates []translator.ServiceResult) (*Verdict, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	if len(candidates) == 1 {
		return &Verdict{
			Service:   candidates[0].ServiceName,
			Text:      candidates[0].TranslatedText,
			Reasoning: "only candidate",
		}, nil
	}

	reqBody := ollamaRequest{
		Model:  j.model,
		Prompt: buildJudgePrompt(source, targetLang, role, candidates),
		Stream: false,
		Format: "json",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return parseVerdict(ollamaResp.Response, candidates)
}

func buildJudgePrompt(source, targetLang string, role validator.Role, candidates []translator.ServiceResult) string {
	var sb strings.Builder
	sb.WriteString("You review translations of user interface text.\n")
	sb.WriteString(fmt.Sprintf("Original text: %q\n", source))
	if limit, ok := role.MaxChars(); ok {
		sb.WriteString(fmt.Sprintf("It is shown as a %s and must fit in %d characters.\n", role, limit))
	}
	sb.WriteString(fmt.Sprintf("\nCandidate translations to %s:\n", targetLang))

	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("  %d. %q\n", i+1, c.TranslatedText))
	}

	sb.WriteString(`
Choose the candidate that is most natural and idiomatic for this interface.
Respond ONLY in JSON:
{
  "choice": <candidate number>,
  "reasoning": "..."
}
`)

	return sb.String()
}

func parseVerdict(response string, candidates []translator.ServiceResult) (*Verdict, error) {
	response = strings.TrimSpace(response)

	var parsed struct {
		Choice    int    `json:"choice"`
		Reasoning string `json:"reasoning"`
	}

	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse judge response as JSON: %w", err)
	}

	if parsed.Choice < 1 || parsed.Choice > len(candidates) {
		return nil, fmt.Errorf("judge chose %d of %d candidates", parsed.Choice, len(candidates))
	}

	picked := candidates[parsed.Choice-1]
	return &Verdict{
		Service:   picked.ServiceName,
		Text:      picked.TranslatedText,
		Reasoning: parsed.Reasoning,
	}, nil
}
