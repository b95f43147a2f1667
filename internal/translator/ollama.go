package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/autotrad/internal/placeholder"
	"github.com/valpere/autotrad/internal/postprocess"
)

const DefaultOllamaModel = "gemma3:4b"

// OllamaBackend runs translations on a local Ollama server. One
// multilingual model serves every language pair, so presence checks and
// downloads concern that single model.
type OllamaBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaBackend(baseURL, model string) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (b *OllamaBackend) Name() string {
	return "ollama"
}

func (b *OllamaBackend) Model() string {
	return b.model
}

func (b *OllamaBackend) HasModel(ctx context.Context, src, tgt string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == b.model || m.Name == b.model+":latest" {
			return true, nil
		}
	}
	return false, nil
}

func (b *OllamaBackend) DownloadModel(ctx context.Context, src, tgt string) error {
	body, err := json.Marshal(map[string]any{"model": b.model, "stream": false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var pull struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pull); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if pull.Error != "" {
		return fmt.Errorf("pull %s: %s", b.model, pull.Error)
	}
	if pull.Status != "success" {
		return fmt.Errorf("pull %s: unexpected status %q", b.model, pull.Status)
	}
	return nil
}

func (b *OllamaBackend) Translate(ctx context.Context, src, tgt, text string) (string, error) {
	prompt := fmt.Sprintf(`Translate the following user interface text from %s to %s.
Only respond with the translation, nothing else. Keep it as short as the original.
%s

Text: %s

Translation:`, src, tgt, placeholder.InstructionHint(), text)

	body, err := json.Marshal(map[string]any{
		"model":  b.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var gen struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return postprocess.Clean(gen.Response, text), nil
}

func (b *OllamaBackend) IsAvailable(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not available: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}
