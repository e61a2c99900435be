package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssistantService is the external generative-AI collaborator. Only the
// request/response contract lives here; the model, prompting, and language
// handling are the provider's problem.
type AssistantService interface {
	Answer(ctx context.Context, question string, language string) (string, error)
}

type httpAssistant struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewHTTPAssistant returns an AssistantService backed by a simple
// question-in/answer-out HTTP endpoint.
func NewHTTPAssistant(endpoint, apiKey string) AssistantService {
	return &httpAssistant{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *httpAssistant) Answer(ctx context.Context, question string, language string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"question": question,
		"language": language,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("assistant returned %d: %s", resp.StatusCode, truncate(respBody, 256))
	}

	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}
