package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/config"

	"github.com/rs/zerolog/log"
)

const (
	geminiBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	geminiFallbackModel = "gemini-2.0-flash"
)

type GeminiService struct {
	apiKey       string
	enabled      bool
	model        string
	systemPrompt string
	baseURL      string
	client       *http.Client
	retryDelay   time.Duration
}

func NewGeminiService(cfg *config.Config) *GeminiService {
	return &GeminiService{
		apiKey:       cfg.GeminiAPIKey,
		enabled:      cfg.IsGeminiEnabled,
		model:        cfg.GeminiModel,
		systemPrompt: cfg.SystemPrompt,
		baseURL:      geminiBaseURL,
		client:       http.DefaultClient,
		retryDelay:   2 * time.Second,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Respond tries the configured model then the fallback model, retrying each
// once on quota or availability errors.
func (s *GeminiService) Respond(ctx context.Context, query string, turns []models.Turn) (string, error) {
	if !s.enabled {
		log.Warn().Msg("[gemini] disabled via config (IS_GEMINI_ENABLED!=1)")
		return "", ErrGeminiDisabled
	}
	if blank(s.apiKey) {
		return "", errors.New("GEMINI_API_KEY is not set")
	}

	body, err := json.Marshal(s.buildRequest(withQuery(query, turns)))
	if err != nil {
		return "", err
	}

	candidates := []string{s.model}
	if s.model != geminiFallbackModel {
		candidates = append(candidates, geminiFallbackModel)
	}
	var failures []string
	for _, m := range candidates {
		if blank(m) {
			continue
		}
		text, err := s.generate(ctx, m, body)
		if err != nil && isRetriable(err) {
			sleepWithContext(ctx, s.retryDelay)
			text, err = s.generate(ctx, m, body)
		}
		if err == nil && !blank(text) {
			return strings.TrimSpace(text), nil
		}
		if err == nil {
			err = ErrEmptyReply
		}
		log.Warn().Err(err).Str("model", m).Msg("[gemini] model failed")
		failures = append(failures, fmt.Sprintf("%s -> %v", m, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all gemini models failed: %s", strings.Join(failures, "; "))
}

func (s *GeminiService) buildRequest(turns []models.Turn) geminiRequest {
	req := geminiRequest{
		Contents: make([]geminiContent, 0, len(turns)),
		GenerationConfig: map[string]any{
			"temperature":     0.6,
			"maxOutputTokens": 2048,
			"topK":            40,
			"topP":            0.9,
		},
	}
	if !blank(s.systemPrompt) {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: s.systemPrompt}}}
	}
	for _, t := range turns {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Content}}})
	}
	return req
}

func (s *GeminiService) generate(ctx context.Context, model string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, model, s.apiKey)
	log.Debug().Str("model", model).Msg("[gemini] generateContent")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, c := range parsed.Candidates {
		for _, p := range c.Content.Parts {
			if !blank(p.Text) {
				return p.Text, nil
			}
		}
	}
	return "", nil
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "resource_exhausted") || strings.Contains(e, "quota") {
		return true
	}
	return false
}
