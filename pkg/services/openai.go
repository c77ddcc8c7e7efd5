package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"DiaBot/models"
	"DiaBot/pkg/config"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIService talks to any OpenAI compatible chat completions endpoint.
type OpenAIService struct {
	client       *openai.Client
	model        string
	systemPrompt string
	hasKey       bool
}

func NewOpenAIService(cfg *config.Config) *OpenAIService {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if !blank(cfg.OpenAIBaseURL) {
		oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	return &OpenAIService{
		client:       openai.NewClientWithConfig(oc),
		model:        cfg.OpenAIModel,
		systemPrompt: cfg.SystemPrompt,
		hasKey:       !blank(cfg.OpenAIAPIKey) || !blank(cfg.OpenAIBaseURL),
	}
}

func (s *OpenAIService) Respond(ctx context.Context, query string, turns []models.Turn) (string, error) {
	if !s.hasKey {
		return "", errors.New("OPENAI_API_KEY is not set")
	}
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    s.messages(withQuery(query, turns)),
		Temperature: 0.6,
	})
	if err != nil {
		log.Warn().Err(err).Str("model", s.model).Msg("[openai] chat completion failed")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	for _, ch := range resp.Choices {
		if !blank(ch.Message.Content) {
			return strings.TrimSpace(ch.Message.Content), nil
		}
	}
	return "", ErrEmptyReply
}

func (s *OpenAIService) messages(turns []models.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if !blank(s.systemPrompt) {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt})
	}
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return out
}
