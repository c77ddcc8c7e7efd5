package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/config"
)

var (
	ErrEmptyReply     = errors.New("responder returned no usable output")
	ErrGeminiDisabled = errors.New("gemini is disabled via config")
)

// Responder produces an assistant reply for query given the prior turns.
// turns normally already ends with the user turn for query.
type Responder interface {
	Respond(ctx context.Context, query string, turns []models.Turn) (string, error)
}

// NewResponder builds the responder selected by cfg.ResponderProvider.
func NewResponder(cfg *config.Config) (Responder, error) {
	switch cfg.ResponderProvider {
	case config.ProviderGemini:
		return NewGeminiService(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIService(cfg), nil
	case config.ProviderLocal:
		return LocalResponder{}, nil
	}
	return nil, fmt.Errorf("unknown responder provider %q", cfg.ResponderProvider)
}

// withQuery returns turns with a trailing user turn for query when it is not
// already there.
func withQuery(query string, turns []models.Turn) []models.Turn {
	if n := len(turns); n > 0 && turns[n-1].Role == models.RoleUser && turns[n-1].Content == query {
		return turns
	}
	out := make([]models.Turn, 0, len(turns)+1)
	out = append(out, turns...)
	return append(out, models.UserTurn(query))
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
