package services

import (
	"context"
	"fmt"
	"strings"

	"DiaBot/models"
)

// LocalResponder answers without any network call. It keeps the chat usable
// in development when no model provider is configured.
type LocalResponder struct{}

func (LocalResponder) Respond(ctx context.Context, query string, turns []models.Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return "", ErrEmptyReply
	}
	prior := 0
	for _, t := range withQuery(query, turns) {
		if t.Role == models.RoleUser {
			prior++
		}
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "Summary for: %s. ", truncate(q, 60))
	fmt.Fprintf(b, "This is question %d in this session. ", prior)
	b.WriteString("Track your glucose readings, keep meals regular, and check with your care team before changing medication.")
	return b.String(), nil
}
