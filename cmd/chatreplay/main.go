// Command chatreplay feeds a file of queries through the conversation
// reconciler for one user and writes the resulting transcripts.
//
//	go run ./cmd/chatreplay --email demo@example.com --queries queries.json --out results
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/chat"
	"DiaBot/pkg/config"
	"DiaBot/pkg/database"
	"DiaBot/pkg/logger"
	"DiaBot/pkg/services"
	"DiaBot/pkg/session"
	"DiaBot/pkg/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type ResultItem struct {
	Query          string `json:"query"`
	Response       string `json:"response"`
	Error          string `json:"error,omitempty"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
	Timestamp      string `json:"timestamp"`
}

type RunSummary struct {
	RunID        string            `json:"run_id"`
	StartedAt    string            `json:"started_at"`
	EndedAt      string            `json:"ended_at"`
	Env          string            `json:"env"`
	Provider     string            `json:"provider"`
	CommitMode   string            `json:"commit_mode"`
	Email        string            `json:"email,omitempty"`
	TotalQueries int               `json:"total_queries"`
	Failed       int               `json:"failed"`
	Results      []ResultItem      `json:"results"`
	Transcripts  []chat.Transcript `json:"transcripts,omitempty"`
}

// parseQueries accepts either ["q1", "q2", ...] or [{"q": "..."}, ...].
func parseQueries(data []byte) ([]string, error) {
	var arrAny []any
	if err := json.Unmarshal(data, &arrAny); err != nil {
		return nil, fmt.Errorf("invalid queries file: %w", err)
	}
	out := make([]string, 0, len(arrAny))
	for _, v := range arrAny {
		var q string
		switch t := v.(type) {
		case string:
			q = t
		case map[string]any:
			q, _ = t["q"].(string)
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("queries file is empty or malformed")
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []ResultItem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"query", "response", "error", "conversation_id", "duration_ms", "timestamp"})
	for _, it := range items {
		_ = w.Write([]string{it.Query, it.Response, it.Error, strconv.FormatUint(uint64(it.ConversationID), 10), strconv.FormatInt(it.DurationMs, 10), it.Timestamp})
	}
	w.Flush()
	return w.Error()
}

// ensureUser returns the active user for email, creating it with a random
// password when missing.
func ensureUser(ctx context.Context, users *store.GormUserStore, email string) (*models.User, error) {
	u, err := users.FindByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	hash, err := models.HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return users.Create(ctx, email, hash, "Replay User")
}

// replay sends every query through r in one session and collects the outcome.
// Failed queries are recorded and the run continues.
func replay(ctx context.Context, r *chat.Reconciler, id *chat.Identity, queries []string, pause time.Duration) []ResultItem {
	st := &session.State{ID: uuid.NewString()}
	results := make([]ResultItem, 0, len(queries))
	for i, q := range queries {
		start := time.Now()
		res, err := r.HandleQuery(ctx, id, st, q)
		item := ResultItem{
			Query:          q,
			Response:       res.Reply,
			ConversationID: res.ConversationID,
			DurationMs:     time.Since(start).Milliseconds(),
			Timestamp:      start.UTC().Format(time.RFC3339),
		}
		if err != nil {
			item.Error = err.Error()
			log.Warn().Err(err).Int("index", i).Msg("[replay] query failed")
		}
		results = append(results, item)
		if pause > 0 && i < len(queries)-1 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(pause):
			}
		}
	}
	return results
}

var (
	queriesPath string
	email       string
	outDir      string
	pause       time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chatreplay",
	Short: "Replay a queries file through the conversation reconciler",
	Long: `chatreplay sends every query of a JSON file through the reconciler in one
session and writes a JSON run summary plus a CSV of per-query results.

Examples:
  chatreplay --queries queries.json
  chatreplay --queries queries.json --email demo@example.com --out results --pause 2s`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&queriesPath, "queries", "queries.json", "JSON file with the queries to replay")
	rootCmd.Flags().StringVar(&email, "email", "", "owner of the replayed conversation; empty runs anonymously")
	rootCmd.Flags().StringVar(&outDir, "out", "results", "directory for the JSON and CSV reports")
	rootCmd.Flags().DurationVar(&pause, "pause", 0, "delay between queries")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	data, err := os.ReadFile(queriesPath)
	if err != nil {
		return fmt.Errorf("cannot read queries: %w", err)
	}
	queries, err := parseQueries(data)
	if err != nil {
		return err
	}

	responder, err := services.NewResponder(cfg)
	if err != nil {
		return fmt.Errorf("init responder: %w", err)
	}
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed migrate: %w", err)
	}

	ctx := cmd.Context()
	convs := store.NewConversationStore(db)
	r := chat.NewReconciler(convs, responder, chat.Options{
		NewChatPolicy:    chat.NewChatPolicy(cfg.NewChatPolicy),
		CommitMode:       chat.CommitMode(cfg.CommitMode),
		ResponderTimeout: cfg.ResponderTimeout(),
		ProviderName:     cfg.ResponderProvider,
	})

	var id *chat.Identity
	if strings.TrimSpace(email) != "" {
		u, err := ensureUser(ctx, store.NewUserStore(db), email)
		if err != nil {
			return fmt.Errorf("cannot resolve replay user: %w", err)
		}
		id = &chat.Identity{UserID: u.ID, Email: u.Email}
	}

	startedAt := time.Now().UTC()
	results := replay(ctx, r, id, queries, pause)

	summary := RunSummary{
		RunID:        uuid.NewString(),
		StartedAt:    startedAt.Format(time.RFC3339),
		EndedAt:      time.Now().UTC().Format(time.RFC3339),
		Env:          cfg.AppEnv,
		Provider:     cfg.ResponderProvider,
		CommitMode:   cfg.CommitMode,
		TotalQueries: len(queries),
		Results:      results,
	}
	for _, it := range results {
		if it.Error != "" {
			summary.Failed++
		}
	}
	if id != nil {
		summary.Email = id.Email
		if summary.Transcripts, err = r.GetTranscript(ctx, id); err != nil {
			log.Error().Err(err).Msg("[replay] cannot load transcripts")
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	stamp := startedAt.Format("20060102-150405")
	jsonPath := filepath.Join(outDir, fmt.Sprintf("replay-%s.json", stamp))
	csvPath := filepath.Join(outDir, fmt.Sprintf("replay-%s.csv", stamp))
	if err := writeJSON(jsonPath, summary); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	if err := writeCSV(csvPath, results); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Replay finished. Outputs:")
	fmt.Fprintln(cmd.OutOrStdout(), " -", jsonPath)
	fmt.Fprintln(cmd.OutOrStdout(), " -", csvPath)
	return nil
}
