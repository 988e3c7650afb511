package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/qextractor/internal/extract"
	"github.com/pavelanni/qextractor/internal/handler"
	"github.com/pavelanni/qextractor/internal/llm"
	"github.com/pavelanni/qextractor/internal/llm/prompts"
	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/presets"
	"github.com/pavelanni/qextractor/internal/registry"
	"github.com/pavelanni/qextractor/internal/remote"
	"github.com/pavelanni/qextractor/internal/storage"
	"github.com/pavelanni/qextractor/internal/store"
)

const (
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
	backendREST     = "rest"
)

func addBackendFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", backendSQLite, "Record store (sqlite, postgres, rest)")
	f.String("db", "qextractor.db", "SQLite database path (also keeps sessions for the rest backend)")
	f.String("postgres-url", "", "Postgres connection URL")
	f.String("rest-url", "", "Hosted data API base URL")
	f.String("rest-key", "", "Hosted data API key")
	f.Duration("rest-timeout", 30*time.Second, "Hosted data API request timeout")
}

func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("uploads", "uploads", "Directory for uploaded PDF files")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Extraction prompt variant (standard, strict)")
	f.String("pdftotext", "pdftotext", "Path to the pdftotext binary")
	f.Bool("pdf-layout", false, "Keep the physical layout when reading PDFs")
	f.Int("concurrency", extract.DefaultConcurrency, "Files extracted in parallel")
	f.Bool("force", false, "Re-extract files that were already extracted for the course")
	f.Bool("keep-files", false, "Keep uploaded files after a successful extraction")
	f.String("presets", "", "YAML file with question-type presets (default built-in)")
}

// exporter builds a course export. Only the SQL backends provide one.
type exporter interface {
	ExportCourse(ctx context.Context, courseID string) (model.QuestionExport, error)
}

// app holds everything the commands share.
type app struct {
	store     *store.Store
	registry  *registry.Client
	questions handler.QuestionLister
	exporter  exporter
	blobs     *storage.FSStore
	extractor *extract.Extractor
	presets   []presets.Preset
}

// openApp opens the configured stores. The extractor, presets and upload
// directory are built only when withExtractor is set.
func openApp(ctx context.Context, v *viper.Viper, withExtractor bool) (*app, error) {
	backend := strings.ToLower(v.GetString("backend"))

	var (
		st  *store.Store
		err error
	)
	switch backend {
	case backendSQLite, backendREST:
		st, err = store.Open(ctx, store.DriverSQLite, v.GetString("db"))
	case backendPostgres:
		st, err = store.Open(ctx, store.DriverPostgres, v.GetString("postgres-url"))
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{store: st}
	var sink extract.QuestionSink
	if backend == backendREST {
		if v.GetString("rest-url") == "" {
			st.Close()
			return nil, fmt.Errorf("--rest-url is required for the rest backend")
		}
		rc := remote.New(remote.Config{
			URL:     v.GetString("rest-url"),
			APIKey:  v.GetString("rest-key"),
			Timeout: v.GetDuration("rest-timeout"),
		})
		a.registry = registry.New(rc)
		a.questions = rc
		sink = rc
	} else {
		a.registry = registry.New(st)
		a.questions = st
		a.exporter = st
		sink = st
	}

	if !withExtractor {
		return a, nil
	}

	a.presets, err = presets.Load(v.GetString("presets"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load presets: %w", err)
	}

	a.blobs, err = storage.NewFSStore(v.GetString("uploads"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open upload directory: %w", err)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	llmClient.SetVariant(prompts.PromptVariant(variant))

	a.extractor = extract.New(extract.Config{
		Files: a.blobs,
		Text: extract.PDFToText{
			Bin:    v.GetString("pdftotext"),
			Layout: v.GetBool("pdf-layout"),
		},
		Model:       llmClient,
		Sink:        sink,
		Ledger:      st,
		Concurrency: v.GetInt("concurrency"),
		Force:       v.GetBool("force"),
		KeepFiles:   v.GetBool("keep-files"),
	})
	slog.Debug("extractor ready",
		"backend", backend,
		"model", v.GetString("llm-model"),
		"variant", variant,
		"concurrency", v.GetInt("concurrency"),
	)
	return a, nil
}

// Close releases the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// sweepSessions deletes expired wizard sessions until ctx is done.
func (a *app) sweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.store.CleanupExpiredSessions(ctx); err != nil {
				slog.Warn("session cleanup failed", "error", err)
			}
		}
	}
}
