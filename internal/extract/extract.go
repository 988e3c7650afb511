// Package extract turns an extraction request into stored questions: it reads
// the uploaded PDFs, asks the model for questions and applies the configured
// scoring rules.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/qextractor/internal/llm"
	"github.com/pavelanni/qextractor/internal/llm/prompts"
	"github.com/pavelanni/qextractor/internal/model"
)

// DefaultConcurrency is the number of files processed at once.
const DefaultConcurrency = 2

// Files resolves blob keys to local paths.
type Files interface {
	Path(key string) (string, error)
	Delete(key string) error
}

// QuestionModel finds questions in paper text.
type QuestionModel interface {
	ExtractQuestions(ctx context.Context, data prompts.ExtractData) ([]llm.ExtractedQuestion, error)
}

// QuestionSink persists extracted questions.
type QuestionSink interface {
	InsertQuestions(ctx context.Context, questions []model.Question) error
}

// Ledger remembers which files were already extracted for a course.
type Ledger interface {
	ExtractedFileCount(ctx context.Context, hash, courseID string) (int, bool, error)
	RecordExtractedFile(ctx context.Context, hash, courseID, name string, count int) error
}

// Config wires an Extractor. Ledger is optional.
type Config struct {
	Files       Files
	Text        TextExtractor
	Model       QuestionModel
	Sink        QuestionSink
	Ledger      Ledger
	Concurrency int
	Force       bool // re-extract files the ledger already knows
	KeepFiles   bool // keep uploads after a successful extraction
}

// Extractor implements the extraction step of the wizard.
type Extractor struct {
	cfg Config
}

func New(cfg Config) *Extractor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Text == nil {
		cfg.Text = PDFToText{}
	}
	return &Extractor{cfg: cfg}
}

// Extract processes every file of the request. Files are handled
// independently; the first failure cancels the rest and is returned together
// with the results gathered so far. Uploads are removed only when the whole
// batch succeeds, so a failed batch can be retried with the same files.
func (e *Extractor) Extract(ctx context.Context, req model.ExtractionRequest) (model.ExtractionResult, error) {
	if err := checkRequest(req); err != nil {
		return model.ExtractionResult{}, err
	}
	types := typeLabels(req.QuestionTypeSettings)

	results := make([]model.FileResult, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, f := range req.Files {
		results[i].Name = f.Name
		g.Go(func() error {
			r, err := e.extractFile(gctx, req, types, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		for _, f := range req.Files {
			e.cleanup(f)
		}
	}

	res := model.ExtractionResult{Files: results}
	for _, r := range results {
		res.Total += r.Extracted
	}
	return res, err
}

func checkRequest(req model.ExtractionRequest) error {
	if len(req.Files) == 0 {
		return errors.New("no files to extract")
	}
	if strings.TrimSpace(req.CourseID) == "" {
		return errors.New("course is required")
	}
	if len(req.QuestionTypeSettings) == 0 {
		return errors.New("no question types configured")
	}
	for label, cfg := range req.QuestionTypeSettings {
		if !cfg.Configured() {
			return fmt.Errorf("question type %s is not fully configured", label)
		}
	}
	return nil
}

func (e *Extractor) extractFile(ctx context.Context, req model.ExtractionRequest, types []string, f model.FileHandle) (model.FileResult, error) {
	res := model.FileResult{Name: f.Name}

	path, err := e.cfg.Files.Path(f.Key)
	if err != nil {
		return res, fmt.Errorf("resolve upload: %w", err)
	}
	hash, err := fileHash(path)
	if err != nil {
		return res, fmt.Errorf("hash file: %w", err)
	}

	if e.cfg.Ledger != nil && !e.cfg.Force {
		count, ok, err := e.cfg.Ledger.ExtractedFileCount(ctx, hash, req.CourseID)
		if err != nil {
			return res, fmt.Errorf("check extracted files: %w", err)
		}
		if ok {
			slog.Info("skipping already extracted file", "file", f.Name, "questions", count)
			res.Skipped = true
			return res, nil
		}
	}

	text, err := e.cfg.Text.ExtractText(ctx, path)
	if err != nil {
		return res, err
	}

	raw, err := e.cfg.Model.ExtractQuestions(ctx, prompts.ExtractData{
		Types: types,
		Slot:  strings.TrimSpace(req.Slot),
		Part:  strings.TrimSpace(req.Part),
		Year:  req.Year,
		Text:  text,
	})
	if err != nil {
		return res, err
	}

	questions, dropped := Apply(req, raw)
	if len(questions) > 0 {
		if err := e.cfg.Sink.InsertQuestions(ctx, questions); err != nil {
			return res, fmt.Errorf("store questions: %w", err)
		}
	}
	res.Extracted = len(questions)
	res.Dropped = dropped

	if e.cfg.Ledger != nil {
		if err := e.cfg.Ledger.RecordExtractedFile(ctx, hash, req.CourseID, f.Name, len(questions)); err != nil {
			slog.Warn("failed to record extracted file", "file", f.Name, "error", err)
		}
	}
	slog.Info("extracted questions", "file", f.Name, "questions", res.Extracted, "dropped", dropped)
	return res, nil
}

func (e *Extractor) cleanup(f model.FileHandle) {
	if e.cfg.KeepFiles {
		return
	}
	if err := e.cfg.Files.Delete(f.Key); err != nil {
		slog.Warn("failed to remove upload", "file", f.Name, "error", err)
	}
}

// Apply turns model output into questions carrying the request's course,
// slot, part, year and the marks of their type. Questions whose type is not
// configured are dropped. Type labels match case-insensitively.
func Apply(req model.ExtractionRequest, raw []llm.ExtractedQuestion) ([]model.Question, int) {
	labels := make(map[string]string, len(req.QuestionTypeSettings))
	for label := range req.QuestionTypeSettings {
		labels[strings.ToLower(label)] = label
	}

	var (
		out     []model.Question
		dropped int
	)
	for _, r := range raw {
		label, ok := labels[strings.ToLower(strings.TrimSpace(r.QuestionType))]
		if !ok || strings.TrimSpace(r.QuestionStatement) == "" {
			dropped++
			continue
		}
		cfg := req.QuestionTypeSettings[label]
		q := model.Question{
			QuestionType:      label,
			QuestionStatement: r.QuestionStatement,
			Answer:            r.Answer,
			Solution:          r.Solution,
			CourseID:          req.CourseID,
			Slot:              optional(req.Slot),
			Part:              optional(req.Part),
			CorrectMarks:      copyFloat(cfg.CorrectMarks),
			IncorrectMarks:    copyFloat(cfg.IncorrectMarks),
			SkippedMarks:      copyFloat(cfg.SkippedMarks),
			PartialMarks:      copyFloat(cfg.PartialMarks),
			TimeMinutes:       copyFloat(cfg.TimeMinutes),
		}
		if len(r.Options) > 0 {
			q.Options = append([]string(nil), r.Options...)
		}
		if req.Year != 0 {
			y := req.Year
			q.Year = &y
		}
		out = append(out, q)
	}
	return out, dropped
}

func typeLabels(s model.QuestionTypeSettings) []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
