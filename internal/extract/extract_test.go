package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pavelanni/qextractor/internal/llm"
	"github.com/pavelanni/qextractor/internal/llm/prompts"
	"github.com/pavelanni/qextractor/internal/model"
)

type fakeFiles struct {
	dir     string
	remove  bool
	mu      sync.Mutex
	deleted []string
}

func (f *fakeFiles) Path(key string) (string, error) { return filepath.Join(f.dir, key), nil }

func (f *fakeFiles) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.remove {
		return os.Remove(filepath.Join(f.dir, key))
	}
	return nil
}

type fakeText struct{}

func (fakeText) ExtractText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

type fakeModel struct {
	mu     sync.Mutex
	calls  []prompts.ExtractData
	out    []llm.ExtractedQuestion
	err    error
	failOn string
}

func (m *fakeModel) ExtractQuestions(_ context.Context, data prompts.ExtractData) ([]llm.ExtractedQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, data)
	if m.failOn != "" && strings.Contains(data.Text, m.failOn) {
		return nil, errors.New("model unavailable")
	}
	return m.out, m.err
}

type fakeSink struct {
	mu        sync.Mutex
	questions []model.Question
	err       error
}

func (s *fakeSink) InsertQuestions(_ context.Context, qs []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.questions = append(s.questions, qs...)
	return nil
}

type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]int
}

func (l *fakeLedger) ExtractedFileCount(_ context.Context, hash, courseID string) (int, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.seen[hash+"/"+courseID]
	return n, ok, nil
}

func (l *fakeLedger) RecordExtractedFile(_ context.Context, hash, courseID, _ string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[hash+"/"+courseID] = count
	return nil
}

func str(s string) *string { return &s }

func writeUpload(t *testing.T, dir, key, content string) model.FileHandle {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, key), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return model.FileHandle{Key: key, Name: key, Size: int64(len(content))}
}

func testRequest(files ...model.FileHandle) model.ExtractionRequest {
	return model.ExtractionRequest{
		Files:    files,
		CourseID: "c1",
		Slot:     " Morning ",
		Part:     "A",
		Year:     2024,
		QuestionTypeSettings: model.QuestionTypeSettings{
			"MCQ": model.NewQuestionTypeConfig(4, -1, 0, 0, 2),
			"NAT": model.NewQuestionTypeConfig(3, 0, 0, 0, 3),
		},
	}
}

var sampleQuestions = []llm.ExtractedQuestion{
	{QuestionType: "MCQ", QuestionStatement: "What is g?", Options: []string{"9.8", "10"}, Answer: str("9.8")},
	{QuestionType: "nat", QuestionStatement: "2+2?"},
	{QuestionType: "Subjective", QuestionStatement: "Explain inertia."},
	{QuestionType: "MCQ", QuestionStatement: "  "},
}

func TestApply(t *testing.T) {
	qs, dropped := Apply(testRequest(), sampleQuestions)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}

	mcq := qs[0]
	if mcq.QuestionType != "MCQ" || mcq.CourseID != "c1" {
		t.Errorf("unexpected question %+v", mcq)
	}
	if *mcq.CorrectMarks != 4 || *mcq.IncorrectMarks != -1 || *mcq.TimeMinutes != 2 {
		t.Errorf("MCQ marks not applied: %+v", mcq)
	}
	if mcq.Slot == nil || *mcq.Slot != "Morning" {
		t.Errorf("slot = %v", mcq.Slot)
	}
	if mcq.Year == nil || *mcq.Year != 2024 {
		t.Errorf("year = %v", mcq.Year)
	}

	nat := qs[1]
	if nat.QuestionType != "NAT" {
		t.Errorf("type label should be canonical, got %q", nat.QuestionType)
	}
	if *nat.CorrectMarks != 3 {
		t.Errorf("NAT marks not applied: %v", *nat.CorrectMarks)
	}
	if nat.Options != nil {
		t.Errorf("expected nil options, got %v", nat.Options)
	}
}

func TestApplyCopiesMarks(t *testing.T) {
	req := testRequest()
	qs, _ := Apply(req, sampleQuestions[:1])
	*qs[0].CorrectMarks = 100
	if *req.QuestionTypeSettings["MCQ"].CorrectMarks != 4 {
		t.Error("question marks share storage with settings")
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{dir: dir}
	m := &fakeModel{out: sampleQuestions}
	sink := &fakeSink{}
	ledger := &fakeLedger{}
	ex := New(Config{Files: files, Text: fakeText{}, Model: m, Sink: sink, Ledger: ledger})

	a := writeUpload(t, dir, "a.pdf", "paper A")
	b := writeUpload(t, dir, "b.pdf", "paper B")

	res, err := ex.Extract(context.Background(), testRequest(a, b))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Total != 4 || len(sink.questions) != 4 {
		t.Errorf("total = %d, stored = %d, want 4", res.Total, len(sink.questions))
	}
	if len(res.Files) != 2 || res.Files[0].Name != "a.pdf" || res.Files[1].Dropped != 2 {
		t.Errorf("unexpected file results %+v", res.Files)
	}
	if len(m.calls) != 2 {
		t.Fatalf("model called %d times", len(m.calls))
	}
	call := m.calls[0]
	if strings.Join(call.Types, ",") != "MCQ,NAT" || call.Slot != "Morning" || call.Year != 2024 {
		t.Errorf("unexpected prompt data %+v", call)
	}
	if len(files.deleted) != 2 {
		t.Errorf("expected uploads to be removed, got %v", files.deleted)
	}

	// Same content again is skipped.
	c := writeUpload(t, dir, "c.pdf", "paper A")
	res, err = ex.Extract(context.Background(), testRequest(c))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Files[0].Skipped || res.Total != 0 {
		t.Errorf("expected skipped duplicate, got %+v", res)
	}
	if len(m.calls) != 2 {
		t.Error("model should not be called for a known file")
	}
}

func TestExtractForce(t *testing.T) {
	dir := t.TempDir()
	m := &fakeModel{out: sampleQuestions[:1]}
	ledger := &fakeLedger{}
	ex := New(Config{Files: &fakeFiles{dir: dir}, Text: fakeText{}, Model: m, Sink: &fakeSink{}, Ledger: ledger, Force: true, KeepFiles: true})

	a := writeUpload(t, dir, "a.pdf", "paper A")
	for range 2 {
		if _, err := ex.Extract(context.Background(), testRequest(a)); err != nil {
			t.Fatalf("Extract: %v", err)
		}
	}
	if len(m.calls) != 2 {
		t.Errorf("forced extraction should call the model twice, got %d", len(m.calls))
	}
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeUpload(t, dir, "a.pdf", "paper A")

	t.Run("model failure", func(t *testing.T) {
		boom := errors.New("rate limited")
		ex := New(Config{Files: &fakeFiles{dir: dir}, Text: fakeText{}, Model: &fakeModel{err: boom}, Sink: &fakeSink{}})
		_, err := ex.Extract(context.Background(), testRequest(a))
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped model error, got %v", err)
		}
	})

	t.Run("sink failure", func(t *testing.T) {
		boom := errors.New("db down")
		files := &fakeFiles{dir: dir}
		ex := New(Config{Files: files, Text: fakeText{}, Model: &fakeModel{out: sampleQuestions}, Sink: &fakeSink{err: boom}})
		_, err := ex.Extract(context.Background(), testRequest(a))
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped sink error, got %v", err)
		}
		if len(files.deleted) != 0 {
			t.Error("uploads must be kept when storing fails")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		ex := New(Config{Files: &fakeFiles{dir: dir}, Text: fakeText{}, Model: &fakeModel{}, Sink: &fakeSink{}})
		_, err := ex.Extract(context.Background(), testRequest(model.FileHandle{Key: "nope.pdf", Name: "nope.pdf"}))
		if err == nil {
			t.Error("expected error for missing upload")
		}
	})
}

func TestExtractRetryAfterPartialFailure(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{dir: dir, remove: true}
	m := &fakeModel{out: sampleQuestions[:1], failOn: "paper B"}
	sink := &fakeSink{}
	ex := New(Config{Files: files, Text: fakeText{}, Model: m, Sink: sink, Ledger: &fakeLedger{}, Concurrency: 1})

	a := writeUpload(t, dir, "a.pdf", "paper A")
	b := writeUpload(t, dir, "b.pdf", "paper B")
	req := testRequest(a, b)

	if _, err := ex.Extract(context.Background(), req); err == nil {
		t.Fatal("expected failure for b.pdf")
	}
	if len(files.deleted) != 0 {
		t.Fatalf("uploads removed after a failed batch: %v", files.deleted)
	}
	for _, f := range req.Files {
		if _, err := os.Stat(filepath.Join(dir, f.Key)); err != nil {
			t.Errorf("upload %s missing after failed batch: %v", f.Name, err)
		}
	}

	m.failOn = ""
	res, err := ex.Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Files[0].Skipped {
		t.Errorf("a.pdf was already extracted and should be skipped: %+v", res.Files[0])
	}
	if res.Files[1].Extracted != 1 {
		t.Errorf("b.pdf extracted %d questions, want 1", res.Files[1].Extracted)
	}
	if len(sink.questions) != 2 {
		t.Errorf("stored %d questions, want 2", len(sink.questions))
	}
	if len(files.deleted) != 2 {
		t.Errorf("expected both uploads removed after success, got %v", files.deleted)
	}
}

func TestCheckRequest(t *testing.T) {
	file := model.FileHandle{Key: "a.pdf", Name: "a.pdf"}
	tests := []struct {
		name   string
		mutate func(*model.ExtractionRequest)
	}{
		{"no files", func(r *model.ExtractionRequest) { r.Files = nil }},
		{"no course", func(r *model.ExtractionRequest) { r.CourseID = " " }},
		{"no types", func(r *model.ExtractionRequest) { r.QuestionTypeSettings = nil }},
		{"incomplete type", func(r *model.ExtractionRequest) {
			r.QuestionTypeSettings["MSQ"] = model.QuestionTypeConfig{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(file)
			tt.mutate(&req)
			if err := checkRequest(req); err == nil {
				t.Error("expected error")
			}
		})
	}
	if err := checkRequest(testRequest(file)); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestPDFToTextMissingBinary(t *testing.T) {
	_, err := PDFToText{Bin: "definitely-not-a-real-pdftotext"}.ExtractText(context.Background(), "x.pdf")
	if err == nil {
		t.Error("expected error for missing binary")
	}
}
