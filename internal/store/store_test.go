package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func insertTestCourse(t *testing.T, s *Store) (model.Exam, model.Course) {
	t.Helper()
	ctx := context.Background()
	exam, err := s.InsertExam(ctx, registry.NewExam{Name: "JEE Main"})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	course, err := s.InsertCourse(ctx, registry.NewCourse{ExamID: exam.ID, Name: "Physics"})
	if err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}
	return exam, course
}

func TestStoreImplementsBackend(t *testing.T) {
	var _ registry.Backend = (*Store)(nil)
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver Driver
		in     string
		want   string
	}{
		{DriverSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		s := &Store{driver: tt.driver}
		if got := s.rebind(tt.in); got != tt.want {
			t.Errorf("rebind(%q) on %s = %q, want %q", tt.in, tt.driver, got, tt.want)
		}
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("oracle"), ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestExamCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exams, err := s.ListExams(ctx)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 0 {
		t.Fatalf("expected 0 exams, got %d", len(exams))
	}

	gate, err := s.InsertExam(ctx, registry.NewExam{Name: "GATE", Description: strPtr("Graduate aptitude")})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	if gate.ID == "" || gate.CreatedAt == nil {
		t.Errorf("expected assigned id and timestamp, got %+v", gate)
	}
	if _, err := s.InsertExam(ctx, registry.NewExam{Name: "CAT"}); err != nil {
		t.Fatalf("InsertExam: %v", err)
	}

	exams, err = s.ListExams(ctx)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 2 || exams[0].Name != "CAT" || exams[1].Name != "GATE" {
		t.Fatalf("expected [CAT GATE], got %+v", exams)
	}
	if exams[0].Description != nil {
		t.Errorf("expected nil description, got %q", *exams[0].Description)
	}
	if exams[1].Description == nil || *exams[1].Description != "Graduate aptitude" {
		t.Errorf("description not preserved: %+v", exams[1].Description)
	}

	got, err := s.GetExam(ctx, gate.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if got == nil || got.Name != "GATE" {
		t.Errorf("GetExam = %+v", got)
	}
	missing, err := s.GetExam(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetExam(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestCourseCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, physics := insertTestCourse(t, s)

	other, err := s.InsertExam(ctx, registry.NewExam{Name: "GATE"})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	if _, err := s.InsertCourse(ctx, registry.NewCourse{ExamID: other.ID, Name: "CSE"}); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}
	if _, err := s.InsertCourse(ctx, registry.NewCourse{ExamID: exam.ID, Name: "Chemistry"}); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}

	courses, err := s.ListCourses(ctx, exam.ID)
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(courses) != 2 || courses[0].Name != "Chemistry" || courses[1].Name != "Physics" {
		t.Fatalf("expected [Chemistry Physics], got %+v", courses)
	}
	for _, c := range courses {
		if c.ExamID != exam.ID {
			t.Errorf("course %s belongs to %s, want %s", c.Name, c.ExamID, exam.ID)
		}
	}

	got, err := s.GetCourse(ctx, physics.ID)
	if err != nil || got == nil || got.Name != "Physics" {
		t.Errorf("GetCourse = %+v, %v", got, err)
	}

	// Foreign key on exam_id.
	if _, err := s.InsertCourse(ctx, registry.NewCourse{ExamID: "missing", Name: "X"}); err == nil {
		t.Error("expected foreign key error for unknown exam")
	}
}

func TestQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, course := insertTestCourse(t, s)

	count, err := s.QuestionCount(ctx, course.ID)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	year := 2024
	marks := 4.0
	zero := 0.0
	qs := []model.Question{
		{
			QuestionType:      "MCQ",
			QuestionStatement: "What is g?",
			Options:           []string{"9.8", "10", "8.9", "1"},
			Answer:            strPtr("9.8"),
			CourseID:          course.ID,
			Year:              &year,
			Slot:              strPtr("Morning"),
			Part:              strPtr("A"),
			CorrectMarks:      &marks,
			SkippedMarks:      &zero,
		},
		{
			QuestionType:      "Subjective",
			QuestionStatement: "Derive Newton's second law.",
			CourseID:          course.ID,
		},
	}
	if err := s.InsertQuestions(ctx, qs); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}
	if qs[0].ID == "" || qs[1].ID == "" {
		t.Error("expected ids to be assigned in place")
	}

	list, err := s.ListQuestions(ctx, course.ID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(list))
	}
	first := list[0]
	if first.QuestionStatement != "What is g?" {
		t.Errorf("expected insertion order, got %q first", first.QuestionStatement)
	}
	if len(first.Options) != 4 || first.Options[0] != "9.8" {
		t.Errorf("options = %v", first.Options)
	}
	if first.Year == nil || *first.Year != 2024 {
		t.Errorf("year = %v", first.Year)
	}
	if first.CorrectMarks == nil || *first.CorrectMarks != 4 {
		t.Errorf("correct marks = %v", first.CorrectMarks)
	}
	if first.SkippedMarks == nil || *first.SkippedMarks != 0 {
		t.Errorf("zero skipped marks must survive, got %v", first.SkippedMarks)
	}
	if first.IncorrectMarks != nil {
		t.Errorf("expected nil incorrect marks, got %v", *first.IncorrectMarks)
	}
	second := list[1]
	if second.Options != nil || second.Year != nil || second.Answer != nil {
		t.Errorf("expected empty optional fields, got %+v", second)
	}

	count, _ = s.QuestionCount(ctx, course.ID)
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestExtractedFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.ExtractedFileCount(ctx, "abc123", "c1")
	if err != nil {
		t.Fatalf("ExtractedFileCount: %v", err)
	}
	if ok {
		t.Fatal("expected unknown file")
	}

	if err := s.RecordExtractedFile(ctx, "abc123", "c1", "paper.pdf", 12); err != nil {
		t.Fatalf("RecordExtractedFile: %v", err)
	}
	count, ok, err := s.ExtractedFileCount(ctx, "abc123", "c1")
	if err != nil || !ok || count != 12 {
		t.Errorf("ExtractedFileCount = %d, %v, %v; want 12, true, nil", count, ok, err)
	}

	// Same hash for another course is a different record.
	if _, ok, _ := s.ExtractedFileCount(ctx, "abc123", "c2"); ok {
		t.Error("hash should be scoped to course")
	}

	// Upsert.
	if err := s.RecordExtractedFile(ctx, "abc123", "c1", "paper.pdf", 15); err != nil {
		t.Fatalf("RecordExtractedFile update: %v", err)
	}
	count, _, _ = s.ExtractedFileCount(ctx, "abc123", "c1")
	if count != 15 {
		t.Errorf("expected 15 after update, got %d", count)
	}
}

func TestWizardSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWizardSession(ctx, []byte(`{"state":{"year":2024}}`))
	if err != nil {
		t.Fatalf("CreateWizardSession: %v", err)
	}
	if len(id) != 64 {
		t.Errorf("expected 64-char id, got %d", len(id))
	}

	data, err := s.GetWizardSession(ctx, id)
	if err != nil {
		t.Fatalf("GetWizardSession: %v", err)
	}
	if string(data) != `{"state":{"year":2024}}` {
		t.Errorf("data = %s", data)
	}

	if err := s.SaveWizardSession(ctx, id, []byte(`{}`)); err != nil {
		t.Fatalf("SaveWizardSession: %v", err)
	}
	data, _ = s.GetWizardSession(ctx, id)
	if string(data) != `{}` {
		t.Errorf("data after save = %s", data)
	}

	if err := s.DeleteWizardSession(ctx, id); err != nil {
		t.Fatalf("DeleteWizardSession: %v", err)
	}
	data, err = s.GetWizardSession(ctx, id)
	if err != nil || data != nil {
		t.Errorf("GetWizardSession after delete = %s, %v", data, err)
	}
}

func TestWizardSessionExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWizardSession(ctx, []byte(`{}`))
	if err != nil {
		t.Fatalf("CreateWizardSession: %v", err)
	}
	past := now().Add(-time.Hour)
	if _, err := s.db.ExecContext(ctx, `UPDATE wizard_sessions SET expires_at = ? WHERE id = ?`, past, id); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	data, err := s.GetWizardSession(ctx, id)
	if err != nil {
		t.Fatalf("GetWizardSession: %v", err)
	}
	if data != nil {
		t.Error("expected expired session to be gone")
	}

	if err := s.CleanupExpiredSessions(ctx); err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
}

func TestExportCourse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, course := insertTestCourse(t, s)

	if err := s.InsertQuestions(ctx, []model.Question{
		{QuestionType: "NAT", QuestionStatement: "2+2?", CourseID: course.ID, Answer: strPtr("4")},
	}); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	exp, err := s.ExportCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("ExportCourse: %v", err)
	}
	if exp.Exam.ID != exam.ID || exp.Course.ID != course.ID {
		t.Errorf("export header = %+v / %+v", exp.Exam, exp.Course)
	}
	if exp.Count != 1 || len(exp.Questions) != 1 {
		t.Errorf("expected 1 question, got count=%d len=%d", exp.Count, len(exp.Questions))
	}

	_, err = s.ExportCourse(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
