package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
	"github.com/pavelanni/qextractor/internal/registry/registrytest"
)

func TestCreateExamBlankName(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		backend := registrytest.New()
		c := registry.New(backend)

		_, err := c.CreateExam(context.Background(), name, "desc")
		var verr *registry.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("CreateExam(%q): expected ValidationError, got %v", name, err)
		}
		if verr.Field != "name" {
			t.Errorf("expected field 'name', got %q", verr.Field)
		}
		if backend.InsertCalls != 0 {
			t.Errorf("CreateExam(%q) issued %d remote calls", name, backend.InsertCalls)
		}
	}
}

func TestCreateExamTrims(t *testing.T) {
	backend := registrytest.New()
	c := registry.New(backend)

	exam, err := c.CreateExam(context.Background(), "  JEE Main ", "   ")
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if exam.Name != "JEE Main" {
		t.Errorf("expected trimmed name, got %q", exam.Name)
	}
	if exam.Description != nil {
		t.Errorf("expected nil description, got %q", *exam.Description)
	}

	exam, err = c.CreateExam(context.Background(), "GATE", " Graduate aptitude ")
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if exam.Description == nil || *exam.Description != "Graduate aptitude" {
		t.Errorf("unexpected description %v", exam.Description)
	}
}

func TestRemoteErrors(t *testing.T) {
	cause := errors.New("connection refused")
	backend := registrytest.New()
	backend.Err = cause
	c := registry.New(backend)
	ctx := context.Background()

	_, err := c.ListExams(ctx)
	var rerr *registry.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("ListExams: expected RemoteError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("RemoteError should unwrap to the cause")
	}

	_, err = c.CreateExam(ctx, "JEE", "")
	if !errors.As(err, &rerr) || rerr.Op != "create exam" {
		t.Errorf("CreateExam: expected RemoteError for create exam, got %v", err)
	}

	_, err = c.ListCourses(ctx, "e1")
	if !errors.As(err, &rerr) {
		t.Errorf("ListCourses: expected RemoteError, got %v", err)
	}
}

func TestCreateCourseValidation(t *testing.T) {
	backend := registrytest.New()
	c := registry.New(backend)
	ctx := context.Background()

	tests := []struct {
		name      string
		examID    string
		course    string
		wantField string
	}{
		{"no exam", "", "Physics", "exam_id"},
		{"blank name", "e1", "  ", "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateCourse(ctx, tt.examID, tt.course, "")
			var verr *registry.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
	if backend.InsertCalls != 0 {
		t.Errorf("expected no remote calls, got %d", backend.InsertCalls)
	}

	course, err := c.CreateCourse(ctx, "e1", "Physics", "")
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if course.ExamID != "e1" || course.Name != "Physics" {
		t.Errorf("unexpected course %+v", course)
	}
}

func TestListExamsOrdered(t *testing.T) {
	backend := registrytest.New(
		model.Exam{ID: "2", Name: "NEET"},
		model.Exam{ID: "1", Name: "GATE"},
		model.Exam{ID: "3", Name: "JEE"},
	)
	c := registry.New(backend)
	exams, err := c.ListExams(context.Background())
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	want := []string{"GATE", "JEE", "NEET"}
	for i, e := range exams {
		if e.Name != want[i] {
			t.Errorf("exams[%d] = %q, want %q", i, e.Name, want[i])
		}
	}
}
