// Package registry is the request/response boundary for exam and course
// records. It holds no state of its own.
package registry

import (
	"context"
	"strings"

	"github.com/pavelanni/qextractor/internal/model"
)

// NewExam is a validated exam creation request.
type NewExam struct {
	Name        string
	Description *string
}

// NewCourse is a validated course creation request.
type NewCourse struct {
	ExamID      string
	Name        string
	Description *string
}

// Backend is a store that keeps exam and course records. Lists are ordered by name.
type Backend interface {
	ListExams(ctx context.Context) ([]model.Exam, error)
	InsertExam(ctx context.Context, e NewExam) (model.Exam, error)
	ListCourses(ctx context.Context, examID string) ([]model.Course, error)
	InsertCourse(ctx context.Context, c NewCourse) (model.Course, error)
}

// Client exposes registry operations over a Backend.
type Client struct {
	backend Backend
}

// New creates a registry client.
func New(b Backend) *Client {
	return &Client{backend: b}
}

// ValidateExam trims the input and checks that the name is not blank.
// A blank description becomes nil.
func ValidateExam(name, description string) (NewExam, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewExam{}, &ValidationError{Field: "name", Message: "exam name is required", Code: "ExamNameRequired"}
	}
	return NewExam{Name: name, Description: optional(description)}, nil
}

// ValidateCourse trims the input and checks the exam ID and name.
func ValidateCourse(examID, name, description string) (NewCourse, error) {
	if strings.TrimSpace(examID) == "" {
		return NewCourse{}, &ValidationError{Field: "exam_id", Message: "exam must be selected", Code: "ExamRequired"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NewCourse{}, &ValidationError{Field: "name", Message: "course name is required", Code: "CourseNameRequired"}
	}
	return NewCourse{ExamID: examID, Name: name, Description: optional(description)}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ListExams returns all exams ordered by name.
func (c *Client) ListExams(ctx context.Context) ([]model.Exam, error) {
	exams, err := c.backend.ListExams(ctx)
	if err != nil {
		return nil, &RemoteError{Op: "list exams", Err: err}
	}
	return exams, nil
}

// CreateExam validates the input and stores a new exam.
func (c *Client) CreateExam(ctx context.Context, name, description string) (model.Exam, error) {
	ne, err := ValidateExam(name, description)
	if err != nil {
		return model.Exam{}, err
	}
	return c.InsertExam(ctx, ne)
}

// InsertExam stores an already validated exam.
func (c *Client) InsertExam(ctx context.Context, ne NewExam) (model.Exam, error) {
	exam, err := c.backend.InsertExam(ctx, ne)
	if err != nil {
		return model.Exam{}, &RemoteError{Op: "create exam", Err: err}
	}
	return exam, nil
}

// ListCourses returns the courses of an exam ordered by name.
func (c *Client) ListCourses(ctx context.Context, examID string) ([]model.Course, error) {
	courses, err := c.backend.ListCourses(ctx, examID)
	if err != nil {
		return nil, &RemoteError{Op: "list courses", Err: err}
	}
	return courses, nil
}

// CreateCourse validates the input and stores a new course.
func (c *Client) CreateCourse(ctx context.Context, examID, name, description string) (model.Course, error) {
	nc, err := ValidateCourse(examID, name, description)
	if err != nil {
		return model.Course{}, err
	}
	return c.InsertCourse(ctx, nc)
}

// InsertCourse stores an already validated course.
func (c *Client) InsertCourse(ctx context.Context, nc NewCourse) (model.Course, error) {
	course, err := c.backend.InsertCourse(ctx, nc)
	if err != nil {
		return model.Course{}, &RemoteError{Op: "create course", Err: err}
	}
	return course, nil
}
