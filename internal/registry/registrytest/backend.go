// Package registrytest provides an in-memory registry backend for tests.
package registrytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
)

// Backend is an in-memory registry.Backend. Setting Err makes every call fail.
type Backend struct {
	mu      sync.Mutex
	exams   []model.Exam
	courses []model.Course
	nextID  int

	Err           error
	ListCalls     int
	InsertCalls   int
	CourseListErr error
}

// New returns a backend seeded with the given exams.
func New(exams ...model.Exam) *Backend {
	return &Backend{exams: append([]model.Exam(nil), exams...)}
}

// AddCourse seeds a course.
func (b *Backend) AddCourse(c model.Course) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.courses = append(b.courses, c)
}

// Exams returns a copy of the stored exams.
func (b *Backend) Exams() []model.Exam {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Exam(nil), b.exams...)
}

func (b *Backend) ListExams(_ context.Context) ([]model.Exam, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ListCalls++
	if b.Err != nil {
		return nil, b.Err
	}
	out := append([]model.Exam(nil), b.exams...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) InsertExam(_ context.Context, e registry.NewExam) (model.Exam, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InsertCalls++
	if b.Err != nil {
		return model.Exam{}, b.Err
	}
	b.nextID++
	exam := model.Exam{ID: fmt.Sprintf("exam-%d", b.nextID), Name: e.Name, Description: e.Description}
	b.exams = append(b.exams, exam)
	return exam, nil
}

func (b *Backend) ListCourses(_ context.Context, examID string) ([]model.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ListCalls++
	if b.Err != nil {
		return nil, b.Err
	}
	if b.CourseListErr != nil {
		return nil, b.CourseListErr
	}
	var out []model.Course
	for _, c := range b.courses {
		if c.ExamID == examID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) InsertCourse(_ context.Context, c registry.NewCourse) (model.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InsertCalls++
	if b.Err != nil {
		return model.Course{}, b.Err
	}
	b.nextID++
	course := model.Course{ID: fmt.Sprintf("course-%d", b.nextID), ExamID: c.ExamID, Name: c.Name, Description: c.Description}
	b.courses = append(b.courses, course)
	return course, nil
}
