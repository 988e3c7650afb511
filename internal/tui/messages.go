package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
	"github.com/pavelanni/qextractor/internal/wizard"
)

// Results of the asynchronous calls. Each is applied to the controller in
// Update so the controller is only touched from the event loop.

type examsLoadedMsg struct {
	exams []model.Exam
	err   error
}

type examCreatedMsg struct {
	exam model.Exam
	err  error
}

type coursesLoadedMsg struct {
	examID  string
	courses []model.Course
	err     error
}

type courseCreatedMsg struct {
	course model.Course
	err    error
}

type extractionFinishedMsg struct {
	result model.ExtractionResult
	err    error
}

func loadExams(ctx context.Context, reg *registry.Client) tea.Cmd {
	return func() tea.Msg {
		exams, err := reg.ListExams(ctx)
		return examsLoadedMsg{exams: exams, err: err}
	}
}

func createExam(ctx context.Context, reg *registry.Client, ne registry.NewExam) tea.Cmd {
	return func() tea.Msg {
		exam, err := reg.InsertExam(ctx, ne)
		return examCreatedMsg{exam: exam, err: err}
	}
}

func loadCourses(ctx context.Context, reg *registry.Client, examID string) tea.Cmd {
	return func() tea.Msg {
		courses, err := reg.ListCourses(ctx, examID)
		return coursesLoadedMsg{examID: examID, courses: courses, err: err}
	}
}

func createCourse(ctx context.Context, reg *registry.Client, nc registry.NewCourse) tea.Cmd {
	return func() tea.Msg {
		course, err := reg.InsertCourse(ctx, nc)
		return courseCreatedMsg{course: course, err: err}
	}
}

func runExtraction(ctx context.Context, ex wizard.Extractor, req model.ExtractionRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := ex.Extract(ctx, req)
		return extractionFinishedMsg{result: res, err: err}
	}
}
