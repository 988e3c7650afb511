package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/qextractor/internal/model"
)

// ErrNotFound is returned when an exported course does not exist.
var ErrNotFound = errors.New("not found")

// ExportCourse builds an export of all questions stored for a course.
func (s *Store) ExportCourse(ctx context.Context, courseID string) (model.QuestionExport, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return model.QuestionExport{}, fmt.Errorf("get course %s: %w", courseID, err)
	}
	if course == nil {
		return model.QuestionExport{}, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	exam, err := s.GetExam(ctx, course.ExamID)
	if err != nil {
		return model.QuestionExport{}, fmt.Errorf("get exam %s: %w", course.ExamID, err)
	}
	if exam == nil {
		return model.QuestionExport{}, fmt.Errorf("exam %s: %w", course.ExamID, ErrNotFound)
	}

	questions, err := s.ListQuestions(ctx, courseID)
	if err != nil {
		return model.QuestionExport{}, fmt.Errorf("list questions: %w", err)
	}

	return model.QuestionExport{
		Exam:       *exam,
		Course:     *course,
		ExportedAt: time.Now().UTC(),
		Count:      len(questions),
		Questions:  questions,
	}, nil
}
