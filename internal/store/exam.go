package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ListExams returns all exams ordered by name.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM exams ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	exams := []model.Exam{}
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// GetExam returns an exam by ID, or nil if it does not exist.
func (s *Store) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, description, created_at, updated_at FROM exams WHERE id = ?`), id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertExam stores a new exam and returns it with its assigned fields.
func (s *Store) InsertExam(ctx context.Context, ne registry.NewExam) (model.Exam, error) {
	ts := now()
	e := model.Exam{
		ID:          uuid.NewString(),
		Name:        ne.Name,
		Description: ne.Description,
		CreatedAt:   &ts,
		UpdatedAt:   &ts,
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO exams (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		e.ID, e.Name, e.Description, ts, ts,
	)
	if err != nil {
		return model.Exam{}, err
	}
	return e, nil
}

// ListCourses returns the courses of an exam ordered by name.
func (s *Store) ListCourses(ctx context.Context, examID string) ([]model.Course, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, exam_id, name, description, created_at, updated_at
		 FROM courses WHERE exam_id = ? ORDER BY name, id`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.ExamID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetCourse returns a course by ID, or nil if it does not exist.
func (s *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, exam_id, name, description, created_at, updated_at FROM courses WHERE id = ?`), id,
	).Scan(&c.ID, &c.ExamID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCourse stores a new course.
func (s *Store) InsertCourse(ctx context.Context, nc registry.NewCourse) (model.Course, error) {
	ts := now()
	c := model.Course{
		ID:          uuid.NewString(),
		ExamID:      nc.ExamID,
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   &ts,
		UpdatedAt:   &ts,
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO courses (id, exam_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.ExamID, c.Name, c.Description, ts, ts,
	)
	if err != nil {
		return model.Course{}, err
	}
	return c, nil
}
