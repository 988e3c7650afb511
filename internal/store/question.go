package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/qextractor/internal/model"
)

// InsertQuestions stores a batch of questions in one transaction. IDs and
// timestamps are assigned in place.
func (s *Store) InsertQuestions(ctx context.Context, questions []model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO questions (id, course_id, question_type, question_statement, options_json,
		answer, solution, year, slot, part, correct_marks, incorrect_marks, skipped_marks, partial_marks,
		time_minutes, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	ts := now()
	for i := range questions {
		q := &questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.CreatedAt = &ts
		q.UpdatedAt = &ts
		options := q.Options
		if options == nil {
			options = []string{}
		}
		optionsJSON, err := json.Marshal(options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			q.ID, q.CourseID, q.QuestionType, q.QuestionStatement, string(optionsJSON),
			q.Answer, q.Solution, q.Year, q.Slot, q.Part,
			q.CorrectMarks, q.IncorrectMarks, q.SkippedMarks, q.PartialMarks, q.TimeMinutes,
			i, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListQuestions returns the questions of a course in insertion order.
func (s *Store) ListQuestions(ctx context.Context, courseID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, course_id, question_type, question_statement, options_json, answer, solution,
		 year, slot, part, correct_marks, incorrect_marks, skipped_marks, partial_marks, time_minutes,
		 created_at, updated_at
		 FROM questions WHERE course_id = ? ORDER BY created_at, position`), courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		var (
			q           model.Question
			optionsJSON string
			year        sql.NullInt64
		)
		if err := rows.Scan(&q.ID, &q.CourseID, &q.QuestionType, &q.QuestionStatement, &optionsJSON,
			&q.Answer, &q.Solution, &year, &q.Slot, &q.Part,
			&q.CorrectMarks, &q.IncorrectMarks, &q.SkippedMarks, &q.PartialMarks, &q.TimeMinutes,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		if year.Valid {
			y := int(year.Int64)
			q.Year = &y
		}
		if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("parse options of question %s: %w", q.ID, err)
		}
		if len(q.Options) == 0 {
			q.Options = nil
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions stored for a course.
func (s *Store) QuestionCount(ctx context.Context, courseID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM questions WHERE course_id = ?`), courseID).Scan(&count)
	return count, err
}

// ExtractedFileCount returns how many questions a file with this content hash
// produced for the course. ok is false when the file was never extracted.
func (s *Store) ExtractedFileCount(ctx context.Context, hash, courseID string) (count int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, s.rebind(
		`SELECT question_count FROM extracted_files WHERE hash = ? AND course_id = ?`), hash, courseID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// RecordExtractedFile remembers that a file was extracted for a course.
func (s *Store) RecordExtractedFile(ctx context.Context, hash, courseID, name string, count int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO extracted_files (hash, course_id, name, question_count, extracted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (hash, course_id) DO UPDATE SET name = excluded.name, question_count = excluded.question_count, extracted_at = excluded.extracted_at`),
		hash, courseID, name, count, now(),
	)
	return err
}
