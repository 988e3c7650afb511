// Package remote is a registry backend for a hosted PostgREST-style data API.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
)

const restPrefix = "/rest/v1/"

// Config holds the hosted store connection parameters.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the hosted store.
type Client struct {
	http *resty.Client
}

// New creates a client. The API key is sent both as apikey and bearer token.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+restPrefix).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", cfg.APIKey).
		SetAuthToken(cfg.APIKey)
	return &Client{http: c}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: status %d: %s", e.Status, e.Body)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &StatusError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return nil
}

type examRow struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type courseRow struct {
	ExamID      string  `json:"exam_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// questionRow is the insert shape of a question. Nullable columns are sent
// as explicit nulls so every row of a bulk insert has the same keys.
type questionRow struct {
	QuestionType      string   `json:"question_type"`
	QuestionStatement string   `json:"question_statement"`
	Options           []string `json:"options"`
	Answer            *string  `json:"answer"`
	Solution          *string  `json:"solution"`
	CourseID          string   `json:"course_id"`
	Year              *int     `json:"year"`
	Slot              *string  `json:"slot"`
	Part              *string  `json:"part"`
	CorrectMarks      *float64 `json:"correct_marks"`
	IncorrectMarks    *float64 `json:"incorrect_marks"`
	SkippedMarks      *float64 `json:"skipped_marks"`
	PartialMarks      *float64 `json:"partial_marks"`
	TimeMinutes       *float64 `json:"time_minutes"`
}

func newQuestionRow(q model.Question) questionRow {
	return questionRow{
		QuestionType:      q.QuestionType,
		QuestionStatement: q.QuestionStatement,
		Options:           q.Options,
		Answer:            q.Answer,
		Solution:          q.Solution,
		CourseID:          q.CourseID,
		Year:              q.Year,
		Slot:              q.Slot,
		Part:              q.Part,
		CorrectMarks:      q.CorrectMarks,
		IncorrectMarks:    q.IncorrectMarks,
		SkippedMarks:      q.SkippedMarks,
		PartialMarks:      q.PartialMarks,
		TimeMinutes:       q.TimeMinutes,
	}
}

// ListExams returns all exams ordered by name.
func (c *Client) ListExams(ctx context.Context) ([]model.Exam, error) {
	var exams []model.Exam
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"select": "*", "order": "name"}).
		SetResult(&exams).
		Get("exams")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return exams, nil
}

// InsertExam creates an exam and returns the stored row.
func (c *Client) InsertExam(ctx context.Context, ne registry.NewExam) (model.Exam, error) {
	var rows []model.Exam
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody([]examRow{{Name: ne.Name, Description: ne.Description}}).
		SetResult(&rows).
		Post("exams")
	if err := check(resp, err); err != nil {
		return model.Exam{}, err
	}
	if len(rows) == 0 {
		return model.Exam{}, fmt.Errorf("remote: insert exam returned no rows")
	}
	return rows[0], nil
}

// ListCourses returns the courses of an exam ordered by name.
func (c *Client) ListCourses(ctx context.Context, examID string) ([]model.Course, error) {
	var courses []model.Course
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select":  "*",
			"exam_id": "eq." + examID,
			"order":   "name",
		}).
		SetResult(&courses).
		Get("courses")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return courses, nil
}

// InsertCourse creates a course and returns the stored row.
func (c *Client) InsertCourse(ctx context.Context, nc registry.NewCourse) (model.Course, error) {
	var rows []model.Course
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody([]courseRow{{ExamID: nc.ExamID, Name: nc.Name, Description: nc.Description}}).
		SetResult(&rows).
		Post("courses")
	if err := check(resp, err); err != nil {
		return model.Course{}, err
	}
	if len(rows) == 0 {
		return model.Course{}, fmt.Errorf("remote: insert course returned no rows")
	}
	return rows[0], nil
}

// InsertQuestions bulk-inserts extracted questions. IDs are assigned from the
// returned rows when the counts match.
func (c *Client) InsertQuestions(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	body := make([]questionRow, len(questions))
	for i, q := range questions {
		body[i] = newQuestionRow(q)
	}
	var rows []model.Question
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(body).
		SetResult(&rows).
		Post("questions")
	if err := check(resp, err); err != nil {
		return err
	}
	if len(rows) == len(questions) {
		for i := range questions {
			questions[i].ID = rows[i].ID
			questions[i].CreatedAt = rows[i].CreatedAt
			questions[i].UpdatedAt = rows[i].UpdatedAt
		}
	}
	return nil
}

// ListQuestions returns the questions of a course.
func (c *Client) ListQuestions(ctx context.Context, courseID string) ([]model.Question, error) {
	var questions []model.Question
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select":    "*",
			"course_id": "eq." + courseID,
			"order":     "created_at",
		}).
		SetResult(&questions).
		Get("questions")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return questions, nil
}
