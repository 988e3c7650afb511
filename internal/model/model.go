package model

import (
	"context"
	"time"
)

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Exam is the top-level categorization of questions (e.g. "JEE Main").
type Exam struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Course belongs to exactly one Exam.
type Course struct {
	ID          string     `json:"id"`
	ExamID      string     `json:"exam_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// QuestionType is a label such as MCQ. Labels outside the known set are allowed.
type QuestionType string

const (
	QuestionTypeMCQ        QuestionType = "MCQ"
	QuestionTypeMSQ        QuestionType = "MSQ"
	QuestionTypeNAT        QuestionType = "NAT"
	QuestionTypeSubjective QuestionType = "Subjective"
)

// KnownQuestionTypes lists the labels offered by the front-ends, in display order.
var KnownQuestionTypes = []QuestionType{
	QuestionTypeMCQ,
	QuestionTypeMSQ,
	QuestionTypeNAT,
	QuestionTypeSubjective,
}

// QuestionTypeConfig holds the scoring and timing rules for one question type.
// A nil field is undefined; zero is a valid defined value.
type QuestionTypeConfig struct {
	CorrectMarks   *float64 `json:"correctMarks,omitempty" yaml:"correctMarks"`
	IncorrectMarks *float64 `json:"incorrectMarks,omitempty" yaml:"incorrectMarks"`
	SkippedMarks   *float64 `json:"skippedMarks,omitempty" yaml:"skippedMarks"`
	PartialMarks   *float64 `json:"partialMarks,omitempty" yaml:"partialMarks"`
	TimeMinutes    *float64 `json:"timeMinutes,omitempty" yaml:"timeMinutes"`
}

// Configured reports whether all five fields are defined.
func (c QuestionTypeConfig) Configured() bool {
	return c.CorrectMarks != nil &&
		c.IncorrectMarks != nil &&
		c.SkippedMarks != nil &&
		c.PartialMarks != nil &&
		c.TimeMinutes != nil
}

// NewQuestionTypeConfig returns a fully defined config.
func NewQuestionTypeConfig(correct, incorrect, skipped, partial, minutes float64) QuestionTypeConfig {
	return QuestionTypeConfig{
		CorrectMarks:   &correct,
		IncorrectMarks: &incorrect,
		SkippedMarks:   &skipped,
		PartialMarks:   &partial,
		TimeMinutes:    &minutes,
	}
}

// QuestionTypeSettings maps a question-type label to its config.
type QuestionTypeSettings map[string]QuestionTypeConfig

// Clone returns a copy that shares no map storage with s.
func (s QuestionTypeSettings) Clone() QuestionTypeSettings {
	out := make(QuestionTypeSettings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FileHandle identifies an uploaded PDF in the blob store.
type FileHandle struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ExtractionRequest is what the wizard hands to the extractor.
type ExtractionRequest struct {
	Files                []FileHandle         `json:"files"`
	CourseID             string               `json:"courseId"`
	Slot                 string               `json:"slot"`
	Part                 string               `json:"part"`
	Year                 int                  `json:"year"`
	QuestionTypeSettings QuestionTypeSettings `json:"questionTypeSettings"`
}

// Question is an extracted question with the scoring rules of its type applied.
type Question struct {
	ID                string     `json:"id,omitempty"`
	QuestionType      string     `json:"question_type"`
	QuestionStatement string     `json:"question_statement"`
	Options           []string   `json:"options,omitempty"`
	Answer            *string    `json:"answer,omitempty"`
	Solution          *string    `json:"solution,omitempty"`
	CourseID          string     `json:"course_id"`
	Year              *int       `json:"year,omitempty"`
	Slot              *string    `json:"slot,omitempty"`
	Part              *string    `json:"part,omitempty"`
	CorrectMarks      *float64   `json:"correct_marks,omitempty"`
	IncorrectMarks    *float64   `json:"incorrect_marks,omitempty"`
	SkippedMarks      *float64   `json:"skipped_marks,omitempty"`
	PartialMarks      *float64   `json:"partial_marks,omitempty"`
	TimeMinutes       *float64   `json:"time_minutes,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// FileResult summarizes extraction of one uploaded file.
type FileResult struct {
	Name      string `json:"name"`
	Extracted int    `json:"extracted"`
	Dropped   int    `json:"dropped"`
	Skipped   bool   `json:"skipped,omitempty"` // already extracted earlier
}

// ExtractionResult summarizes a whole extraction batch.
type ExtractionResult struct {
	Files []FileResult `json:"files"`
	Total int          `json:"total"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath       string // URL prefix for sub-path deployments (e.g. "/qx")
	SecureCookies  bool   // Set Secure flag on cookies (disable for local dev)
	MaxUploadBytes int64
	DefaultYear    int
	CORSOrigins    []string // allowed origins of the JSON API
}
