package wizard

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
)

// ErrNotReady is returned by Handoff when the extract step is not revealed.
var ErrNotReady = errors.New("wizard: configuration incomplete or no files uploaded")

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient user notification. ID is a translation message ID.
type Notice struct {
	Level Level          `json:"level"`
	ID    string         `json:"id"`
	Data  map[string]any `json:"data,omitempty"`
}

// Snapshot is the serialisable form of a Controller.
type Snapshot struct {
	State   State          `json:"state"`
	Exams   []model.Exam   `json:"exams,omitempty"`
	Courses []model.Course `json:"courses,omitempty"`
	Notices []Notice       `json:"notices,omitempty"`
}

// Controller owns the wizard state, the exam and course lists shown by the
// selection steps, and pending notices. It is not safe for concurrent use.
type Controller struct {
	state   State
	exams   []model.Exam
	courses []model.Course
	notices []Notice
}

// New creates a controller at its initial state.
func New(year int) *Controller {
	return &Controller{state: State{Year: year}}
}

// FromSnapshot restores a controller.
func FromSnapshot(s Snapshot) *Controller {
	c := &Controller{
		state:   s.State,
		exams:   s.Exams,
		courses: s.Courses,
		notices: s.Notices,
	}
	if c.state.Settings != nil {
		c.state.Settings = c.state.Settings.Clone()
	}
	return c
}

// Snapshot returns the serialisable form of the controller.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:   c.State(),
		Exams:   append([]model.Exam(nil), c.exams...),
		Courses: append([]model.Course(nil), c.courses...),
		Notices: append([]Notice(nil), c.notices...),
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	if s.Settings != nil {
		s.Settings = s.Settings.Clone()
	}
	s.Files = append([]model.FileHandle(nil), s.Files...)
	return s
}

func (c *Controller) Exams() []model.Exam     { return c.exams }
func (c *Controller) Courses() []model.Course { return c.courses }

// Complete reports the CompletionFlag, recomputed from current state.
func (c *Controller) Complete() bool { return Complete(c.state) }

// Visible reports whether a step is revealed.
func (c *Controller) Visible(step Step) bool { return Visible(c.state, step) }

// VisibleSteps returns the revealed steps in order.
func (c *Controller) VisibleSteps() []Step { return VisibleSteps(c.state) }

// DrainNotices returns pending notices and clears them.
func (c *Controller) DrainNotices() []Notice {
	out := c.notices
	c.notices = nil
	return out
}

// Notify records a notice raised by a front-end.
func (c *Controller) Notify(level Level, id string, data map[string]any) {
	c.notices = append(c.notices, Notice{Level: level, ID: id, Data: data})
}

func (c *Controller) fail(err error, id string, msg string) {
	slog.Error(msg, "error", err)
	c.Notify(LevelError, id, nil)
}

// Reject records a notice for invalid input. Validation errors use their
// code as the message ID.
func (c *Controller) Reject(err error) {
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		c.Notify(LevelError, verr.Code, nil)
		return
	}
	c.Notify(LevelError, "InvalidInput", nil)
}

// SelectExam selects an exam. Switching to a different exam clears the
// course and the course list.
func (c *Controller) SelectExam(e model.Exam) {
	if c.state.Exam == nil || c.state.Exam.ID != e.ID {
		c.state.Course = nil
		c.courses = nil
	}
	c.state.Exam = &e
}

// SelectExamByID selects an exam from the loaded list. An empty ID clears the
// selection; an unknown ID leaves the state untouched.
func (c *Controller) SelectExamByID(id string) bool {
	if id == "" {
		c.ClearExam()
		return true
	}
	for _, e := range c.exams {
		if e.ID == id {
			c.SelectExam(e)
			return true
		}
	}
	c.Notify(LevelError, "ExamNotFound", nil)
	return false
}

// ClearExam clears the exam and everything that depends on it.
func (c *Controller) ClearExam() {
	c.state.Exam = nil
	c.state.Course = nil
	c.courses = nil
}

// SelectCourse selects a course of the currently selected exam.
func (c *Controller) SelectCourse(course model.Course) error {
	if c.state.Exam == nil || course.ExamID != c.state.Exam.ID {
		return &registry.ValidationError{Field: "course", Message: "course does not belong to the selected exam", Code: "CourseExamMismatch"}
	}
	c.state.Course = &course
	return nil
}

// SelectCourseByID selects a course from the loaded list. An empty ID clears
// the selection.
func (c *Controller) SelectCourseByID(id string) bool {
	if id == "" {
		c.ClearCourse()
		return true
	}
	for _, course := range c.courses {
		if course.ID == id {
			if err := c.SelectCourse(course); err != nil {
				c.Reject(err)
				return false
			}
			return true
		}
	}
	c.Notify(LevelError, "CourseNotFound", nil)
	return false
}

// ClearCourse clears the course selection.
func (c *Controller) ClearCourse() {
	c.state.Course = nil
}

func (c *Controller) SetSlot(slot string) { c.state.Slot = slot }
func (c *Controller) SetPart(part string) { c.state.Part = part }
func (c *Controller) SetYear(year int)    { c.state.Year = year }

// SetSettings replaces all question-type settings.
func (c *Controller) SetSettings(s model.QuestionTypeSettings) {
	if s == nil {
		c.state.Settings = nil
		return
	}
	c.state.Settings = s.Clone()
}

// SetTypeConfig adds or replaces the config of one question type.
func (c *Controller) SetTypeConfig(label string, cfg model.QuestionTypeConfig) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return &registry.ValidationError{Field: "question_type", Message: "question type is required", Code: "QuestionTypeRequired"}
	}
	if c.state.Settings == nil {
		c.state.Settings = make(model.QuestionTypeSettings)
	}
	c.state.Settings[label] = cfg
	return nil
}

// ApplyPreset merges preset configs into the settings. Types already
// configured are replaced; others are kept.
func (c *Controller) ApplyPreset(preset model.QuestionTypeSettings) {
	if len(preset) == 0 {
		return
	}
	if c.state.Settings == nil {
		c.state.Settings = make(model.QuestionTypeSettings, len(preset))
	}
	for label, cfg := range preset {
		c.state.Settings[label] = cfg
	}
}

// RemoveType deselects a question type.
func (c *Controller) RemoveType(label string) {
	delete(c.state.Settings, label)
	if len(c.state.Settings) == 0 {
		c.state.Settings = nil
	}
}

// SetFiles replaces the uploaded files.
func (c *Controller) SetFiles(files []model.FileHandle) {
	c.state.Files = append([]model.FileHandle(nil), files...)
}

// Reset returns the wizard to its initial state. The year is kept.
func (c *Controller) Reset() {
	c.state = State{Year: c.state.Year}
	c.courses = nil
}

// Handoff builds the extraction request. It fails unless the extract step is
// revealed.
func (c *Controller) Handoff() (model.ExtractionRequest, error) {
	if !c.Visible(StepExtract) {
		return model.ExtractionRequest{}, ErrNotReady
	}
	s := c.State()
	return model.ExtractionRequest{
		Files:                s.Files,
		CourseID:             s.Course.ID,
		Slot:                 s.Slot,
		Part:                 s.Part,
		Year:                 s.Year,
		QuestionTypeSettings: s.Settings,
	}, nil
}

// ExamsLoaded applies the result of a list call. On failure the list is empty.
func (c *Controller) ExamsLoaded(exams []model.Exam, err error) {
	if err != nil {
		c.exams = nil
		c.fail(err, "ExamsFetchFailed", "error fetching exams")
		return
	}
	c.exams = exams
}

// PrepareExam validates a new exam. On failure a notice is recorded and no
// remote call must be made.
func (c *Controller) PrepareExam(name, description string) (registry.NewExam, bool) {
	ne, err := registry.ValidateExam(name, description)
	if err != nil {
		c.Reject(err)
		return registry.NewExam{}, false
	}
	return ne, true
}

// ExamCreated appends a created exam to the local list without re-fetching.
func (c *Controller) ExamCreated(exam model.Exam, err error) {
	if err != nil {
		c.fail(err, "ExamCreateFailed", "error adding exam")
		return
	}
	for _, e := range c.exams {
		if e.ID == exam.ID {
			return
		}
	}
	c.exams = append(c.exams, exam)
	c.Notify(LevelSuccess, "ExamAdded", map[string]any{"Name": exam.Name})
}

// CoursesLoaded applies the result of a course list call for examID. Results
// for an exam that is no longer selected are ignored.
func (c *Controller) CoursesLoaded(examID string, courses []model.Course, err error) {
	if c.state.Exam == nil || c.state.Exam.ID != examID {
		return
	}
	if err != nil {
		c.courses = nil
		c.fail(err, "CoursesFetchFailed", "error fetching courses")
		return
	}
	c.courses = courses
}

// PrepareCourse validates a new course for the selected exam.
func (c *Controller) PrepareCourse(name, description string) (registry.NewCourse, bool) {
	examID := ""
	if c.state.Exam != nil {
		examID = c.state.Exam.ID
	}
	nc, err := registry.ValidateCourse(examID, name, description)
	if err != nil {
		c.Reject(err)
		return registry.NewCourse{}, false
	}
	return nc, true
}

// CourseCreated appends a created course to the local list if it belongs to
// the selected exam.
func (c *Controller) CourseCreated(course model.Course, err error) {
	if err != nil {
		c.fail(err, "CourseCreateFailed", "error adding course")
		return
	}
	if c.state.Exam == nil || c.state.Exam.ID != course.ExamID {
		return
	}
	for _, existing := range c.courses {
		if existing.ID == course.ID {
			return
		}
	}
	c.courses = append(c.courses, course)
	c.Notify(LevelSuccess, "CourseAdded", map[string]any{"Name": course.Name})
}

// ExtractionFinished applies the extractor's result. Success resets the wizard.
func (c *Controller) ExtractionFinished(res model.ExtractionResult, err error) {
	if err != nil {
		c.fail(err, "ExtractionFailed", "error extracting questions")
		return
	}
	c.Notify(LevelSuccess, "ExtractionDone", map[string]any{"Count": res.Total})
	c.Reset()
}

// UploadFailed records a failed upload without touching the state.
func (c *Controller) UploadFailed(err error) {
	c.fail(err, "UploadFailed", "error uploading files")
}

// LoadExams fetches exams and applies the result.
func (c *Controller) LoadExams(ctx context.Context, reg *registry.Client) {
	exams, err := reg.ListExams(ctx)
	c.ExamsLoaded(exams, err)
}

// AddExam validates and creates an exam, appending it to the local list.
func (c *Controller) AddExam(ctx context.Context, reg *registry.Client, name, description string) bool {
	ne, ok := c.PrepareExam(name, description)
	if !ok {
		return false
	}
	exam, err := reg.InsertExam(ctx, ne)
	c.ExamCreated(exam, err)
	return err == nil
}

// LoadCourses fetches the courses of the selected exam.
func (c *Controller) LoadCourses(ctx context.Context, reg *registry.Client) {
	if c.state.Exam == nil {
		c.courses = nil
		return
	}
	examID := c.state.Exam.ID
	courses, err := reg.ListCourses(ctx, examID)
	c.CoursesLoaded(examID, courses, err)
}

// AddCourse validates and creates a course for the selected exam.
func (c *Controller) AddCourse(ctx context.Context, reg *registry.Client, name, description string) bool {
	nc, ok := c.PrepareCourse(name, description)
	if !ok {
		return false
	}
	course, err := reg.InsertCourse(ctx, nc)
	c.CourseCreated(course, err)
	return err == nil
}

// Extractor turns a handoff into persisted questions.
type Extractor interface {
	Extract(ctx context.Context, req model.ExtractionRequest) (model.ExtractionResult, error)
}

// Extract hands the current configuration to the extractor and applies the result.
func (c *Controller) Extract(ctx context.Context, ex Extractor) bool {
	req, err := c.Handoff()
	if err != nil {
		c.Notify(LevelError, "ExtractNotReady", nil)
		return false
	}
	res, err := ex.Extract(ctx, req)
	c.ExtractionFinished(res, err)
	return err == nil
}
