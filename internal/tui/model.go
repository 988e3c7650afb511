// Package tui is the terminal front-end of the extraction wizard.
package tui

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appI18n "github.com/pavelanni/qextractor/internal/i18n"
	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/presets"
	"github.com/pavelanni/qextractor/internal/registry"
	"github.com/pavelanni/qextractor/internal/storage"
	"github.com/pavelanni/qextractor/internal/wizard"
)

type phase int

const (
	phaseExam phase = iota
	phaseExamName
	phaseExamDesc
	phaseCourse
	phaseCourseName
	phaseCourseDesc
	phaseSlot
	phasePart
	phaseYear
	phaseTypes
	phaseTypeField
	phaseFiles
	phaseConfirm
	phaseExtracting
)

const maxNotices = 4

// Config holds the collaborators of the terminal wizard.
type Config struct {
	Registry  *registry.Client
	Blobs     storage.BlobStore
	Extractor wizard.Extractor
	Presets   []presets.Preset
	Year      int
	Theme     TermTheme
}

// Model is the bubbletea model driving a wizard.Controller.
type Model struct {
	cfg    Config
	ctx    context.Context
	styles *StyleSet
	wiz    *wizard.Controller

	phase   phase
	cursor  int
	input   textinput.Model
	loading bool
	width   int

	pendingName string
	typeLabel   string
	fieldIdx    int
	fieldVals   [5]*float64
	inputErr    string

	notices []wizard.Notice
	done    int
}

// New creates the terminal wizard. ctx carries the localizer.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Theme.Name == "" {
		cfg.Theme = DarkTheme
	}
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(cfg.Theme.Accent)
	ti.Focus()

	return Model{
		cfg:    cfg,
		ctx:    ctx,
		styles: NewStyleSet(cfg.Theme),
		wiz:    wizard.New(cfg.Year),
		input:  ti,
		width:  80,
	}
}

// Init starts loading the exam list.
func (m Model) Init() tea.Cmd {
	return loadExams(m.ctx, m.cfg.Registry)
}

// Extracted returns the number of questions extracted during the session.
func (m Model) Extracted() int { return m.done }

func (m Model) t(id string) string { return appI18n.T(m.ctx, id) }

// Update handles messages for the wizard.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case examsLoadedMsg:
		m.loading = false
		m.wiz.ExamsLoaded(msg.exams, msg.err)
		m.clampCursor()

	case examCreatedMsg:
		m.loading = false
		m.wiz.ExamCreated(msg.exam, msg.err)
		m.phase = phaseExam
		m.cursor = 0

	case coursesLoadedMsg:
		m.loading = false
		m.wiz.CoursesLoaded(msg.examID, msg.courses, msg.err)
		m.clampCursor()

	case courseCreatedMsg:
		m.loading = false
		m.wiz.CourseCreated(msg.course, msg.err)
		m.phase = phaseCourse
		m.cursor = 0

	case extractionFinishedMsg:
		m.loading = false
		m.wiz.ExtractionFinished(msg.result, msg.err)
		if msg.err != nil {
			m.phase = phaseConfirm
		} else {
			m.done += msg.result.Total
			m.phase = phaseExam
			m.cursor = 0
		}

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)
	}

	m.collectNotices()
	return m, cmd
}

func (m *Model) collectNotices() {
	m.notices = append(m.notices, m.wiz.DrainNotices()...)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.loading {
		return m, nil
	}
	if msg.String() == "esc" {
		m.back()
		return m, nil
	}

	switch m.phase {
	case phaseExam:
		return m.updateExamList(msg)
	case phaseCourse:
		return m.updateCourseList(msg)
	case phaseTypes:
		return m.updateTypeList(msg)
	case phaseConfirm:
		return m.updateConfirm(msg)
	case phaseExtracting:
		return m, nil
	}

	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.inputErr = ""
		return m, cmd
	}
	return m.submitInput(strings.TrimSpace(m.input.Value()))
}

// back moves one phase towards the start.
func (m *Model) back() {
	m.inputErr = ""
	switch m.phase {
	case phaseExamName, phaseExamDesc:
		m.phase = phaseExam
	case phaseCourse:
		m.wiz.ClearExam()
		m.phase = phaseExam
	case phaseCourseName, phaseCourseDesc:
		m.phase = phaseCourse
	case phaseSlot:
		m.wiz.ClearCourse()
		m.phase = phaseCourse
	case phasePart:
		m.startInput(phaseSlot, m.wiz.State().Slot)
		return
	case phaseYear:
		m.startInput(phasePart, m.wiz.State().Part)
		return
	case phaseTypes:
		m.startInput(phaseYear, strconv.Itoa(m.wiz.State().Year))
		return
	case phaseTypeField, phaseFiles:
		m.phase = phaseTypes
	case phaseConfirm:
		m.startInput(phaseFiles, "")
		return
	default:
		return
	}
	m.cursor = 0
}

func (m *Model) startInput(p phase, value string) {
	m.phase = p
	m.inputErr = ""
	m.input.Reset()
	m.input.SetValue(value)
	m.input.CursorEnd()
}

func (m *Model) clampCursor() {
	n := m.listLen()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) listLen() int {
	switch m.phase {
	case phaseExam:
		return len(m.wiz.Exams()) + 1
	case phaseCourse:
		return len(m.wiz.Courses()) + 1
	case phaseTypes:
		return len(m.cfg.Presets) + len(typeLabels(m.wiz.State().Settings)) + 1
	}
	return 0
}

func (m *Model) moveCursor(key string) bool {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return true
	case "down", "j":
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
		return true
	}
	return false
}

func (m Model) updateExamList(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.moveCursor(msg.String()) || msg.Type != tea.KeyEnter {
		return m, nil
	}
	exams := m.wiz.Exams()
	if m.cursor >= len(exams) {
		m.startInput(phaseExamName, "")
		return m, nil
	}
	exam := exams[m.cursor]
	m.wiz.SelectExam(exam)
	m.phase = phaseCourse
	m.cursor = 0
	m.loading = true
	return m, loadCourses(m.ctx, m.cfg.Registry, exam.ID)
}

func (m Model) updateCourseList(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.moveCursor(msg.String()) || msg.Type != tea.KeyEnter {
		return m, nil
	}
	courses := m.wiz.Courses()
	if m.cursor >= len(courses) {
		m.startInput(phaseCourseName, "")
		return m, nil
	}
	if err := m.wiz.SelectCourse(courses[m.cursor]); err != nil {
		m.wiz.Reject(err)
		return m, nil
	}
	m.startInput(phaseSlot, m.wiz.State().Slot)
	return m, nil
}

func (m Model) updateTypeList(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.moveCursor(msg.String()) {
		return m, nil
	}
	key := msg.String()
	if key != "enter" && key != " " {
		return m, nil
	}

	labels := typeLabels(m.wiz.State().Settings)
	switch idx := m.cursor; {
	case idx < len(m.cfg.Presets):
		p := m.cfg.Presets[idx]
		m.wiz.ApplyPreset(p.Types)
		m.wiz.Notify(wizard.LevelSuccess, "PresetApplied", map[string]any{"Name": p.Title})
	case idx < len(m.cfg.Presets)+len(labels):
		label := labels[idx-len(m.cfg.Presets)]
		if _, ok := m.wiz.State().Settings[label]; ok {
			m.wiz.RemoveType(label)
		} else if err := m.wiz.SetTypeConfig(label, model.QuestionTypeConfig{}); err != nil {
			m.wiz.Reject(err)
		}
	case key == "enter":
		m.nextTypeOrFiles()
	}
	m.clampCursor()
	return m, nil
}

// nextTypeOrFiles asks for the fields of the next incomplete type, or moves on
// to the upload phase once every selected type is configured.
func (m *Model) nextTypeOrFiles() {
	settings := m.wiz.State().Settings
	for _, label := range typeLabels(settings) {
		cfg, ok := settings[label]
		if !ok || cfg.Configured() {
			continue
		}
		m.typeLabel = label
		m.fieldIdx = 0
		m.fieldVals = [5]*float64{cfg.CorrectMarks, cfg.IncorrectMarks, cfg.SkippedMarks, cfg.PartialMarks, cfg.TimeMinutes}
		m.startInput(phaseTypeField, formatFloat(m.fieldVals[0]))
		return
	}
	if !m.wiz.Complete() {
		m.wiz.Notify(wizard.LevelError, "ConfigIncomplete", nil)
		m.phase = phaseTypes
		return
	}
	m.startInput(phaseFiles, "")
}

func (m Model) updateConfirm(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.discardFiles()
		m.wiz.Reset()
		m.phase = phaseExam
		m.cursor = 0
		return m, nil
	case "enter":
		req, err := m.wiz.Handoff()
		if err != nil {
			m.wiz.Notify(wizard.LevelError, "ExtractNotReady", nil)
			return m, nil
		}
		m.phase = phaseExtracting
		m.loading = true
		return m, runExtraction(m.ctx, m.cfg.Extractor, req)
	}
	return m, nil
}

func (m Model) submitInput(value string) (Model, tea.Cmd) {
	switch m.phase {
	case phaseExamName:
		if _, ok := m.wiz.PrepareExam(value, ""); !ok {
			return m, nil
		}
		m.pendingName = value
		m.startInput(phaseExamDesc, "")

	case phaseExamDesc:
		ne, ok := m.wiz.PrepareExam(m.pendingName, value)
		if !ok {
			return m, nil
		}
		m.loading = true
		return m, createExam(m.ctx, m.cfg.Registry, ne)

	case phaseCourseName:
		if _, ok := m.wiz.PrepareCourse(value, ""); !ok {
			return m, nil
		}
		m.pendingName = value
		m.startInput(phaseCourseDesc, "")

	case phaseCourseDesc:
		nc, ok := m.wiz.PrepareCourse(m.pendingName, value)
		if !ok {
			return m, nil
		}
		m.loading = true
		return m, createCourse(m.ctx, m.cfg.Registry, nc)

	case phaseSlot:
		if value == "" {
			m.inputErr = m.t("InvalidInput")
			return m, nil
		}
		m.wiz.SetSlot(value)
		m.startInput(phasePart, m.wiz.State().Part)

	case phasePart:
		if value == "" {
			m.inputErr = m.t("InvalidInput")
			return m, nil
		}
		m.wiz.SetPart(value)
		m.startInput(phaseYear, strconv.Itoa(m.wiz.State().Year))

	case phaseYear:
		year, err := strconv.Atoi(value)
		if err != nil || year <= 0 {
			m.wiz.Notify(wizard.LevelError, "InvalidYear", nil)
			return m, nil
		}
		m.wiz.SetYear(year)
		m.phase = phaseTypes
		m.cursor = 0

	case phaseTypeField:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			m.wiz.Notify(wizard.LevelError, "InvalidNumber", nil)
			return m, nil
		}
		m.fieldVals[m.fieldIdx] = &f
		m.fieldIdx++
		if m.fieldIdx < len(m.fieldVals) {
			m.startInput(phaseTypeField, formatFloat(m.fieldVals[m.fieldIdx]))
			return m, nil
		}
		cfg := model.QuestionTypeConfig{
			CorrectMarks:   m.fieldVals[0],
			IncorrectMarks: m.fieldVals[1],
			SkippedMarks:   m.fieldVals[2],
			PartialMarks:   m.fieldVals[3],
			TimeMinutes:    m.fieldVals[4],
		}
		if err := m.wiz.SetTypeConfig(m.typeLabel, cfg); err != nil {
			m.wiz.Reject(err)
			return m, nil
		}
		m.nextTypeOrFiles()

	case phaseFiles:
		if value == "" {
			if len(m.wiz.State().Files) == 0 {
				m.wiz.Notify(wizard.LevelError, "NoFilesSelected", nil)
				return m, nil
			}
			m.phase = phaseConfirm
			return m, nil
		}
		m.addFile(value)
		m.input.Reset()
	}
	return m, nil
}

// addFile copies a local PDF into the blob store.
func (m *Model) addFile(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		m.wiz.Notify(wizard.LevelError, "NoFilesSelected", nil)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		m.inputErr = m.t("TuiFileMissing")
		return
	}
	defer f.Close()

	handle, err := storage.Upload(m.cfg.Blobs, filepath.Base(path), f)
	if err != nil {
		m.wiz.UploadFailed(err)
		return
	}
	m.wiz.SetFiles(append(m.wiz.State().Files, handle))
}

func (m *Model) discardFiles() {
	for _, f := range m.wiz.State().Files {
		_ = m.cfg.Blobs.Delete(f.Key)
	}
}

// typeLabels lists the known types followed by custom ones in use.
func typeLabels(settings model.QuestionTypeSettings) []string {
	var labels []string
	known := make(map[string]bool)
	for _, qt := range model.KnownQuestionTypes {
		labels = append(labels, string(qt))
		known[string(qt)] = true
	}
	var custom []string
	for label := range settings {
		if !known[label] {
			custom = append(custom, label)
		}
	}
	sort.Strings(custom)
	return append(labels, custom...)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
