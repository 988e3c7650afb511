// Package wizard implements the step-gating state machine of the
// question-extraction wizard.
package wizard

import (
	"strings"

	"github.com/pavelanni/qextractor/internal/model"
)

// Step is one stage of the wizard, in reveal order.
type Step int

const (
	StepExamSelection Step = iota
	StepCourseSelection
	StepSlotPartYear
	StepTypeConfig
	StepUpload
	StepExtract
)

// Steps lists all steps in reveal order.
var Steps = []Step{
	StepExamSelection,
	StepCourseSelection,
	StepSlotPartYear,
	StepTypeConfig,
	StepUpload,
	StepExtract,
}

func (s Step) String() string {
	switch s {
	case StepExamSelection:
		return "exam"
	case StepCourseSelection:
		return "course"
	case StepSlotPartYear:
		return "details"
	case StepTypeConfig:
		return "types"
	case StepUpload:
		return "upload"
	case StepExtract:
		return "extract"
	}
	return "unknown"
}

// TitleID returns the translation message ID of the step title.
func (s Step) TitleID() string {
	switch s {
	case StepExamSelection:
		return "StepSelectExam"
	case StepCourseSelection:
		return "StepSelectCourse"
	case StepSlotPartYear:
		return "StepSlotPart"
	case StepTypeConfig:
		return "StepQuestionTypes"
	case StepUpload:
		return "StepUpload"
	case StepExtract:
		return "StepExtract"
	}
	return ""
}

// State is everything the wizard collects.
type State struct {
	Exam     *model.Exam                `json:"exam,omitempty"`
	Course   *model.Course              `json:"course,omitempty"`
	Slot     string                     `json:"slot"`
	Part     string                     `json:"part"`
	Year     int                        `json:"year"`
	Settings model.QuestionTypeSettings `json:"settings,omitempty"`
	Files    []model.FileHandle         `json:"files,omitempty"`
}

// Complete reports whether the configuration is ready for upload: exam and
// course selected, slot and part non-blank, at least one question type, and
// every type fully configured.
func Complete(s State) bool {
	if s.Exam == nil || s.Course == nil {
		return false
	}
	if strings.TrimSpace(s.Slot) == "" || strings.TrimSpace(s.Part) == "" {
		return false
	}
	if len(s.Settings) == 0 {
		return false
	}
	for _, cfg := range s.Settings {
		if !cfg.Configured() {
			return false
		}
	}
	return true
}

// Visible reports whether a step is revealed for the given state.
func Visible(s State, step Step) bool {
	switch step {
	case StepExamSelection:
		return true
	case StepCourseSelection:
		return s.Exam != nil
	case StepSlotPartYear:
		return s.Course != nil
	case StepTypeConfig:
		return s.Course != nil && strings.TrimSpace(s.Slot) != "" && strings.TrimSpace(s.Part) != ""
	case StepUpload:
		return Complete(s)
	case StepExtract:
		return Complete(s) && len(s.Files) > 0
	}
	return false
}

// VisibleSteps returns the revealed steps in order.
func VisibleSteps(s State) []Step {
	var out []Step
	for _, step := range Steps {
		if Visible(s, step) {
			out = append(out, step)
		}
	}
	return out
}
