package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	appI18n "github.com/pavelanni/qextractor/internal/i18n"
	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/wizard"
)

var fieldIDs = [5]string{"CorrectMarks", "IncorrectMarks", "SkippedMarks", "PartialMarks", "TimeMinutes"}

// View renders the entire wizard UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + m.styles.Title.Render(m.t("AppTitle")) + "\n")
	b.WriteString("  " + m.styles.Subtitle.Render(m.t("AppSubtitle")) + "\n\n")
	b.WriteString(m.renderProgress())

	if len(m.notices) > 0 {
		b.WriteString("\n")
		for _, n := range m.notices {
			style := m.styles.SuccessTxt
			mark := "✓ "
			if n.Level == wizard.LevelError {
				style = m.styles.ErrorTxt
				mark = "✗ "
			}
			b.WriteString("  " + style.Render(mark+appI18n.Tn(m.ctx, n.ID, n.Data)) + "\n")
		}
	}
	b.WriteString("\n")

	switch {
	case m.phase == phaseExtracting:
		b.WriteString("  " + m.styles.AccentTxt.Render(m.t("TuiExtracting")) + "\n")
	case m.loading:
		b.WriteString("  " + m.styles.DimTxt.Render(m.t("TuiLoading")) + "\n")
	default:
		b.WriteString(m.renderPhase())
	}

	b.WriteString("\n  " + m.styles.DimTxt.Render(m.t("TuiHelp")) + "\n")
	return b.String()
}

// renderProgress lists the revealed steps; all but the last are complete.
func (m Model) renderProgress() string {
	var out string
	steps := m.wiz.VisibleSteps()
	for i, step := range steps {
		title := m.styles.PrimaryTxt.Bold(true).Render(m.t(step.TitleID()))
		if i < len(steps)-1 {
			badge := m.styles.StepBadgeComplete.Render("✓")
			out += fmt.Sprintf("  %s  %s  %s\n", badge, title, m.styles.SecondaryTxt.Render(m.stepSummary(step)))
			continue
		}
		badge := m.styles.StepBadgeActive.Render(fmt.Sprintf("%d", i+1))
		dividerLen := m.width - 12 - lipgloss.Width(title)
		if dividerLen < 2 {
			dividerLen = 2
		}
		out += fmt.Sprintf("  %s  %s %s\n", badge, title, m.styles.DimTxt.Render(strings.Repeat("─", dividerLen)))
	}
	return out
}

func (m Model) stepSummary(step wizard.Step) string {
	s := m.wiz.State()
	switch step {
	case wizard.StepExamSelection:
		if s.Exam != nil {
			return s.Exam.Name
		}
	case wizard.StepCourseSelection:
		if s.Course != nil {
			return s.Course.Name
		}
	case wizard.StepSlotPartYear:
		return fmt.Sprintf("%s / %s / %d", s.Slot, s.Part, s.Year)
	case wizard.StepTypeConfig:
		return strings.Join(selectedTypes(s.Settings), ", ")
	case wizard.StepUpload:
		return appI18n.Tp(m.ctx, "FilesCount", len(s.Files))
	}
	return ""
}

func selectedTypes(settings model.QuestionTypeSettings) []string {
	var out []string
	for _, label := range typeLabels(settings) {
		if _, ok := settings[label]; ok {
			out = append(out, label)
		}
	}
	return out
}

func (m Model) renderPhase() string {
	switch m.phase {
	case phaseExam:
		var items []string
		for _, e := range m.wiz.Exams() {
			items = append(items, e.Name)
		}
		return m.renderList(m.t("SelectExamPlaceholder"), items)
	case phaseCourse:
		var items []string
		for _, c := range m.wiz.Courses() {
			items = append(items, c.Name)
		}
		return m.renderList(m.t("SelectCoursePlaceholder"), items)
	case phaseExamName:
		return m.renderInput(m.t("ExamName"))
	case phaseCourseName:
		return m.renderInput(m.t("CourseName"))
	case phaseExamDesc, phaseCourseDesc:
		return m.renderInput(m.t("DescriptionOptional"))
	case phaseSlot:
		return m.renderInput(m.t("Slot"))
	case phasePart:
		return m.renderInput(m.t("Part"))
	case phaseYear:
		return m.renderInput(m.t("Year"))
	case phaseTypes:
		return m.renderTypes()
	case phaseTypeField:
		return m.renderInput(fmt.Sprintf("%s: %s", m.typeLabel, m.t(fieldIDs[m.fieldIdx])))
	case phaseFiles:
		return m.renderFiles() + m.renderInput(m.t("TuiFilePath"))
	case phaseConfirm:
		return m.renderConfirm()
	}
	return ""
}

// renderList draws a cursor list followed by the "add new" entry.
func (m Model) renderList(header string, items []string) string {
	out := "  " + m.styles.SecondaryTxt.Render(header) + "\n\n"
	items = append(items, m.t("TuiAddNew"))
	for i, item := range items {
		out += m.renderItem(i, item) + "\n"
	}
	return out
}

func (m Model) renderItem(i int, label string) string {
	prefix := "   "
	style := m.styles.UnselectedItem
	if i == m.cursor {
		prefix = " " + m.styles.Cursor.Render("›") + " "
		style = m.styles.SelectedItem
	}
	return "  " + prefix + style.Render(label)
}

func (m Model) renderInput(label string) string {
	out := "  " + m.styles.PrimaryTxt.Bold(true).Render(label) + "\n\n"
	width := m.width - 8
	if width < 20 {
		width = 20
	}
	out += "  " + m.styles.InputBox.Width(width).Render(m.input.View()) + "\n"
	if m.inputErr != "" {
		out += "  " + m.styles.ErrorTxt.Render("✗ "+m.inputErr) + "\n"
	}
	return out
}

func (m Model) renderTypes() string {
	out := "  " + m.styles.SecondaryTxt.Render(m.t("TuiTypePrompt")) + "\n\n"
	settings := m.wiz.State().Settings

	i := 0
	for _, p := range m.cfg.Presets {
		out += m.renderItem(i, m.t("ApplyPreset")+": "+p.Title) + "\n"
		i++
	}
	for _, label := range typeLabels(settings) {
		mark := "[ ]"
		if cfg, ok := settings[label]; ok {
			mark = "[x]"
			if !cfg.Configured() {
				mark = "[~]"
			}
		}
		out += m.renderItem(i, mark+" "+label) + "\n"
		i++
	}
	out += m.renderItem(i, m.t("TuiDone")) + "\n"
	return out
}

func (m Model) renderFiles() string {
	files := m.wiz.State().Files
	if len(files) == 0 {
		return ""
	}
	out := "  " + m.styles.SecondaryTxt.Render(appI18n.Tp(m.ctx, "FilesCount", len(files))) + "\n"
	for _, f := range files {
		out += fmt.Sprintf("    %s %s\n", f.Name, m.styles.DimTxt.Render("("+humanize.Bytes(uint64(f.Size))+")"))
	}
	return out + "\n"
}

func (m Model) renderConfirm() string {
	if !m.wiz.Visible(wizard.StepExtract) {
		return ""
	}
	s := m.wiz.State()
	summary := appI18n.Td(m.ctx, "ExtractSummary", map[string]any{
		"Exam":   s.Exam.Name,
		"Course": s.Course.Name,
		"Slot":   s.Slot,
		"Part":   s.Part,
		"Year":   s.Year,
	})
	out := "  " + m.styles.PrimaryTxt.Render(summary) + "\n"
	out += m.renderFiles()
	out += "  " + m.styles.AccentTxt.Render("enter: "+m.t("ExtractQuestions")) + "\n"
	out += "  " + m.styles.DimTxt.Render(m.t("TuiResetHint")) + "\n"
	return out
}
