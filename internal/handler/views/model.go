package views

// WizardView is everything the wizard page shows.
type WizardView struct {
	Lang      string
	BasePath  string
	CSRFToken string

	Notices []NoticeView
	Steps   []StepView

	Exams                   []OptionView
	SelectedExamDescription string
	Courses                 []OptionView

	Slot string
	Part string
	Year int

	Presets  []PresetView
	Types    []TypeView
	Complete bool

	Files   []FileView
	Summary string
}

// NoticeView is a translated notice.
type NoticeView struct {
	Level string
	Text  string
}

// StepView is a revealed step.
type StepView struct {
	Name    string
	Number  int
	TitleID string
}

// OptionView is an entry of a select list.
type OptionView struct {
	ID       string
	Name     string
	Selected bool
}

type PresetView struct {
	Name  string
	Title string
}

// TypeView is one question type row. Empty strings are undefined fields.
type TypeView struct {
	Label          string
	Selected       bool
	Configured     bool
	CorrectMarks   string
	IncorrectMarks string
	SkippedMarks   string
	PartialMarks   string
	TimeMinutes    string
}

// FileView is an uploaded file with a human-readable size.
type FileView struct {
	Name string
	Size string
}
