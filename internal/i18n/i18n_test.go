package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Question Extractor" {
		t.Errorf("T(AppTitle) = %q, want 'Question Extractor'", got)
	}

	got = T(ctx, "StepSelectExam")
	if got != "Select Exam" {
		t.Errorf("T(StepSelectExam) = %q, want 'Select Exam'", got)
	}

	got = T(ctx, "DescriptionOptional")
	if got != "Description (optional)" {
		t.Errorf("T(DescriptionOptional) = %q, want 'Description (optional)'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Извлечение вопросов" {
		t.Errorf("T(AppTitle) = %q, want 'Извлечение вопросов'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "FilesCount", 1)
	if got1 != "1 file uploaded:" {
		t.Errorf("Tp(FilesCount, 1) = %q", got1)
	}

	got5 := Tp(ctx, "FilesCount", 5)
	if got5 != "5 files uploaded:" {
		t.Errorf("Tp(FilesCount, 5) = %q", got5)
	}
}

func TestPluralRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	tests := []struct {
		count int
		want  string
	}{
		{1, "Извлечён 1 вопрос"},
		{3, "Извлечено 3 вопроса"},
		{5, "Извлечено 5 вопросов"},
		{21, "Извлечён 21 вопрос"},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "ExtractionDone", tt.count); got != tt.want {
			t.Errorf("Tp(ExtractionDone, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ExamAdded", map[string]any{"Name": "GATE"})
	if got != `Exam "GATE" added successfully` {
		t.Errorf("Td(ExamAdded) = %q", got)
	}
}

func TestNoticeTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	tests := []struct {
		name string
		id   string
		data map[string]any
		want string
	}{
		{"no data", "ExamsFetchFailed", nil, "Failed to load exams"},
		{"int count", "ExtractionDone", map[string]any{"Count": 1}, "Extracted 1 question"},
		{"json count", "ExtractionDone", map[string]any{"Count": float64(12)}, "Extracted 12 questions"},
		{"name", "CourseAdded", map[string]any{"Name": "Physics"}, `Course "Physics" added successfully`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tn(ctx, tt.id, tt.data); got != tt.want {
				t.Errorf("Tn(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestNoticeDataUnchanged(t *testing.T) {
	ctx := initLang(t, "en")

	data := map[string]any{"Count": float64(3)}
	Tn(ctx, "ExtractionDone", data)
	if _, ok := data["Count"].(float64); !ok {
		t.Errorf("Tn changed the caller's data: Count is %T", data["Count"])
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		prefs []string
		want  string
	}{
		{"none", nil, "en"},
		{"explicit ru", []string{"ru"}, "ru"},
		{"accept header", []string{"", "", "ru-RU,ru;q=0.9,en;q=0.8"}, "ru"},
		{"unsupported", []string{"fr-FR"}, "en"},
		{"first usable wins", []string{"", "ru", "en"}, "ru"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match("en", tt.prefs...); got != tt.want {
				t.Errorf("Match(%v) = %q, want %q", tt.prefs, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var gotLang, gotTitle string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = LangFromContext(r.Context())
		gotTitle = T(r.Context(), "AppTitle")
	}))

	tests := []struct {
		name   string
		target string
		cookie string
		accept string
		want   string
	}{
		{"default", "/", "", "", "en"},
		{"query", "/?lang=ru", "", "en", "ru"},
		{"cookie", "/", "ru", "", "ru"},
		{"query beats cookie", "/?lang=en", "ru", "", "en"},
		{"header", "/", "", "ru", "ru"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "lang", Value: tt.cookie})
			}
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			if gotLang != tt.want {
				t.Errorf("lang = %q, want %q", gotLang, tt.want)
			}
			if tt.want == "ru" && gotTitle != "Извлечение вопросов" {
				t.Errorf("title = %q", gotTitle)
			}
		})
	}
}
