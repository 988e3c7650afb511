package presets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	ps := Default()
	if len(ps) == 0 {
		t.Fatal("expected built-in presets")
	}
	jee, ok := Find(ps, "jee-main")
	if !ok {
		t.Fatal("jee-main preset missing")
	}
	mcq, ok := jee.Types["MCQ"]
	if !ok {
		t.Fatal("jee-main has no MCQ")
	}
	if *mcq.CorrectMarks != 4 || *mcq.IncorrectMarks != -1 || *mcq.SkippedMarks != 0 {
		t.Errorf("unexpected MCQ config %+v", mcq)
	}
	if p, ok := Find(ps, " JEE-Main "); !ok || p.Name != "jee-main" {
		t.Errorf("Find should ignore case and space, got %q, %v", p.Name, ok)
	}
	if _, ok := Find(ps, "nope"); ok {
		t.Error("Find should miss unknown names")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: `
presets:
  - name: quiz
    types:
      MCQ: {correctMarks: 1, incorrectMarks: 0, skippedMarks: 0, partialMarks: 0, timeMinutes: 1}
`,
		},
		{
			name: "missing field",
			yaml: `
presets:
  - name: quiz
    types:
      MCQ: {correctMarks: 1, incorrectMarks: 0, skippedMarks: 0, partialMarks: 0}
`,
			wantErr: "missing fields",
		},
		{
			name: "duplicate",
			yaml: `
presets:
  - name: quiz
    types:
      MCQ: {correctMarks: 1, incorrectMarks: 0, skippedMarks: 0, partialMarks: 0, timeMinutes: 1}
  - name: quiz
    types:
      MCQ: {correctMarks: 1, incorrectMarks: 0, skippedMarks: 0, partialMarks: 0, timeMinutes: 1}
`,
			wantErr: "duplicate",
		},
		{
			name:    "no types",
			yaml:    "presets:\n  - name: empty\n",
			wantErr: "no question types",
		},
		{
			name:    "no name",
			yaml:    "presets:\n  - title: Nameless\n",
			wantErr: "name is required",
		},
		{
			name:    "bad yaml",
			yaml:    "presets: [",
			wantErr: "yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(ps) != 1 || ps[0].Title != "quiz" {
				t.Errorf("unexpected presets %+v", ps)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	ps, err := Load("")
	if err != nil || len(ps) != len(Default()) {
		t.Fatalf("Load(\"\") = %d presets, %v", len(ps), err)
	}

	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := "presets:\n  - name: x\n    types:\n      NAT: {correctMarks: 2, incorrectMarks: 0, skippedMarks: 0, partialMarks: 0, timeMinutes: 2}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ps, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ps) != 1 || ps[0].Name != "x" {
		t.Errorf("unexpected presets %+v", ps)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
