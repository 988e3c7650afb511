package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Templates embed.FS

// MaxDocumentRunes bounds the paper text sent in one prompt.
const MaxDocumentRunes = 60000

var documentTagRegex = regexp.MustCompile(`(?i)</?\s*document\b[^>]*>`)

// PromptVariant represents an extraction prompt variant.
type PromptVariant string

const (
	// PromptStandard labels every question with the closest configured type.
	PromptStandard PromptVariant = "standard"
	// PromptStrict skips questions whose type is not configured.
	PromptStrict PromptVariant = "strict"
)

var validVariants = map[PromptVariant]bool{
	PromptStandard: true,
	PromptStrict:   true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	extractTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// ExtractData holds template data for extraction prompts.
type ExtractData struct {
	Types []string
	Slot  string
	Part  string
	Year  int
	Text  string
}

// Load loads prompt templates from fsys. Only the first call has an effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		extractTemplates = make(map[PromptVariant]*template.Template)

		for _, v := range []PromptVariant{PromptStandard, PromptStrict} {
			file := "templates/extract_" + string(v) + ".txt"

			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}

			tmpl, err := template.New("extract").Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			extractTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildExtractPrompt builds an extraction prompt using the specified variant.
func BuildExtractPrompt(variant PromptVariant, data ExtractData) (string, error) {
	if extractTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := extractTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	if len(data.Types) == 0 {
		return "", errors.New("no question types")
	}

	data.Text = sanitizeDocument(data.Text)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeDocument(text string) string {
	text = documentTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[Empty document]"
	}

	if utf8.RuneCountInString(text) > MaxDocumentRunes {
		runes := []rune(text)
		text = string(runes[:MaxDocumentRunes]) + "\n\n[Document truncated due to length]"
	}
	return text
}
