package llm

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/pavelanni/qextractor/internal/llm/prompts"
)

//go:embed schema.json
var responseSchema []byte

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(responseSchema))
	})
	return compiledSchema, compileErr
}

// ErrInvalidResponse is returned when the model's JSON does not match the
// expected shape.
var ErrInvalidResponse = errors.New("invalid LLM response")

// ExtractedQuestion is one question as returned by the model, before scoring
// rules are applied.
type ExtractedQuestion struct {
	QuestionType      string   `json:"question_type"`
	QuestionStatement string   `json:"question_statement"`
	Options           []string `json:"options"`
	Answer            *string  `json:"answer"`
	Solution          *string  `json:"solution"`
}

type extractResponse struct {
	Questions []ExtractedQuestion `json:"questions"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client using the standard prompt variant.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptStandard,
	}
}

// SetVariant selects the prompt variant.
func (c *Client) SetVariant(v prompts.PromptVariant) {
	c.variant = v
}

// ExtractQuestions asks the model to find questions of the given types in the
// paper text.
func (c *Client) ExtractQuestions(ctx context.Context, data prompts.ExtractData) ([]ExtractedQuestion, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, err
	}
	prompt, err := prompts.BuildExtractPrompt(c.variant, data)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	return parseResponse(raw)
}

func parseResponse(raw string) ([]ExtractedQuestion, error) {
	raw = stripCodeFence(raw)

	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling response schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %s)", ErrInvalidResponse, err, raw)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(errs, "; "))
	}

	var out extractResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	for i := range out.Questions {
		q := &out.Questions[i]
		q.QuestionType = strings.TrimSpace(q.QuestionType)
		q.QuestionStatement = strings.TrimSpace(q.QuestionStatement)
		q.Answer = blankToNil(q.Answer)
		q.Solution = blankToNil(q.Solution)
	}
	return out.Questions, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
