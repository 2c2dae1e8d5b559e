package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// openaiCompat talks to any OpenAI-compatible chat endpoint through
// langchaingo.
type openaiCompat struct {
	llm         llms.Model
	temperature float64
}

func newOpenAI(cfg Config) (*openaiCompat, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(model),
		openai.WithHTTPClient(cfg.httpClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: creating client: %w", err)
	}
	return &openaiCompat{llm: llm, temperature: cfg.Temperature}, nil
}

// statusPattern pulls the transport status out of the client's error text,
// which carries no typed status.
var statusPattern = regexp.MustCompile(`unexpected status code: (\d{3})(?::\s*(.*))?`)

// Generate sends the prompt as a single user message. A schema is spelled out
// in the prompt. Array schemas are requested wrapped under "items", the shape
// OpenAI-compatible servers return most reliably.
func (o *openaiCompat) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt := req.Prompt
	opts := []llms.CallOption{}
	if o.temperature > 0 {
		opts = append(opts, llms.WithTemperature(o.temperature))
	}

	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("openai: marshaling schema: %w", err)
		}
		prompt += "\n\nRespond only with JSON matching this schema: " + string(schema)
		if req.Schema.Type == TypeArray {
			prompt += `. Wrap the array in an object under the key "items".`
		}
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, opts...)
	if err != nil {
		return nil, openaiError(err)
	}
	return &Response{Text: text}, nil
}

// openaiError turns a non-200 reply into *APIError so retry classification
// sees the status. Other failures are wrapped as they are.
func openaiError(err error) error {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("openai: %w", err)
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return fmt.Errorf("openai: %w", err)
	}
	msg := m[2]
	if msg == "" {
		msg = err.Error()
	}
	return &APIError{Provider: "openai", StatusCode: code, Message: msg}
}

var _ Generator = (*openaiCompat)(nil)
