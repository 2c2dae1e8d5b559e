package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const (
	providerGemini = "gemini"

	// maxResponseBytes bounds how much of a reply is read.
	maxResponseBytes = 1 << 20
)

// gemini calls the generateContent endpoint of the Generative Language API.
type gemini struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func newGemini(cfg Config) (*gemini, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	g := &gemini{
		model:       cfg.Model,
		apiKey:      cfg.APIKey.Value(),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		httpClient:  cfg.httpClient(),
	}
	if g.model == "" {
		g.model = defaultGeminiModel
	}
	if g.baseURL == "" {
		g.baseURL = defaultGeminiURL
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate submits req and returns the concatenated text of the first
// candidate. A reply with no candidates yields empty text.
func (g *gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gemini: rate limiter: %w", err)
		}
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
	}
	genCfg := &geminiGenerationConfig{}
	if g.temperature > 0 {
		t := g.temperature
		genCfg.Temperature = &t
	}
	if req.Schema != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = req.Schema
	}
	if genCfg.Temperature != nil || genCfg.ResponseMIMEType != "" {
		body.GenerationConfig = genCfg
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			Provider:   providerGemini,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
		var errBody geminiErrorBody
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error.Message != "" {
			apiErr.Code = errBody.Error.Code
			apiErr.Status = errBody.Error.Status
			apiErr.Message = errBody.Error.Message
		}
		return nil, apiErr
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("gemini: decoding response: %w", err)
	}

	if len(parsed.Candidates) == 0 {
		return &Response{}, nil
	}
	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return &Response{Text: sb.String()}, nil
}

var _ Generator = (*gemini)(nil)
