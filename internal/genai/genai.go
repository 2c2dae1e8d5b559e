// Package genai abstracts the remote generative-text service behind a small
// Generator interface and builds provider-specific implementations from
// configuration.
package genai

import (
	"context"
	"errors"
)

var (
	// ErrDisabled is returned by the disabled provider on every call.
	ErrDisabled = errors.New("remote generation disabled")

	// ErrUnknownProvider is returned by New for an unrecognised provider.
	ErrUnknownProvider = errors.New("unknown generation provider")

	// ErrMissingAPIKey is returned when a remote provider has no credential.
	ErrMissingAPIKey = errors.New("api key is required")
)

// Request is a single prompt submission.
type Request struct {
	Prompt string

	// Schema, when set, asks the provider for JSON output of this shape.
	Schema *Schema
}

// Response holds the generated text. Text may be empty.
type Response struct {
	Text string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Source hands out the Generator to use for a user at call time. It is the
// only way the matching service obtains a client; nothing reads credentials
// from the process environment behind its back.
type Source interface {
	Generator(ctx context.Context, userID string) (Generator, error)
}

// StaticSource returns the same Generator for every user.
type StaticSource struct {
	G Generator
}

func (s StaticSource) Generator(context.Context, string) (Generator, error) {
	if s.G == nil {
		return nil, ErrDisabled
	}
	return s.G, nil
}

// SchemaType names a JSON schema type in the OpenAPI subset Gemini accepts.
type SchemaType string

const (
	TypeString  SchemaType = "STRING"
	TypeNumber  SchemaType = "NUMBER"
	TypeInteger SchemaType = "INTEGER"
	TypeBoolean SchemaType = "BOOLEAN"
	TypeArray   SchemaType = "ARRAY"
	TypeObject  SchemaType = "OBJECT"
)

// Schema constrains structured output.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

var (
	_ Generator = GeneratorFunc(nil)
	_ Source    = StaticSource{}
)
