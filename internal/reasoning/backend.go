// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reasoning is the client side of the structured reasoning provider
// used by the planner, the section runner, the evaluator, and the decision
// synthesizer. Callers describe the response shape they expect; the backend
// decodes the provider's answer into the caller's type and validates it.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchema is returned when a response cannot be decoded into the requested
// shape or fails its validation.
var ErrSchema = errors.New("reasoning: response does not match schema")

// Backend abstracts the reasoning provider so tests can supply a fake.
// Complete sends req and decodes the structured answer into out, which
// must be a pointer. When out implements Validator, Complete returns an
// ErrSchema-wrapped error for responses that fail validation.
type Backend interface {
	Complete(ctx context.Context, req Request, out any) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request, out any) error

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req Request, out any) error {
	return f(ctx, req, out)
}

// Request is one structured reasoning call.
type Request struct {
	// Task labels the call in logs (e.g. "plan", "section/budget", "decision").
	Task string

	// System is the system prompt.
	System string

	// Prompt is the user message.
	Prompt string

	// Schema is a JSON example of the expected response. It is appended to
	// the system prompt so the provider answers in that shape.
	Schema string

	// AllowWebSearch lets the provider consult external sources.
	AllowWebSearch bool
}

// Validator is implemented by response types that check their own invariants.
type Validator interface {
	Validate() error
}

// Decode extracts the JSON object from text, unmarshals it into out, and
// validates it when out implements Validator.
func Decode(text string, out any) error {
	raw := ExtractJSON(text)
	if raw == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrSchema)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSchema, err)
		}
	}
	return nil
}

// ExtractJSON returns the last top-level JSON object in text, dropping
// Markdown code fences. Braces in surrounding prose that do not open a
// valid object are skipped; with web search the answer follows the
// provider's narration, so the last object wins. It returns "" when text
// holds no object.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}

	last := ""
	for i := 0; i < len(trimmed); {
		start := strings.IndexByte(trimmed[i:], '{')
		if start < 0 {
			break
		}
		start += i

		dec := json.NewDecoder(strings.NewReader(trimmed[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			i = start + 1
			continue
		}
		end := start + int(dec.InputOffset())
		last = trimmed[start:end]
		i = end
	}
	return last
}
