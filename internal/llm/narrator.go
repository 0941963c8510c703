// Narration: every narrative-producing engine call goes through a Narrator,
// which never fails: generator errors become deterministic fallback text.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrDisabled is returned by a client constructed without credentials.
var ErrDisabled = errors.New("LLM client not configured")

// Generator produces text from a system instruction and a user prompt.
// An empty model selects the backend's default.
type Generator interface {
	Generate(ctx context.Context, system, prompt, model string) (string, error)
}

// Narrator wraps a Generator with fallback text. A nil *Narrator, or one with a
// nil Generator, always returns the fallback.
type Narrator struct {
	gen   Generator
	model string
}

// NewNarrator returns a Narrator over gen using model for every call.
func NewNarrator(gen Generator, model string) *Narrator {
	return &Narrator{gen: gen, model: model}
}

// Enabled reports whether generated text is possible at all.
func (n *Narrator) Enabled() bool {
	return n != nil && n.gen != nil
}

// Text asks the generator for prose. On any failure it returns fallback, or the
// persona reply derived from the system message when fallback is empty.
func (n *Narrator) Text(ctx context.Context, system, prompt, fallback string) string {
	if fallback == "" {
		fallback = PersonaFallback(system, prompt)
	}
	if !n.Enabled() {
		return fallback
	}
	text, err := n.gen.Generate(ctx, system, prompt, n.model)
	if err != nil {
		slog.Debug("generation failed, using fallback", "error", err)
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	return text
}

// Generated reports whether text came from the generator rather than a fallback.
// Used by health checks.
func (n *Narrator) Generated(ctx context.Context) bool {
	if !n.Enabled() {
		return false
	}
	_, err := n.gen.Generate(ctx, "You are a test NPC in the Star Wars universe.", "Hello, can you hear me?", n.model)
	if err != nil {
		slog.Warn("text generation unavailable, using fallback responses", "error", err)
		return false
	}
	return true
}
