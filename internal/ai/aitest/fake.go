// Package aitest provides in-memory generative clients for tests.
package aitest

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Call records one request made to a Fake.
type Call struct {
	Prompt          string
	MaxOutputTokens int32
	Temperature     float32
	Structured      bool
}

// Fake is a scripted generative client. Respond decides each answer; when it
// is nil the fake echoes a fixed reply. Safe for concurrent use.
type Fake struct {
	Respond           func(prompt string) (string, error)
	RespondStructured func(prompt string, schema *genai.Schema) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Reply is returned by a Fake with no Respond func.
const Reply = "simulated answer"

// NewFake returns a fake answering every prompt with respond.
func NewFake(respond func(prompt string) (string, error)) *Fake {
	return &Fake{Respond: respond}
}

// Fixed returns a fake that always answers text.
func Fixed(text string) *Fake {
	return NewFake(func(string) (string, error) { return text, nil })
}

// Failing returns a fake whose every call fails with err.
func Failing(err error) *Fake {
	return NewFake(func(string) (string, error) { return "", err })
}

func (f *Fake) Generate(ctx context.Context, prompt string, maxOutputTokens int32, temperature float32) (string, error) {
	f.record(Call{Prompt: prompt, MaxOutputTokens: maxOutputTokens, Temperature: temperature})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Respond == nil {
		return Reply, nil
	}
	return f.Respond(prompt)
}

// GenerateStructured uses RespondStructured, falling back to Respond.
func (f *Fake) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema, maxOutputTokens int32, temperature float32) (string, error) {
	f.record(Call{Prompt: prompt, MaxOutputTokens: maxOutputTokens, Temperature: temperature, Structured: true})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.RespondStructured != nil {
		return f.RespondStructured(prompt, schema)
	}
	if f.Respond == nil {
		return Reply, nil
	}
	return f.Respond(prompt)
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns a copy of the recorded calls in arrival order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns the number of recorded calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// PlainClient exposes only Generate, for code paths without structured output.
type PlainClient struct {
	fake *Fake
}

// Plain wraps f so it only satisfies the plain Client interface.
func Plain(f *Fake) PlainClient {
	return PlainClient{fake: f}
}

func (p PlainClient) Generate(ctx context.Context, prompt string, maxOutputTokens int32, temperature float32) (string, error) {
	return p.fake.Generate(ctx, prompt, maxOutputTokens, temperature)
}

// Contains reports whether any recorded prompt contains s.
func (f *Fake) Contains(s string) bool {
	for _, c := range f.Calls() {
		if strings.Contains(c.Prompt, s) {
			return true
		}
	}
	return false
}
