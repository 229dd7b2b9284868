package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const backendGemini = "gemini"

// Gemini completes through the Google Gen AI SDK.
type Gemini struct {
	s      *settings
	client *genai.Client
	logger *slog.Logger
}

// NewGemini needs an API key. WithBaseURL replaces the API endpoint.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	s := newSettings("", "gemini-2.0-flash", opts)
	if s.apiKey == "" {
		return nil, failed(backendGemini, ErrMissingKey)
	}
	if s.model == "" {
		return nil, failed(backendGemini, ErrMissingModel)
	}

	cc := &genai.ClientConfig{APIKey: s.apiKey, Backend: genai.BackendGeminiAPI}
	cc.HTTPOptions.BaseURL = s.baseURL
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, failed(backendGemini, fmt.Errorf("client: %w", err))
	}
	return &Gemini{s: s, client: client, logger: s.logger.With("component", "inference.gemini")}, nil
}

func (g *Gemini) Name() string { return backendGemini }

// Complete sends the system prompt as the system instruction. Robot lines
// use the "model" role.
func (g *Gemini) Complete(ctx context.Context, p *Prompt) (*Completion, error) {
	start := time.Now()

	contents := make([]*genai.Content, 0, len(p.Turns))
	for _, m := range p.Turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	maxTokens, temperature := g.s.sampling(p)
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
		StopSequences:   p.Stop,
	}
	if p.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.s.model, contents, gc)
	if err != nil {
		return nil, geminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return nil, failed(backendGemini, ErrEmptyCompletion)
	}

	c := &Completion{Text: text, Model: g.s.model, Latency: time.Since(start)}
	if len(resp.Candidates) > 0 {
		c.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		c.Tokens = int(u.TotalTokenCount)
	}
	g.logger.Debug("completion", "model", c.Model, "finish", c.FinishReason, "latency", c.Latency)
	return c, nil
}

// Health only checks that a client exists; the SDK has no cheap ping.
func (g *Gemini) Health(ctx context.Context) error {
	if g.client == nil {
		return failed(backendGemini, ErrNoBackends)
	}
	return nil
}

func (g *Gemini) Close() error { return nil }

func geminiError(err error) error {
	var byValue genai.APIError
	if errors.As(err, &byValue) {
		return refused(backendGemini, byValue.Code, byValue.Status, byValue.Message)
	}
	var byRef *genai.APIError
	if errors.As(err, &byRef) {
		return refused(backendGemini, byRef.Code, byRef.Status, byRef.Message)
	}
	return failed(backendGemini, err)
}

var _ Provider = (*Gemini)(nil)
