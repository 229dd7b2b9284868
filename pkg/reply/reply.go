// Package reply generates the robot's spoken answer to a transcript.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-robo/pkg/inference"
)

// Generator produces a reply for a transcript.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// ErrNoProvider is returned when an LLM generator has no inference provider.
var ErrNoProvider = errors.New("reply: inference provider required")

// Config configures an LLM generator.
type Config struct {
	// PersonName is how the user is addressed and the transcript prefix the
	// reply is cut at.
	PersonName string `yaml:"person_name"`

	// BotName is the robot's name.
	BotName string `yaml:"bot_name"`

	// Prompt is the template; empty uses DefaultPrompt.
	Prompt string `yaml:"prompt"`

	// HistoryTurns is how many past exchanges are sent with each request.
	HistoryTurns int `yaml:"history_turns"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultConfig returns the default persona.
func DefaultConfig() Config {
	return Config{
		PersonName:   "Anna",
		BotName:      "Robo",
		HistoryTurns: 6,
		MaxTokens:    128,
		Temperature:  0.6,
	}
}

// LLM generates replies through an inference.Provider, keeping a bounded
// rolling history of the conversation.
type LLM struct {
	provider inference.Provider
	cfg      Config
	system   string
	logger   *slog.Logger

	mu      sync.Mutex
	history []inference.Message
}

// NewLLM creates a generator. The prompt is rendered once, with now as the
// clock for the time and year placeholders.
func NewLLM(provider inference.Provider, cfg Config, now time.Time, logger *slog.Logger) (*LLM, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	def := DefaultConfig()
	if cfg.PersonName == "" {
		cfg.PersonName = def.PersonName
	}
	if cfg.BotName == "" {
		cfg.BotName = def.BotName
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LLM{
		provider: provider,
		cfg:      cfg,
		system:   Template(cfg.Prompt).SystemPrompt(cfg.PersonName, cfg.BotName, now),
		logger:   logger.With("component", "reply.llm"),
	}, nil
}

// SystemPrompt returns the rendered prompt.
func (g *LLM) SystemPrompt() string {
	return g.system
}

// Generate sends the transcript with the recent history and returns the
// cleaned reply. Provider errors are returned wrapped; an empty completion
// is ("", nil).
func (g *LLM) Generate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)

	g.mu.Lock()
	turns := make([]inference.Message, 0, len(g.history)+1)
	turns = append(turns, g.history...)
	g.mu.Unlock()
	turns = append(turns, inference.User(text))

	c, err := g.provider.Complete(ctx, &inference.Prompt{
		System:      g.system,
		Turns:       turns,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Stop:        []string{"\n" + g.cfg.PersonName + Separator},
	})
	if err != nil {
		return "", fmt.Errorf("reply: generate: %w", err)
	}

	out := Clean(c.Text, g.cfg.PersonName, g.cfg.BotName)
	g.logger.Debug("reply generated",
		"chars", len(out),
		"finish_reason", c.FinishReason,
		"latency", c.Latency,
	)

	if out != "" {
		g.remember(text, out)
	}
	return out, nil
}

func (g *LLM) remember(user, assistant string) {
	if g.cfg.HistoryTurns == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append(g.history,
		inference.User(user),
		inference.Assistant(assistant),
	)
	if limit := g.cfg.HistoryTurns * 2; len(g.history) > limit {
		g.history = append([]inference.Message(nil), g.history[len(g.history)-limit:]...)
	}
}

// History returns a copy of the remembered exchanges.
func (g *LLM) History() []inference.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]inference.Message, len(g.history))
	copy(out, g.history)
	return out
}

// Reset forgets the conversation.
func (g *LLM) Reset() {
	g.mu.Lock()
	g.history = nil
	g.mu.Unlock()
}

// Verify interface compliance.
var (
	_ Generator = (*LLM)(nil)
	_ Generator = (*Mock)(nil)
)
