// Package inference asks a language model for the next line of a
// conversation.
//
// OpenAI speaks the chat completions wire format, which covers a local
// llama.cpp server, Ollama and vLLM as well as the hosted API. Gemini goes
// through the Gen AI SDK. Fallback tries backends in order.
//
//	llm, _ := inference.NewOpenAI(
//	    inference.WithBaseURL("http://127.0.0.1:8081/v1"),
//	    inference.WithModel("llama-3.2-3b-instruct"),
//	)
//	c, _ := llm.Complete(ctx, &inference.Prompt{
//	    System: systemPrompt,
//	    Turns:  []inference.Message{inference.User("Hoe laat is het?")},
//	})
package inference

import (
	"context"
	"time"
)

// Provider is a language model backend.
type Provider interface {
	Complete(ctx context.Context, p *Prompt) (*Completion, error)
	Name() string
	// Health checks that the backend is reachable and accepts the key.
	Health(ctx context.Context) error
	Close() error
}

// Prompt is one completion request. Zero sampling fields fall back to the
// provider defaults.
type Prompt struct {
	System string
	Turns  []Message

	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Completion is the model's answer.
type Completion struct {
	Text         string
	FinishReason string
	// Tokens is the total billed for the exchange, 0 if not reported.
	Tokens  int
	Model   string
	Latency time.Duration
}

// Role is who said a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	roleSystem Role = "system"
)

// Message is one line of the conversation.
type Message struct {
	Role    Role
	Content string
}

// User is a line spoken by the person.
func User(text string) Message { return Message{Role: RoleUser, Content: text} }

// Assistant is a line spoken by the robot.
func Assistant(text string) Message { return Message{Role: RoleAssistant, Content: text} }

func (p *Prompt) clone() Prompt {
	out := *p
	out.Turns = append([]Message(nil), p.Turns...)
	out.Stop = append([]string(nil), p.Stop...)
	return out
}
