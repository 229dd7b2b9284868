package inference

import (
	"context"
	"sync"
)

// Fake is a scripted Provider for tests. Replies are handed out in order
// and the last one repeats. A non-nil Err fails every call.
type Fake struct {
	Label   string
	Replies []string
	Err     error
	// Before runs at the start of Complete.
	Before func(ctx context.Context, p *Prompt)

	mu      sync.Mutex
	prompts []Prompt
}

// NewFake answers with replies.
func NewFake(replies ...string) *Fake { return &Fake{Replies: replies} }

// FailingFake fails every call with err.
func FailingFake(err error) *Fake { return &Fake{Err: err} }

func (f *Fake) Name() string {
	if f.Label != "" {
		return f.Label
	}
	return "fake"
}

func (f *Fake) Complete(ctx context.Context, p *Prompt) (*Completion, error) {
	if f.Before != nil {
		f.Before(ctx, p)
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, p.clone())
	n := len(f.prompts)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Replies) == 0 {
		return nil, failed(f.Name(), ErrEmptyCompletion)
	}
	text := f.Replies[min(n, len(f.Replies))-1]
	return &Completion{Text: text, FinishReason: "stop", Model: f.Name()}, nil
}

func (f *Fake) Health(context.Context) error { return f.Err }

func (f *Fake) Close() error { return nil }

// Prompts returns copies of every prompt received.
func (f *Fake) Prompts() []Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Prompt(nil), f.prompts...)
}

// Last returns the most recent prompt, or nil.
func (f *Fake) Last() *Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	p := f.prompts[len(f.prompts)-1]
	return &p
}

var _ Provider = (*Fake)(nil)
