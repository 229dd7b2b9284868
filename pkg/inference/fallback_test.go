package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackUsesNextBackend(t *testing.T) {
	down := FailingFake(errors.New("connection refused"))
	up := NewFake("Goedemiddag!")
	f, err := NewFallback(nil, down, up)
	require.NoError(t, err)

	c, err := f.Complete(context.Background(), ask("hoi"))
	require.NoError(t, err)
	assert.Equal(t, "Goedemiddag!", c.Text)
	assert.Len(t, down.Prompts(), 1)
	assert.Len(t, up.Prompts(), 1)
}

func TestFallbackExhausted(t *testing.T) {
	first := errors.New("first down")
	second := errors.New("second down")
	f, _ := NewFallback(nil, FailingFake(first), FailingFake(second))

	_, err := f.Complete(context.Background(), ask("hoi"))
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestFallbackStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &Fake{Before: func(context.Context, *Prompt) { cancel() }}
	second := NewFake("too late")
	f, _ := NewFallback(nil, first, second)

	_, err := f.Complete(ctx, ask("hoi"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, second.Prompts())
}

func TestFallbackNeedsBackends(t *testing.T) {
	_, err := NewFallback(nil)
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestFallbackHealthAndName(t *testing.T) {
	down := &Fake{Label: "openai", Err: errors.New("down")}
	up := &Fake{Label: "gemini", Replies: []string{"ok"}}

	f, _ := NewFallback(nil, down, up)
	assert.Equal(t, "openai>gemini", f.Name())
	assert.NoError(t, f.Health(context.Background()))

	f, _ = NewFallback(nil, down)
	assert.ErrorIs(t, f.Health(context.Background()), ErrExhausted)
}

func TestFakeRepeatsLastReply(t *testing.T) {
	f := NewFake("een", "twee")
	for _, want := range []string{"een", "twee", "twee"} {
		c, err := f.Complete(context.Background(), ask("?"))
		require.NoError(t, err)
		assert.Equal(t, want, c.Text)
	}

	p := ask("origineel")
	f.Complete(context.Background(), p)
	p.Turns[0].Content = "gewijzigd"
	assert.Equal(t, "origineel", f.Last().Turns[0].Content)
}

func TestBackendErrorFormat(t *testing.T) {
	assert.Nil(t, failed("x", nil))
	base := errors.New("boom")
	err := failed("openai", base)
	assert.ErrorIs(t, err, base)
	assert.EqualError(t, err, "openai: boom")
	assert.EqualError(t, refused("gemini", 503, "", "overloaded"), "gemini: status 503: overloaded")
}
