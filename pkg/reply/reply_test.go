package reply

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-robo/pkg/inference"
)

var fixedNow = time.Date(2024, 3, 7, 15, 10, 0, 0, time.Local)

func TestTemplateRender(t *testing.T) {
	tmpl := Template("{0}{4} hoe laat? {1}{4} {2} in {3}")
	assert.Equal(t, "Anna: hoe laat? Robo: 15:10 in 2024", tmpl.Render("Anna", "Robo", fixedNow))
}

func TestTemplateRender_Pure(t *testing.T) {
	tmpl := Template(DefaultPrompt)
	a := tmpl.Render("Anna", "Robo", fixedNow)
	b := tmpl.Render("Anna", "Robo", fixedNow)
	assert.Equal(t, a, b)
	assert.NotContains(t, a, "{")
}

func TestDefaultPrompt(t *testing.T) {
	out := Template(DefaultPrompt).Render("Anna", "Robo", fixedNow)
	assert.Contains(t, out, "Robo: Het is 15:10 uur.")
	assert.Contains(t, out, "We zijn in het jaar 2024.")
	assert.True(t, strings.HasSuffix(out, "Anna:"))
}

func TestSystemPrompt_DropsOpenTurn(t *testing.T) {
	sys := Template(DefaultPrompt).SystemPrompt("Anna", "Robo", fixedNow)
	assert.True(t, strings.HasSuffix(sys, "Robo: Blauw"), "got tail %q", sys[len(sys)-20:])
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  Het is drie uur.  ", "Het is drie uur."},
		{"bot prefix", "Robo: Het is drie uur.", "Het is drie uur."},
		{"cut at person", "Het is drie uur.\nAnna: En morgen?\nRobo: Ook.", "Het is drie uur."},
		{"cut indented person", "Ja.\n  Anna: nee", "Ja."},
		{"only person line", "Anna: hallo", ""},
		{"multi-line kept", "Eerste.\nTweede.", "Eerste.\nTweede."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw, "Anna", "Robo"))
		})
	}
}

func TestLLM_Generate(t *testing.T) {
	provider := inference.NewFake("Robo: Het is 15:10 uur.\nAnna: Dank je")
	g, err := NewLLM(provider, DefaultConfig(), fixedNow, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "  what time is it ")
	require.NoError(t, err)
	assert.Equal(t, "Het is 15:10 uur.", out)

	p := provider.Last()
	require.NotNil(t, p)
	assert.Equal(t, g.SystemPrompt(), p.System)
	require.Len(t, p.Turns, 1)
	assert.Equal(t, inference.RoleUser, p.Turns[0].Role)
	assert.Equal(t, "what time is it", p.Turns[0].Content)
	assert.Equal(t, []string{"\nAnna:"}, p.Stop)
}

func TestLLM_HistoryBounded(t *testing.T) {
	provider := inference.NewFake("ok")
	cfg := DefaultConfig()
	cfg.HistoryTurns = 2
	g, err := NewLLM(provider, cfg, fixedNow, nil)
	require.NoError(t, err)

	for _, q := range []string{"een", "twee", "drie"} {
		_, err := g.Generate(context.Background(), q)
		require.NoError(t, err)
	}

	hist := g.History()
	require.Len(t, hist, 4)
	assert.Equal(t, "twee", hist[0].Content)
	assert.Equal(t, "drie", hist[2].Content)

	_, err = g.Generate(context.Background(), "vier")
	require.NoError(t, err)
	assert.Len(t, provider.Last().Turns, 5)

	g.Reset()
	assert.Empty(t, g.History())
}

func TestLLM_NoHistory(t *testing.T) {
	provider := inference.NewFake("ok")
	cfg := DefaultConfig()
	cfg.HistoryTurns = 0
	g, _ := NewLLM(provider, cfg, fixedNow, nil)

	g.Generate(context.Background(), "een")
	g.Generate(context.Background(), "twee")
	assert.Empty(t, g.History())
	assert.Len(t, provider.Last().Turns, 1)
}

func TestLLM_EmptyReplyNotRemembered(t *testing.T) {
	g, _ := NewLLM(inference.NewFake("Anna: hm"), DefaultConfig(), fixedNow, nil)
	out, err := g.Generate(context.Background(), "hallo")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, g.History())
}

func TestLLM_ProviderError(t *testing.T) {
	boom := errors.New("server down")
	g, _ := NewLLM(inference.FailingFake(boom), DefaultConfig(), fixedNow, nil)

	_, err := g.Generate(context.Background(), "hallo")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, g.History())
}

func TestNewLLM_RequiresProvider(t *testing.T) {
	_, err := NewLLM(nil, DefaultConfig(), fixedNow, nil)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestMock(t *testing.T) {
	m := NewMock("antwoord")
	out, err := m.Generate(context.Background(), "vraag")
	require.NoError(t, err)
	assert.Equal(t, "antwoord", out)
	assert.Equal(t, []string{"vraag"}, m.Inputs())
	assert.Equal(t, 1, m.CallCount())

	echo := &Mock{}
	out, _ = echo.Generate(context.Background(), "echo")
	assert.Equal(t, "echo", out)
}
