package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/internal/httpc"
)

const backendOpenAI = "openai"

// OpenAI talks to any /chat/completions endpoint.
type OpenAI struct {
	s      *settings
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI defaults to a llama.cpp server on 127.0.0.1:8081.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	s := newSettings("http://127.0.0.1:8081/v1", "local", opts)
	if s.model == "" {
		return nil, failed(backendOpenAI, ErrMissingModel)
	}
	return &OpenAI{
		s:      s,
		base:   strings.TrimSuffix(s.baseURL, "/"),
		http:   httpc.NewClient(s.timeout),
		logger: s.logger.With("component", "inference.openai"),
	}, nil
}

func (o *OpenAI) Name() string { return backendOpenAI }

type chatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) request(p *Prompt) chatRequest {
	req := chatRequest{Model: o.s.model, Stop: p.Stop}
	req.MaxTokens, req.Temperature = o.s.sampling(p)
	if p.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: roleSystem, Content: p.System})
	}
	for _, m := range p.Turns {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

// Complete posts the prompt, retrying 429 and 5xx answers.
func (o *OpenAI) Complete(ctx context.Context, p *Prompt) (*Completion, error) {
	start := time.Now()
	body, err := json.Marshal(o.request(p))
	if err != nil {
		return nil, failed(backendOpenAI, err)
	}

	resp, err := httpc.DoWithRetry(ctx, o.http, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		o.authorize(r)
		return r, nil
	}, o.s.retries, o.s.backoff)
	if err != nil {
		var se *httpc.StatusError
		if errors.As(err, &se) {
			return nil, decodeRefusal(se.StatusCode, strings.NewReader(se.Body))
		}
		return nil, failed(backendOpenAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeRefusal(resp.StatusCode, resp.Body)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, failed(backendOpenAI, fmt.Errorf("decode: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, failed(backendOpenAI, ErrEmptyCompletion)
	}

	c := &Completion{
		Text:         out.Choices[0].Message.Content,
		FinishReason: out.Choices[0].FinishReason,
		Tokens:       out.Usage.TotalTokens,
		Model:        out.Model,
		Latency:      time.Since(start),
	}
	o.logger.Debug("completion", "model", c.Model, "finish", c.FinishReason, "tokens", c.Tokens, "latency", c.Latency)
	return c, nil
}

// Health lists the models, which also validates the key.
func (o *OpenAI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+"/models", nil)
	if err != nil {
		return failed(backendOpenAI, err)
	}
	o.authorize(req)
	resp, err := o.http.Do(req)
	if err != nil {
		return failed(backendOpenAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeRefusal(resp.StatusCode, resp.Body)
	}
	return nil
}

func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

func (o *OpenAI) authorize(r *http.Request) {
	if o.s.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+o.s.apiKey)
	}
}

// decodeRefusal reads {"error": {"message", "code"}} bodies; anything else
// is reported verbatim.
func decodeRefusal(status int, r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, 8<<10))
	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		return refused(backendOpenAI, status, body.Error.Code, body.Error.Message)
	}
	return refused(backendOpenAI, status, "", strings.TrimSpace(string(raw)))
}

var _ Provider = (*OpenAI)(nil)
