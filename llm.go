package cogito

import (
	"context"
	"log/slog"
)

// LLMClient is a client for each LLM service.
type LLMClient interface {
	NewSession(ctx context.Context, options ...SessionOption) (Session, error)
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

// Session is a conversation with an LLM service. Sessions are not safe for
// concurrent use; callers create one session per logical exchange.
type Session interface {
	GenerateContent(ctx context.Context, input ...Input) (*Response, error)
}

// Response is a general response type from an LLM session.
type Response struct {
	Texts       []string
	InputToken  int
	OutputToken int
}

// Text returns the concatenation of all text parts of the response.
func (r *Response) Text() string {
	switch len(r.Texts) {
	case 0:
		return ""
	case 1:
		return r.Texts[0]
	}
	out := r.Texts[0]
	for _, t := range r.Texts[1:] {
		out += "\n" + t
	}
	return out
}

// Input is an input to an LLM session.
type Input interface {
	isInput() restrictedValue
	LogValue() slog.Value
	String() string
}

type restrictedValue struct{}

// Text is a text input as prompt.
// Usage:
//
//	input := cogito.Text("classify this query")
type Text string

func (t Text) isInput() restrictedValue {
	return restrictedValue{}
}

func (t Text) LogValue() slog.Value {
	return slog.StringValue(string(t))
}

func (t Text) String() string {
	return string(t)
}

// ContentType is the format the session asks the model to produce.
type ContentType string

const (
	ContentTypeText ContentType = "text"
	ContentTypeJSON ContentType = "application/json"
)

// SessionConfig holds the resolved configuration of a session. Provider
// adapters read it through the accessor methods.
type SessionConfig struct {
	contentType  ContentType
	systemPrompt string
}

// NewSessionConfig resolves session options into a SessionConfig.
func NewSessionConfig(options ...SessionOption) SessionConfig {
	cfg := SessionConfig{
		contentType: ContentTypeText,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	return cfg
}

func (c *SessionConfig) ContentType() ContentType { return c.contentType }
func (c *SessionConfig) SystemPrompt() string     { return c.systemPrompt }

// SessionOption configures a new session.
type SessionOption func(*SessionConfig)

// WithSessionContentType sets the content type of the session. When set to
// ContentTypeJSON, the adapter requests structured JSON output from the model.
func WithSessionContentType(contentType ContentType) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.contentType = contentType
	}
}

// WithSessionSystemPrompt sets the system prompt of the session.
func WithSessionSystemPrompt(prompt string) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.systemPrompt = prompt
	}
}
