// Package claude provides an LLM client adapter for the Anthropic API.
package claude

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
)

// Client is a client for the Claude API.
type Client struct {
	client       *anthropic.Client
	defaultModel anthropic.Model
	maxTokens    int64
	temperature  float64
}

type Option func(*Client)

// WithModel sets the model to use for chat completions.
// Default: anthropic.ModelClaude3_5SonnetLatest
func WithModel(model anthropic.Model) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temperature float64) Option {
	return func(c *Client) {
		c.temperature = temperature
	}
}

// New creates a new client for the Claude API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("API key is required")
	}

	client := &Client{
		defaultModel: anthropic.ModelClaude3_5SonnetLatest,
		maxTokens:    4096,
		temperature:  0.7,
	}
	for _, option := range options {
		option(client)
	}

	newClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.client = &newClient

	return client, nil
}

// Session is a chat session against the Claude API. It keeps the message
// history so successive GenerateContent calls share context.
type Session struct {
	client       *anthropic.Client
	defaultModel anthropic.Model
	maxTokens    int64
	temperature  float64
	cfg          cogito.SessionConfig
	messages     []anthropic.MessageParam
}

// NewSession creates a new chat session.
func (c *Client) NewSession(ctx context.Context, options ...cogito.SessionOption) (cogito.Session, error) {
	return &Session{
		client:       c.client,
		defaultModel: c.defaultModel,
		maxTokens:    c.maxTokens,
		temperature:  c.temperature,
		cfg:          cogito.NewSessionConfig(options...),
	}, nil
}

// createSystemPrompt builds the system blocks from the session config. A
// JSON content type adds an explicit response-format instruction because the
// Claude API has no native JSON response mode.
func createSystemPrompt(cfg cogito.SessionConfig) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if prompt := cfg.SystemPrompt(); prompt != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: prompt})
	}
	if cfg.ContentType() == cogito.ContentTypeJSON {
		blocks = append(blocks, anthropic.TextBlockParam{
			Text: "Respond only with a valid JSON object. Do not include any other text.",
		})
	}
	return blocks
}

// GenerateContent sends the inputs as user messages and returns the reply.
func (s *Session) GenerateContent(ctx context.Context, input ...cogito.Input) (*cogito.Response, error) {
	for _, in := range input {
		switch v := in.(type) {
		case cogito.Text:
			s.messages = append(s.messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(string(v)),
			))
		default:
			return nil, goerr.Wrap(cogito.ErrInvalidParameter, "invalid input type")
		}
	}

	params := anthropic.MessageNewParams{
		Model:       s.defaultModel,
		MaxTokens:   s.maxTokens,
		Temperature: anthropic.Float(s.temperature),
		System:      createSystemPrompt(s.cfg),
		Messages:    s.messages,
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message")
	}
	s.messages = append(s.messages, resp.ToParam())

	var texts []string
	for _, content := range resp.Content {
		textBlock := content.AsResponseTextBlock()
		if textBlock.Type == "text" {
			texts = append(texts, textBlock.Text)
		}
	}

	return &cogito.Response{
		Texts:       texts,
		InputToken:  int(resp.Usage.InputTokens),
		OutputToken: int(resp.Usage.OutputTokens),
	}, nil
}

// GenerateEmbedding is not supported by the Claude API.
func (c *Client) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, goerr.New("embedding generation is not supported by the Claude API")
}
