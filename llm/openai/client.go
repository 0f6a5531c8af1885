// Package openai provides an LLM client adapter for the OpenAI API.
package openai

import (
	"context"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// Client is a client for the OpenAI API.
type Client struct {
	client         *openai.Client
	defaultModel   string
	embeddingModel string
}

type Option func(*Client)

// WithModel sets the model to use for chat completions.
// Default: gpt-4o
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithEmbeddingModel sets the model to use for embeddings.
// Default: text-embedding-3-small
func WithEmbeddingModel(modelName string) Option {
	return func(c *Client) {
		c.embeddingModel = modelName
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("API key is required")
	}

	client := &Client{
		defaultModel:   "gpt-4o",
		embeddingModel: "text-embedding-3-small",
	}
	for _, option := range options {
		option(client)
	}

	client.client = openai.NewClient(apiKey)
	return client, nil
}

// Session is a chat session against the OpenAI API. It keeps the message
// history so successive GenerateContent calls share context.
type Session struct {
	client       *openai.Client
	defaultModel string
	cfg          cogito.SessionConfig
	messages     []openai.ChatCompletionMessage
}

// NewSession creates a new chat session.
func (c *Client) NewSession(ctx context.Context, options ...cogito.SessionOption) (cogito.Session, error) {
	cfg := cogito.NewSessionConfig(options...)

	session := &Session{
		client:       c.client,
		defaultModel: c.defaultModel,
		cfg:          cfg,
	}
	if prompt := cfg.SystemPrompt(); prompt != "" {
		session.messages = append(session.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		})
	}
	return session, nil
}

// GenerateContent sends the inputs as user messages and returns the reply.
func (s *Session) GenerateContent(ctx context.Context, input ...cogito.Input) (*cogito.Response, error) {
	for _, in := range input {
		switch v := in.(type) {
		case cogito.Text:
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: string(v),
			})
		default:
			return nil, goerr.Wrap(cogito.ErrInvalidParameter, "invalid input type")
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    s.defaultModel,
		Messages: s.messages,
	}
	if s.cfg.ContentType() == cogito.ContentTypeJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, goerr.New("no response choices returned")
	}

	reply := resp.Choices[0].Message
	s.messages = append(s.messages, reply)

	return &cogito.Response{
		Texts:       []string{reply.Content},
		InputToken:  resp.Usage.PromptTokens,
		OutputToken: resp.Usage.CompletionTokens,
	}, nil
}
