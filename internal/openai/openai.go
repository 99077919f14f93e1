// Package openai talks to any OpenAI-compatible chat completions endpoint,
// including DeepSeek-style deployments, via a configurable base URL.
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"glimpse/describer"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openai struct {
	oac   *oagc.Client
	model string
}

var (
	_ describer.Describer = &openai{}

	rl *rateLimiter // For requests to the chat completions API
)

// Options configure the provider. BaseURL may be empty for the default
// OpenAI endpoint.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

func Init(opts Options, httpClient *http.Client) *openai {
	rl = newRateLimiter(20, time.Minute)

	clientOpts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &openai{
		oac:   oagc.NewClient(clientOpts...),
		model: opts.Model,
	}
}

func (o *openai) Name() string { return "openai" }

func (o *openai) Model() string { return o.model }

func (o *openai) IsHealthy() bool {
	// The completions endpoint has no cheap health check; rely on request
	// errors instead.
	return true
}

func (o *openai) Describe(ctx context.Context, req describer.Request) (string, error) {
	// Rate limit use of the API
	if err := rl.Acquire(ctx); err != nil {
		return "", err
	}

	msgs := make([]oagc.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	msgs = append(msgs, oagc.SystemMessage(describer.SystemPrompt))
	for _, turn := range req.History {
		if turn.Role == describer.RoleAssistant {
			msgs = append(msgs, oagc.AssistantMessage(turn.Content))
		} else {
			msgs = append(msgs, oagc.UserMessage(turn.Content))
		}
	}
	if req.ImageDataURI != "" {
		msgs = append(msgs, oagc.UserMessageParts(
			oagc.TextPart(req.Prompt),
			oagc.ImagePart(req.ImageDataURI),
		))
	} else {
		msgs = append(msgs, oagc.UserMessage(req.Prompt))
	}

	resp, err := o.oac.Chat.Completions.New(ctx, oagc.ChatCompletionNewParams{
		Model:       oagc.F(oagc.ChatModel(o.model)),
		Messages:    oagc.F(msgs),
		MaxTokens:   oagc.Int(describer.MaxTokens),
		Temperature: oagc.Float(describer.Temperature),
	})
	if err != nil {
		return "", translateErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", &describer.ProviderError{Message: "response contained no choices"}
	}

	return resp.Choices[0].Message.Content, nil
}

func (o *openai) ProbeVision(ctx context.Context) error {
	if err := rl.Acquire(ctx); err != nil {
		return err
	}

	_, err := o.oac.Chat.Completions.New(ctx, oagc.ChatCompletionNewParams{
		Model: oagc.F(oagc.ChatModel(o.model)),
		Messages: oagc.F([]oagc.ChatCompletionMessageParamUnion{
			oagc.UserMessageParts(
				oagc.TextPart("Test"),
				oagc.ImagePart(describer.ProbeImageDataURI),
			),
		}),
		MaxTokens: oagc.Int(1),
	})
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func translateErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apierr *oagc.Error
	if errors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = apierr.Error()
		}
		return &describer.ProviderError{StatusCode: apierr.StatusCode, Message: msg}
	}
	return &describer.ProviderError{Message: err.Error()}
}
