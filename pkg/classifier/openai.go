package classifier

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// OpenAIClassifier asks an OpenAI-compatible chat-completions endpoint
// (Ollama serves one under /v1) and returns the first choice's content.
type OpenAIClassifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  customlog.Logger
}

// NewOpenAIClassifier creates a client for baseURL. Ollama ignores the API
// key, but the client requires one, so a placeholder is used when empty.
func NewOpenAIClassifier(baseURL, apiKey, model string, timeout time.Duration, logger customlog.Logger, opts ...option.RequestOption) *OpenAIClassifier {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	if apiKey == "" {
		apiKey = "ollama"
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIClassifier{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Classify sends text as a single user message.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", failure("chat completion with model %s: %v", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", failure("chat completion with model %s returned no choices", c.model)
	}

	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debugf("Model %s answered %q", c.model, output)
	return output, nil
}
