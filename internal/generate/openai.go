package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = shared.ChatModelGPT5Mini

// OpenAIClient calls the OpenAI Responses API.
type OpenAIClient struct {
	Stats *LLMStats

	client openai.Client
	model  string
}

// NewOpenAIClient builds a client. Extra request options (base URL, HTTP
// client) are passed through to the SDK. SDK-level retries are disabled;
// callers retry on *RetryableError.
func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	if model == "" {
		model = string(DefaultOpenAIModel)
	}
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &OpenAIClient{
		client: openai.NewClient(all...),
		model:  model,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Generate sends the chunk prompt and returns the response output text.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, req)
	c.Stats.Observe(time.Since(start), err)
	return text, err
}

func (c *OpenAIClient) generate(ctx context.Context, req Request) (string, error) {
	response, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(
					responses.ResponseInputMessageContentListParam{
						responses.ResponseInputContentParamOfInputText(BuildPrompt(req)),
					},
					"user",
				),
			},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && isRetryableStatus(apiErr.StatusCode) {
			return "", &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("openai api: %w", err)
	}

	text := response.OutputText()
	if text == "" {
		return "", fmt.Errorf("empty response from openai")
	}
	return text, nil
}
