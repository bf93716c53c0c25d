package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"go.uber.org/zap"
)

// openAIFormatInstructions is appended to the system prompt because JSON
// mode has no tool schema to describe the output shape.
const openAIFormatInstructions = `Respond with a JSON object with the keys "title" (string), "description" (string), "portions" (number), "ingredients" (array of strings), "instructions" (array of strings) and "substitutions" (array of objects with "original", "replacement" and "reason").`

// OpenAIFormatter implements RecipeFormatter using GPT in JSON mode.
type OpenAIFormatter struct {
	client  *openai.Client
	model   string
	prompts *config.Prompts
}

// NewOpenAIFormatter creates a new OpenAIFormatter.
func NewOpenAIFormatter(apiKey string, prompts *config.Prompts) *OpenAIFormatter {
	return &OpenAIFormatter{
		client:  openai.NewClient(apiKey),
		model:   openai.GPT4o,
		prompts: prompts,
	}
}

// FormatRecipe converts page content into a recipe via a JSON-mode completion.
func (f *OpenAIFormatter) FormatRecipe(ctx context.Context, req FormatRequest) (*RecipeResult, error) {
	sysPrompt, userPrompt, err := renderFormatPrompts(f.prompts, req)
	if err != nil {
		return nil, ClassifyExtractionError(err)
	}

	request := openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sysPrompt + "\n\n" + openAIFormatInstructions},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := f.createChatCompletionWithRetry(ctx, request)
	if err != nil {
		return nil, ClassifyExtractionError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ClassifyExtractionError(fmt.Errorf("%w: GPT returned an empty message", ErrMalformedOutput))
	}

	return DecodeRecipe([]byte(resp.Choices[0].Message.Content))
}

// createChatCompletionWithRetry wraps the OpenAI API call with linear backoff.
func (f *OpenAIFormatter) createChatCompletionWithRetry(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := f.client.CreateChatCompletion(ctx, request)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyOpenAIError(err)
		if !shouldRetry {
			return openai.ChatCompletionResponse{}, fmt.Errorf("openai API error: %w", err)
		}

		logger.Get().Warn("openai API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(waitTime * time.Duration(i+1)):
			}
		}
	}

	return openai.ChatCompletionResponse{}, fmt.Errorf("openai API: exhausted %d retries: %w", maxRetries, lastErr)
}

// classifyOpenAIError determines whether to retry and the base wait duration.
func classifyOpenAIError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return true, 2 * time.Second
		case 500, 502, 503:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}
