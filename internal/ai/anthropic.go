package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"go.uber.org/zap"
)

// Tool names used for forced tool use.
const (
	formatRecipeTool          = "format_recipe"
	substituteIngredientsTool = "substitute_ingredients"
	extractIntentTool         = "extract_intent"
)

// AnthropicProvider implements RecipeFormatter, Substituter and
// IntentExtractor using Claude.
type AnthropicProvider struct {
	client  anthropic.Client
	model   anthropic.Model
	prompts *config.Prompts
}

// NewAnthropicProvider creates a new AnthropicProvider with the given API key
// and prompt configuration.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.ModelClaude3_5Sonnet20241022,
		prompts: prompts,
	}
}

// NewAnthropicLightProvider creates an AnthropicProvider using the cheaper
// Haiku model. Used for intent extraction where latency matters more than
// maximum quality.
func NewAnthropicLightProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.Model("claude-haiku-4-5-20251001"),
		prompts: prompts,
	}
}

func stringArraySchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

func substitutionsSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "One entry per ingredient that was replaced to satisfy the cook's constraints",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"original":    map[string]interface{}{"type": "string", "description": "Ingredient as it appeared on the page"},
				"replacement": map[string]interface{}{"type": "string", "description": "Ingredient used instead"},
				"reason":      map[string]interface{}{"type": "string", "description": "Constraint that required the change"},
			},
		},
	}
}

// formatRecipeToolParam builds the Claude tool definition for recipe formatting.
func formatRecipeToolParam() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        formatRecipeTool,
			Description: anthropic.String("Return the recipe found on the page as structured data."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title of the recipe",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "One or two sentence description of the dish",
					},
					"portions": map[string]interface{}{
						"type":        "number",
						"description": "Number of portions this recipe makes",
					},
					"ingredients":   stringArraySchema("Ingredient lines including amount and unit"),
					"instructions":  stringArraySchema("Steps to prepare the recipe (no numbering)"),
					"substitutions": substitutionsSchema(),
				},
			},
		},
	}
}

// substituteToolParam builds the Claude tool definition for ingredient substitution.
func substituteToolParam() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        substituteIngredientsTool,
			Description: anthropic.String("Return the adapted ingredient and instruction lists."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"ingredients":   stringArraySchema("Full ingredient list after replacement"),
					"instructions":  stringArraySchema("Full instruction list after replacement"),
					"substitutions": substitutionsSchema(),
				},
			},
		},
	}
}

// extractIntentToolParam builds the Claude tool definition for intent extraction.
func extractIntentToolParam() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        extractIntentTool,
			Description: anthropic.String("Return the dish the user wants to cook."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"dish":         map[string]interface{}{"type": "string", "description": "Name of the dish"},
					"search_query": map[string]interface{}{"type": "string", "description": "Short web search phrase for the dish"},
					"on_topic":     map[string]interface{}{"type": "boolean", "description": "False when the request is not about cooking"},
				},
			},
		},
	}
}

// newUserMessage creates a user message param with the given content blocks.
func newUserMessage(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: blocks,
	}
}

// createMessageWithRetry wraps the Claude API call with exponential backoff.
func (p *AnthropicProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyAnthropicError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("claude API error: %w", err)
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		backoff := waitTime * time.Duration(i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("claude API: exhausted %d retries: %w", maxRetries, lastErr)
}

// classifyAnthropicError determines whether to retry and the base wait duration.
func classifyAnthropicError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return true, 2 * time.Second
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}

// toolInput returns the raw input of the named tool-use block.
func toolInput(msg *anthropic.Message, name string) ([]byte, error) {
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == name {
			raw, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to marshal tool input: %v", ErrMalformedOutput, err)
			}
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s tool_use block in Claude response", ErrMalformedOutput, name)
}

// callTool sends a single-turn request that forces the named tool.
func (p *AnthropicProvider) callTool(ctx context.Context, sysPrompt, userPrompt string, tool anthropic.ToolUnionParam, name string, maxTokens int64) ([]byte, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Tools: []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: name,
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	return toolInput(resp, name)
}

// FormatRecipe converts page content into a recipe via Claude tool use.
func (p *AnthropicProvider) FormatRecipe(ctx context.Context, req FormatRequest) (*RecipeResult, error) {
	sysPrompt, userPrompt, err := renderFormatPrompts(p.prompts, req)
	if err != nil {
		return nil, ClassifyExtractionError(err)
	}

	raw, err := p.callTool(ctx, sysPrompt, userPrompt, formatRecipeToolParam(), formatRecipeTool, 4096)
	if err != nil {
		return nil, ClassifyExtractionError(err)
	}

	return DecodeRecipe(raw)
}

// SubstituteIngredients asks Claude to replace the flagged ingredients.
func (p *AnthropicProvider) SubstituteIngredients(ctx context.Context, req SubstitutionRequest) (*SubstitutionResult, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Resolve.Substitute.System, map[string]interface{}{
		"Constraints": strings.Join(req.Constraints, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	userPrompt, err := config.RenderPrompt(p.prompts.Resolve.Substitute.User, map[string]interface{}{
		"Title":        req.Title,
		"Ingredients":  req.Ingredients,
		"Flagged":      req.Flagged,
		"Instructions": req.Instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	raw, err := p.callTool(ctx, sysPrompt, userPrompt, substituteToolParam(), substituteIngredientsTool, 4096)
	if err != nil {
		return nil, err
	}

	return decodeSubstitution(raw)
}

// ExtractIntent reads the conversation and returns the requested dish.
func (p *AnthropicProvider) ExtractIntent(ctx context.Context, messages []Message) (*Intent, error) {
	if len(messages) == 0 {
		return nil, errors.New("conversation has no messages")
	}

	sysPrompt, err := config.RenderPrompt(p.prompts.Resolve.Intent.System, nil)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	userPrompt, err := config.RenderPrompt(p.prompts.Resolve.Intent.User, map[string]interface{}{
		"Messages": messages,
	})
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	raw, err := p.callTool(ctx, sysPrompt, userPrompt, extractIntentToolParam(), extractIntentTool, 256)
	if err != nil {
		return nil, err
	}

	return decodeIntent(raw)
}

// renderFormatPrompts renders the format prompt pair. Shared by the Claude and
// GPT formatters.
func renderFormatPrompts(prompts *config.Prompts, req FormatRequest) (string, string, error) {
	sysPrompt, err := config.RenderPrompt(prompts.Resolve.Format.System, map[string]interface{}{
		"Constraints": strings.Join(req.Constraints, ", "),
		"Equipment":   strings.Join(req.UnavailableEquipment, ", "),
	})
	if err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}

	userPrompt, err := config.RenderPrompt(prompts.Resolve.Format.User, map[string]interface{}{
		"Dish":      req.Dish,
		"SourceURL": req.SourceURL,
		"Content":   req.Content,
	})
	if err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}

	return sysPrompt, userPrompt, nil
}
