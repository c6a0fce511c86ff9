package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/deskhand/deskhand/internal/knowledge"
	"github.com/deskhand/deskhand/internal/types"
)

// ErrNoGenerator means no generation backend is configured (missing API key).
var ErrNoGenerator = errors.New("no generation backend configured")

// OpenAIGenerator implements Generator against a chat-completion API using
// the official SDK.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. Returns nil when apiKey is empty so
// callers can pass the result straight to WithGenerator.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if apiKey == "" {
		return nil
	}
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Generate drafts a reply to the customer message, grounded on the resolved
// knowledge base. The knowledge base rides along as JSON inside the system
// prompt; the model is instructed to stay within it.
func (g *OpenAIGenerator) Generate(ctx context.Context, message string, lang types.Language, base *knowledge.Base) (string, error) {
	grounding, err := json.Marshal(base)
	if err != nil {
		return "", fmt.Errorf("failed to encode knowledge base: %w", err)
	}

	language := "English"
	if lang == types.LangSwahili {
		language = "Swahili"
	}

	system := fmt.Sprintf(
		"You draft replies for a customer support agent. Answer in %s, briefly and politely. "+
			"Ground your answer in this knowledge base and say an agent will follow up when it does not cover the question:\n%s",
		language, grounding,
	)

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(message),
		},
		Temperature:         openai.Float(0.4),
		MaxCompletionTokens: openai.Int(300),
	})
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("generation returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
