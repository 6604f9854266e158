package safetyfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const seed int64 = 420

// Categories is the model's classification of a prompt pair.
type Categories struct {
	SexualizeChild bool     `json:"sexualize_child"`
	Child          bool     `json:"child"`
	Nudity         bool     `json:"nudity"`
	Sexual         bool     `json:"sexual"`
	Violence       bool     `json:"violence"`
	Disturbing     bool     `json:"disturbing"`
	Persons        []Person `json:"persons"`
}

type Person struct {
	Name       string `json:"name"`
	RealPerson bool   `json:"real_person"`
}

type Categorizer interface {
	Categorize(ctx context.Context, prompt, negativePrompt string) (*Categories, error)
}

// Filter rejects prompts that sexualize minors, pair minors with violence,
// or depict real people sexually.
type Filter struct {
	categorizer Categorizer
	logger      *zap.Logger
}

func NewFilter(categorizer Categorizer, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{categorizer: categorizer, logger: logger}
}

// NewOpenAIFilter builds a Filter backed by an OpenAI chat completion.
func NewOpenAIFilter(apiKey string, logger *zap.Logger) (*Filter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return NewFilter(&openAICategorizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, logger), nil
}

// Screen returns a non-empty reason when the prompt must be rejected.
func (f *Filter) Screen(ctx context.Context, prompt, negativePrompt string) (string, error) {
	categories, err := f.categorizer.Categorize(ctx, prompt, negativePrompt)
	if err != nil {
		return "", err
	}

	reason := evaluate(categories, prompt)
	if reason != "" {
		f.logger.Debug("prompt categorized as unsafe", zap.Any("categories", categories))
	}
	return reason, nil
}

func evaluate(c *Categories, prompt string) string {
	switch {
	case c.SexualizeChild || (c.Child && (c.Sexual || c.Nudity)) || (c.Child && mentionsNudity(prompt)):
		return "contains sexual content involving minors"
	case c.Child && (c.Violence || c.Disturbing):
		return "contains violent or disturbing content involving minors"
	case (c.Sexual || c.Nudity) && hasRealPerson(c.Persons):
		return "contains sexual or nude content of a real person"
	}
	return ""
}

func hasRealPerson(persons []Person) bool {
	for _, person := range persons {
		if person.RealPerson {
			return true
		}
	}
	return false
}

func mentionsNudity(prompt string) bool {
	prompt = strings.ToLower(prompt)
	for _, term := range []string{"naked", "nude", "nudity", "porn"} {
		if strings.Contains(prompt, term) {
			return true
		}
	}
	return false
}

type openAICategorizer struct {
	client *openai.Client
}

func (c *openAICategorizer) Categorize(ctx context.Context, prompt, negativePrompt string) (*Categories, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Positive prompt: %s", prompt)),
			openai.UserMessage(fmt.Sprintf("Negative prompt: %s", negativePrompt)),
		}),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		),
		Seed:        openai.F(seed),
		Model:       openai.F(openai.ChatModelGPT4oMini),
		Temperature: openai.F(0.2),
	})
	if err != nil {
		return nil, err
	}

	if len(completion.Choices) == 0 || len(completion.Choices[0].Message.Content) == 0 {
		return nil, fmt.Errorf("could not categorize prompt")
	}

	var categories Categories
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &categories); err != nil {
		return nil, fmt.Errorf("could not parse categorization: %w", err)
	}

	return &categories, nil
}
