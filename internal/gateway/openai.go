// ABOUTME: OpenAI-compatible chat completion client
// ABOUTME: Works against any endpoint speaking the chat completions API, including image parts
package gateway

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/roleplay-core/internal/models"
)

const (
	// DefaultOpenAIModel is the default model for chat completions
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIEndpoint is the public OpenAI API base URL
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client
type OpenAIConfig struct {
	Endpoint    string
	APIKey      string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient wraps the go-openai client
type OpenAIClient struct {
	client      *openai.Client
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate sends contents as chat messages to model
func (c *OpenAIClient) Generate(ctx context.Context, model string, contents []Content) (string, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAI(contents),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(role models.Role) string {
	switch role {
	case models.RoleModel:
		return openai.ChatMessageRoleAssistant
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// toOpenAI converts contents, using multi-part messages only when images are present
func toOpenAI(contents []Content) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(contents))
	for _, c := range contents {
		msg := openai.ChatCompletionMessage{Role: openAIRole(c.Role)}

		if !hasImage(c) {
			msg.Content = c.Text()
			if msg.Content == "" {
				continue
			}
			messages = append(messages, msg)
			continue
		}

		for _, p := range c.Parts {
			switch {
			case p.Data != "":
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL(p.MIMEType, p.Data),
						Detail: openai.ImageURLDetailAuto,
					},
				})
			case p.ImageURL != "":
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL, Detail: openai.ImageURLDetailAuto},
				})
			case p.Text != "":
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

func hasImage(c Content) bool {
	for _, p := range c.Parts {
		if p.IsImage() {
			return true
		}
	}
	return false
}

func dataURL(mimeType, data string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + data
}
