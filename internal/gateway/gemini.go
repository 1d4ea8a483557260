// ABOUTME: Gemini model client over google.golang.org/genai
// ABOUTME: Leading system turns become the system instruction; later ones are sent as user turns
package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/harper/roleplay-core/internal/models"
)

// GeminiClient generates with one Gemini API key
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini client for apiKey
func NewGeminiClient(ctx context.Context, apiKey string) (ModelClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Generate sends contents to model
func (c *GeminiClient) Generate(ctx context.Context, model string, contents []Content) (string, error) {
	system, history, err := toGenAI(contents)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("no user or model turns to send")
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, history, config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// toGenAI splits leading system turns off and converts the rest
func toGenAI(contents []Content) (string, []*genai.Content, error) {
	var (
		system  []string
		history []*genai.Content
	)
	for _, c := range contents {
		if c.Role == models.RoleSystem && len(history) == 0 {
			if text := c.Text(); text != "" {
				system = append(system, text)
			}
			continue
		}

		role := genai.Role(genai.RoleUser)
		if c.Role == models.RoleModel {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, p := range c.Parts {
			switch {
			case p.Data != "":
				data, err := base64.StdEncoding.DecodeString(p.Data)
				if err != nil {
					return "", nil, fmt.Errorf("invalid inline image data: %w", err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, p.MIMEType))
			case p.Text != "":
				parts = append(parts, genai.NewPartFromText(p.Text))
			}
		}
		if len(parts) == 0 {
			continue
		}
		history = append(history, genai.NewContentFromParts(parts, role))
	}
	return strings.Join(system, "\n\n"), history, nil
}
