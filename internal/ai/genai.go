package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAI talks to Gemini through the google.golang.org/genai SDK.
type GenAI struct {
	client *genai.Client
	model  string
}

func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

func (g *GenAI) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(req.Messages), toConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

func (g *GenAI) Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (string, error) {
	var full strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, toContents(req.Messages), toConfig(req)) {
		if err != nil {
			return full.String(), fmt.Errorf("stream content: %w", err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

func toConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.System) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

// toContents maps chat roles onto the model's user/model roles.
func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		role := genai.Role(genai.RoleUser)
		if message.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, role))
	}
	return contents
}
