package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blackmichael/video-feed/internal/domain"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Idea is one suggested short video.
type Idea struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

// generator is the subset of *genai.Models the client needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client asks a Gemini model for video ideas and answers chat questions.
type Client struct {
	models generator
	model  string
	logger *slog.Logger
}

// NewClient creates a Gemini-backed client. model defaults to gemini-2.5-flash.
func NewClient(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}
	return newClient(client.Models, model, logger), nil
}

func newClient(models generator, model string, logger *slog.Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{models: models, model: model, logger: logger}
}

var ideaSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString, Description: "Catchy video title."},
			"description": {Type: genai.TypeString, Description: "Short summary of the content."},
			"fields": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Related areas of expertise.",
			},
		},
		PropertyOrdering: []string{"title", "description", "fields"},
	},
}

// Recommend returns three short-video ideas tailored to the given
// expertise profile.
func (c *Client) Recommend(ctx context.Context, expertise string) ([]Idea, error) {
	system := fmt.Sprintf(`You are a creative assistant that turns a creator's expertise into short educational video ideas.
Based on this profile: %q, produce 3 ideas for short-form videos.
Each idea needs a catchy title (max 50 characters), a short description (max 100 characters),
and 1 or 2 related fields from the profile. Answer with a JSON array that follows the schema.`, expertise)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ideaSchema,
	}

	text, err := c.generate(ctx, "Analyse the profile and suggest 3 fresh short video ideas.", cfg)
	if err != nil {
		return nil, err
	}

	var ideas []Idea
	if err := json.Unmarshal([]byte(text), &ideas); err != nil {
		return nil, domain.Invalid("ai response", "ideas are not a JSON array: "+err.Error())
	}
	return ideas, nil
}

// Ask answers a free-form question.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.Invalid("question", "must not be empty")
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a friendly assistant inside a short-video app. Keep answers brief.", genai.RoleUser),
	}
	return c.generate(ctx, question, cfg)
}

// generate returns candidates[0].content.parts[0].text. Its absence is a
// validation error, transport failures are ErrStoreUnavailable.
func (c *Client) generate(ctx context.Context, query string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(query), cfg)
	if err != nil {
		c.logger.Error("AI request failed", "model", c.model, "error", err)
		return "", domain.Unavailable("generate content", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].Text == "" {
		return "", domain.Invalid("ai response", "no text in first candidate")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
