// Package rewrite wraps the Gemini text service that turns raw article text
// into a short editorial brief. The service is treated as slow and
// unreliable: a failure here aborts only the current candidate, never the run.
package rewrite

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/coinbrief/ingestor/internal/storage"
)

// maxPromptChars bounds how much source text goes into the prompt.
const maxPromptChars = 2000

type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewClient(ctx context.Context, apiKey, model string, temperature float32) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{client: client, model: model, temperature: temperature}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// NewsBrief rewrites extracted article text into a markdown brief. The
// prompt instructs the model to stay within the supplied facts; that is a
// contract with the model, not something enforced in code.
func (c *Client) NewsBrief(ctx context.Context, title, text string, sources []storage.SourceRef) (string, error) {
	var attribution strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&attribution, "- %s: %s (%s)\n", s.Publisher, s.Title, s.URL)
	}

	prompt := fmt.Sprintf(`You are a crypto news editor. Rewrite the following source material into a short editorial brief in markdown.

RULES:
- Use only facts present in the source text. Do not add numbers, quotes, or events that are not there.
- 3 to 5 short paragraphs, neutral tone, no hype.
- Do not give investment advice.
- Output only the brief body, no preamble and no headline.

HEADLINE: %s

SOURCE TEXT:
%s

SOURCES:
%s`, title, boundText(text), attribution.String())

	return c.generate(ctx, prompt)
}

// SpecOutlook produces the fallback post for an asset when no fresh news
// qualified this hour. It is explicitly framed as speculative.
func (c *Client) SpecOutlook(ctx context.Context, asset string) (string, error) {
	prompt := fmt.Sprintf(`You are a crypto market commentator. Write a short, clearly speculative outlook piece about %s in markdown.

RULES:
- 2 to 3 short paragraphs about what traders generally watch for this asset: market structure, adoption themes, typical catalysts.
- No price predictions, no numbers you are not certain of, no investment advice.
- Neutral, measured tone. State upfront that this is general commentary, not news.
- Output only the body, no headline.`, strings.ToUpper(asset))

	return c.generate(ctx, prompt)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	body := strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
	if body == "" {
		return "", fmt.Errorf("blank body from gemini")
	}
	return body, nil
}

// boundText trims source text to the prompt budget, preferring to end on a
// sentence boundary.
func boundText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) <= maxPromptChars {
		return text
	}

	runes := []rune(text)
	trimmed := string(runes[:maxPromptChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > maxPromptChars/3 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}
