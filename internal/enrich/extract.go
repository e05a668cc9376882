package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// extractionPrompt instructs the model to pull structured contacts out
// of formatted search results. The model must answer with a bare JSON
// array of contacts.
const extractionPrompt = `You are an expert assistant for structured data extraction. You will be given formatted Google search results, each section headed by its search query, results separated by "---".

Identify ALL relevant contacts:
1. High-level decision makers: Owner, Founder / Co-Founder, CEO, CFO, President, Co-Owner, Managing Partner, Principal, COO, Chairman.
2. Mid-level contacts: VP-level positions, General Manager.
3. Generic company emails (info@, contact@, sales@, ...), excluding hidden or obfuscated addresses.

For each contact return: first_name, last_name (proper capitalization, empty for generic emails), title (exact job title as written, "Generic Email" for emails), linkedin_url (personal profile URLs containing linkedin.com/in/ only, else empty), generic_email, source_url, company_phone (same company phone for all contacts, empty if not found).

Deduplicate people by first and last name, keeping the most specific or combined title. Deduplicate generic emails by address. Ignore Engineers, Recruiters, Technicians, HR, and placeholder names. Do not hallucinate: extract only what is present in the text.

Return ONLY a JSON array of contacts, no explanation. If no contacts are found, return [].`

// Extractor turns a formatted search summary into structured contacts.
type Extractor interface {
	ExtractContacts(ctx context.Context, summary string) ([]Contact, error)
}

// Compile-time interface check
var _ Extractor = (*LLMExtractor)(nil)

// ChatService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// LLMExtractor extracts contacts with a chat model behind an
// OpenAI-compatible endpoint.
type LLMExtractor struct {
	chat  ChatService
	model string
}

// NewLLMExtractor creates an extractor talking to an OpenRouter-style
// endpoint with the given key and model.
func NewLLMExtractor(baseURL, apiKey, model string) *LLMExtractor {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &LLMExtractor{
		chat:  client.Chat.Completions,
		model: model,
	}
}

// ExtractContacts sends the summary for extraction and parses the
// returned JSON array.
func (e *LLMExtractor) ExtractContacts(ctx context.Context, summary string) ([]Contact, error) {
	resp, err := e.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionPrompt),
			openai.UserMessage("Here's the output of the google search results:\n" + summary),
		}),
		Model:       openai.F(e.model),
		Temperature: openai.F(0.1),
		MaxTokens:   openai.Int(4000),
	})
	if err != nil {
		return nil, fmt.Errorf("contact extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("contact extraction returned no choices")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)

	var contacts []Contact
	if err := json.Unmarshal([]byte(content), &contacts); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	return contacts, nil
}

// stripCodeFence removes a surrounding markdown code block, which some
// models emit despite instructions.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if after, found := strings.CutPrefix(content, "```json"); found {
		content = after
	} else if after, found := strings.CutPrefix(content, "```"); found {
		content = after
	} else {
		return content
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
