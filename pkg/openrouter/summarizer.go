package openrouter

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

const summarizerSystemPrompt = "You compress chat history. Merge the existing summary " +
	"with the dropped turns into a short factual summary. Keep product names, prices, " +
	"decisions and open tasks. Answer with the summary only."

// Summarizer condenses pruned conversation turns through a small model so
// the rolling summary stays bounded.
type Summarizer struct {
	client *openaisdk.Client
	model  string
}

var _ contractx.Summarizer = (*Summarizer)(nil)

func NewSummarizer(cfg Config) (*Summarizer, error) {
	client := NewClient(cfg)
	if client == nil {
		return nil, fmt.Errorf("openrouter api key is required")
	}

	model := strings.TrimSpace(cfg.SummaryModel)
	if model == "" {
		model = strings.TrimSpace(cfg.Model)
	}
	if model == "" {
		return nil, fmt.Errorf("summary model is required")
	}

	return &Summarizer{client: client, model: model}, nil
}

func (s *Summarizer) Summarize(ctx context.Context, previous, dropped string) (string, error) {
	var sb strings.Builder
	if previous != "" {
		sb.WriteString("Existing summary:\n")
		sb.WriteString(previous)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Dropped turns:\n")
	sb.WriteString(dropped)

	resp, err := s.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(s.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(summarizerSystemPrompt),
			openaisdk.UserMessage(sb.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize history: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
