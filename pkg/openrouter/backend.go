package openrouter

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

// Backend drives a tool-calling chat model with a fixed system prompt and
// tool catalog. Both are bound once at construction so every turn sees the
// same catalog.
type Backend struct {
	model        model.ToolCallingChatModel
	systemPrompt string
}

var _ contractx.Backend = (*Backend)(nil)

func NewBackend(ctx context.Context, builder LLMBuilder, systemPrompt string, tools []*schema.ToolInfo) (*Backend, error) {
	if builder == nil {
		return nil, fmt.Errorf("llm builder is required")
	}

	m, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build chat model: %w", err)
	}

	if len(tools) > 0 {
		m, err = m.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
	}

	return &Backend{
		model:        m,
		systemPrompt: systemPrompt,
	}, nil
}

func (b *Backend) Send(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	messages := make([]*schema.Message, 0, len(history)+1)
	if b.systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(b.systemPrompt))
	}
	messages = append(messages, history...)

	resp, err := b.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", contractx.ErrBackend, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrBackend)
	}
	return resp, nil
}
