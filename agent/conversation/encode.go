package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

// ImageResolver turns a stored image locator into a URL the backend can
// consume (typically a base64 data URL). Resolution happens only at
// encode time, which keeps stored history bounded regardless of image size.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Encode converts the retained turn log into backend messages. The rolling
// summary, when present, rides in front as a system message so the backend
// keeps long-range context after pruning.
func Encode(ctx context.Context, st *State, resolver ImageResolver) ([]*schema.Message, error) {
	if st == nil {
		return nil, ErrNilState
	}

	msgs := make([]*schema.Message, 0, len(st.Turns)+1)
	if strings.TrimSpace(st.Summary) != "" {
		msgs = append(msgs, schema.SystemMessage("Summary of earlier conversation: "+st.Summary))
	}

	for i := range st.Turns {
		turn := &st.Turns[i]
		switch turn.Role {
		case RoleUser:
			msgs = append(msgs, encodeUserTurn(ctx, turn, resolver))
		case RoleAssistant:
			msgs = append(msgs, encodeAssistantTurn(turn))
		case RoleTool:
			msgs = append(msgs, encodeToolTurn(turn)...)
		default:
			return nil, fmt.Errorf("unsupported turn role %q", turn.Role)
		}
	}
	return msgs, nil
}

func encodeUserTurn(ctx context.Context, turn *Turn, resolver ImageResolver) *schema.Message {
	hasImage := false
	for _, blk := range turn.Blocks {
		if blk.Type == BlockImage {
			hasImage = true
			break
		}
	}

	if !hasImage {
		return schema.UserMessage(turnText(turn))
	}

	parts := make([]schema.ChatMessagePart, 0, len(turn.Blocks))
	for _, blk := range turn.Blocks {
		switch blk.Type {
		case BlockText:
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeText,
				Text: blk.Text,
			})
		case BlockImage:
			url, err := resolveImage(ctx, resolver, blk.ImageRef)
			if err != nil {
				log.Warn().Err(err).Str("image_ref", blk.ImageRef).Msg("image resolution failed")
				parts = append(parts, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeText,
					Text: fmt.Sprintf("[image unavailable: %s]", blk.ImageRef),
				})
				continue
			}
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    url,
					Detail: schema.ImageURLDetailAuto,
				},
			})
		}
	}
	return &schema.Message{Role: schema.User, MultiContent: parts}
}

func encodeAssistantTurn(turn *Turn) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant, Content: turnText(turn)}
	for _, blk := range turn.Blocks {
		if blk.Type != BlockToolCall || blk.ToolCall == nil {
			continue
		}
		args, err := json.Marshal(blk.ToolCall.Args)
		if err != nil {
			args = []byte("{}")
		}
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID: blk.ToolCall.ID,
			Function: schema.FunctionCall{
				Name:      blk.ToolCall.Name,
				Arguments: string(args),
			},
		})
	}
	return msg
}

func encodeToolTurn(turn *Turn) []*schema.Message {
	var msgs []*schema.Message
	for _, blk := range turn.Blocks {
		if blk.Type != BlockToolResult || blk.ToolResult == nil {
			continue
		}
		payload, err := json.Marshal(blk.ToolResult.Result)
		if err != nil {
			payload = []byte(`{"ok":false,"err_kind":"tool_execution","err_message":"unserializable result"}`)
		}
		msgs = append(msgs, &schema.Message{
			Role:       schema.Tool,
			ToolCallID: blk.ToolResult.CallID,
			Content:    string(payload),
		})
	}
	return msgs
}

func resolveImage(ctx context.Context, resolver ImageResolver, ref string) (string, error) {
	if resolver == nil {
		return ref, nil
	}
	return resolver.Resolve(ctx, ref)
}

func turnText(turn *Turn) string {
	var texts []string
	for _, blk := range turn.Blocks {
		if blk.Type == BlockText && blk.Text != "" {
			texts = append(texts, blk.Text)
		}
	}
	return strings.Join(texts, "\n")
}
