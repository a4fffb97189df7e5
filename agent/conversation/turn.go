package conversation

import (
	"strings"
	"time"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolCall   BlockType = "tool_call"
	BlockToolResult BlockType = "tool_result"
)

// Block is one content unit inside a turn. Images are stored as a stable
// locator, never as inline bytes; the bytes are resolved only when the
// reasoning backend is called.
type Block struct {
	Type       BlockType           `json:"type"`
	Text       string              `json:"text,omitempty"`
	ImageRef   string              `json:"image_ref,omitempty"`
	ToolCall   *contractx.ToolCall `json:"tool_call,omitempty"`
	ToolResult *ToolResultBlock    `json:"tool_result,omitempty"`
}

type ToolResultBlock struct {
	CallID string           `json:"call_id"`
	Tool   string           `json:"tool"`
	Result contractx.Result `json:"result"`
}

// Turn is append-only once stored.
type Turn struct {
	Role      Role      `json:"role"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the persisted per-conversation record: the bounded turn log plus
// the rolling summary of turns that pruning dropped.
type State struct {
	Key       string    `json:"key"`
	Turns     []Turn    `json:"turns,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

func ImageBlock(ref string) Block {
	return Block{Type: BlockImage, ImageRef: ref}
}

func UserTurn(now time.Time, text string, imageRefs ...string) Turn {
	blocks := make([]Block, 0, len(imageRefs)+1)
	for _, ref := range imageRefs {
		if strings.TrimSpace(ref) != "" {
			blocks = append(blocks, ImageBlock(ref))
		}
	}
	if strings.TrimSpace(text) != "" {
		blocks = append(blocks, TextBlock(text))
	}
	return Turn{Role: RoleUser, Blocks: blocks, CreatedAt: now.UTC()}
}

func AssistantTurn(now time.Time, text string, calls []contractx.ToolCall) Turn {
	blocks := make([]Block, 0, len(calls)+1)
	if strings.TrimSpace(text) != "" {
		blocks = append(blocks, TextBlock(text))
	}
	for i := range calls {
		call := calls[i]
		blocks = append(blocks, Block{Type: BlockToolCall, ToolCall: &call})
	}
	return Turn{Role: RoleAssistant, Blocks: blocks, CreatedAt: now.UTC()}
}

func ToolResultTurn(now time.Time, callID, toolName string, result contractx.Result) Turn {
	return Turn{
		Role: RoleTool,
		Blocks: []Block{{
			Type:       BlockToolResult,
			ToolResult: &ToolResultBlock{CallID: callID, Tool: toolName, Result: result},
		}},
		CreatedAt: now.UTC(),
	}
}
