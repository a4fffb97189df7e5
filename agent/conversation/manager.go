package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

const (
	defaultMaxTurns    = 40
	defaultIdleTimeout = time.Hour
)

type ManagerConfig struct {
	MaxTurns    int           `envconfig:"MAX_TURNS" split_words:"true" default:"40"`
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT" split_words:"true" default:"1h"`
}

// Manager enforces the retention rules on top of a Store: history is capped
// at MaxTurns and a conversation idle longer than IdleTimeout is silently
// reset on the next append. The reset is reported to the caller so the loop
// can tell the user their context was cleared.
type Manager struct {
	store      Store
	summarizer contractx.Summarizer
	maxTurns   int
	idle       time.Duration
	now        func() time.Time
}

func NewManager(store Store, cfg ManagerConfig, summarizer contractx.Summarizer) *Manager {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &Manager{
		store:      store,
		summarizer: summarizer,
		maxTurns:   maxTurns,
		idle:       idle,
		now:        time.Now,
	}
}

// WithClock replaces the manager's clock. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Open loads the conversation for key, applying the idle-timeout rule: if
// the stored state is older than the timeout its turns are discarded and
// reset=true is returned. Missing state yields a fresh empty one.
func (m *Manager) Open(ctx context.Context, key string) (*State, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, fmt.Errorf("%w: conversation key is empty", contractx.ErrValidation)
	}

	st, err := m.store.Load(ctx, key)
	if errors.Is(err, ErrStateNotFound) {
		return &State{Key: key, UpdatedAt: m.now().UTC()}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if len(st.Turns) > 0 && m.now().Sub(st.UpdatedAt) > m.idle {
		log.Debug().Str("conversation", key).Msg("idle timeout, conversation reset")
		st.Turns = nil
		st.Summary = ""
		return st, true, nil
	}
	return st, false, nil
}

// Append adds turns, prunes the log to MaxTurns (summarizing what was
// dropped when a summarizer is configured) and persists the state. History
// read back after Append never exceeds MaxTurns.
func (m *Manager) Append(ctx context.Context, st *State, turns ...Turn) error {
	if st == nil {
		return fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	st.Turns = append(st.Turns, turns...)

	if over := len(st.Turns) - m.maxTurns; over > 0 {
		dropped := st.Turns[:over]
		st.Turns = append([]Turn(nil), st.Turns[over:]...)
		m.summarizeDropped(ctx, st, dropped)
	}

	st.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, st); err != nil {
		return fmt.Errorf("save conversation %s: %w", st.Key, err)
	}
	return nil
}

// History returns the most recent turns, at most limit (or all retained
// turns when limit <= 0).
func (m *Manager) History(ctx context.Context, key string, limit int) ([]Turn, error) {
	st, _, err := m.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	turns := st.Turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (m *Manager) Reset(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

func (m *Manager) summarizeDropped(ctx context.Context, st *State, dropped []Turn) {
	if m.summarizer == nil || len(dropped) == 0 {
		return
	}
	summary, err := m.summarizer.Summarize(ctx, st.Summary, renderTurns(dropped))
	if err != nil {
		// The summary is best-effort context; pruning must not fail the turn.
		log.Warn().Err(err).Str("conversation", st.Key).Msg("summarize dropped turns failed")
		return
	}
	st.Summary = strings.TrimSpace(summary)
}

func renderTurns(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		for _, blk := range t.Blocks {
			switch blk.Type {
			case BlockText:
				fmt.Fprintf(&b, "%s: %s\n", t.Role, blk.Text)
			case BlockImage:
				fmt.Fprintf(&b, "%s: [image %s]\n", t.Role, blk.ImageRef)
			case BlockToolCall:
				args, _ := json.Marshal(blk.ToolCall.Args)
				fmt.Fprintf(&b, "%s: called %s(%s)\n", t.Role, blk.ToolCall.Name, args)
			case BlockToolResult:
				out, _ := json.Marshal(blk.ToolResult.Result)
				fmt.Fprintf(&b, "tool %s: %s\n", blk.ToolResult.Tool, out)
			}
		}
	}
	return b.String()
}
