package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

type entryRow struct {
	bun.BaseModel `bun:"table:audit_entries"`

	ID        string          `bun:"id,pk"`
	Tool      string          `bun:"tool,notnull"`
	Actor     contractx.Actor `bun:"actor,notnull"`
	Input     map[string]any  `bun:"input,type:jsonb"`
	Output    any             `bun:"output,type:jsonb"`
	ErrKind   string          `bun:"err_kind"`
	ErrDetail string          `bun:"err_detail"`
	EntityRef string          `bun:"entity_ref"`
	Approved  bool            `bun:"approved,notnull"`
	CreatedAt time.Time       `bun:"created_at,notnull"`
}

// BunSink writes entries to Postgres. Insert-only; nothing updates or
// deletes rows in audit_entries.
type BunSink struct {
	db *bun.DB
}

func NewBunSink(db *bun.DB) *BunSink {
	return &BunSink{db: db}
}

func (s *BunSink) Record(ctx context.Context, entry Entry) error {
	row := entryRow{
		ID:        entry.ID,
		Tool:      entry.Tool,
		Actor:     entry.Actor,
		Input:     entry.Input,
		Output:    entry.Output,
		ErrKind:   entry.ErrKind,
		ErrDetail: entry.ErrDetail,
		EntityRef: entry.EntityRef,
		Approved:  entry.Approved,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ResetModel creates the audit_entries table if missing. Called from startup
// wiring, never from the dispatcher path.
func (s *BunSink) ResetModel(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*entryRow)(nil)).IfNotExists().Exec(ctx)
	return err
}
