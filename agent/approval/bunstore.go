package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

type approvableRow struct {
	bun.BaseModel `bun:"table:approvables"`

	ID           string         `bun:"id,pk"`
	Kind         Kind           `bun:"kind,notnull"`
	Status       Status         `bun:"status,notnull"`
	Title        string         `bun:"title"`
	Body         string         `bun:"body"`
	EntityRef    string         `bun:"entity_ref"`
	Extra        map[string]any `bun:"extra,type:jsonb"`
	RejectReason string         `bun:"reject_reason"`
	ResubmitOf   string         `bun:"resubmit_of"`
	CreatedAt    time.Time      `bun:"created_at,notnull"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull"`
}

// BunStore persists approvables in Postgres. Transitions are conditional
// updates (WHERE id AND status), so two concurrent conflicting calls resolve
// in the database: exactly one sees a row affected.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Insert(ctx context.Context, a *Approvable) error {
	row := toRow(a)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert approvable: %w", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, id string) (*Approvable, error) {
	var row approvableRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: approvable %s not found", contractx.ErrValidation, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load approvable: %w", err)
	}
	return fromRow(&row), nil
}

func (s *BunStore) Transition(ctx context.Context, id string, from, to Status, reason string, now time.Time) (bool, error) {
	q := s.db.NewUpdate().
		Model((*approvableRow)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ? AND status = ?", id, from)
	if reason != "" {
		q = q.Set("reject_reason = ?", reason)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("transition approvable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition approvable: %w", err)
	}
	return affected == 1, nil
}

func (s *BunStore) UpdateContent(ctx context.Context, id, title, body string, extra map[string]any, now time.Time) (bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	mergedExtra := current.Extra
	if len(extra) > 0 {
		if mergedExtra == nil {
			mergedExtra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			mergedExtra[k] = v
		}
	}

	q := s.db.NewUpdate().
		Model((*approvableRow)(nil)).
		Set("updated_at = ?", now).
		Set("extra = ?", mergedExtra).
		Where("id = ? AND status = ?", id, StatusDraft)
	if title != "" {
		q = q.Set("title = ?", title)
	}
	if body != "" {
		q = q.Set("body = ?", body)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update approvable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update approvable: %w", err)
	}
	return affected == 1, nil
}

func (s *BunStore) List(ctx context.Context, kind Kind, status Status) ([]*Approvable, error) {
	var rows []approvableRow
	q := s.db.NewSelect().Model(&rows).Order("created_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list approvables: %w", err)
	}
	out := make([]*Approvable, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

func (s *BunStore) ResetModel(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*approvableRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

func toRow(a *Approvable) approvableRow {
	return approvableRow{
		ID:           a.ID,
		Kind:         a.Kind,
		Status:       a.Status,
		Title:        a.Title,
		Body:         a.Body,
		EntityRef:    a.EntityRef,
		Extra:        a.Extra,
		RejectReason: a.RejectReason,
		ResubmitOf:   a.ResubmitOf,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
}

func fromRow(row *approvableRow) *Approvable {
	return &Approvable{
		ID:           row.ID,
		Kind:         row.Kind,
		Status:       row.Status,
		Title:        row.Title,
		Body:         row.Body,
		EntityRef:    row.EntityRef,
		Extra:        row.Extra,
		RejectReason: row.RejectReason,
		ResubmitOf:   row.ResubmitOf,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
