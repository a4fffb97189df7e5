package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeSummarizer struct {
	calls int
	fail  bool
}

func (f *fakeSummarizer) Summarize(_ context.Context, previous, dropped string) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("summarizer down")
	}
	return "sammanfattning: " + previous + dropped, nil
}

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	return func() time.Time { return current }, func(d time.Duration) { current = current.Add(d) }
}

func TestManagerHistoryNeverExceedsMaxTurns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now, _ := testClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	mgr := NewManager(NewMemoryStore(), ManagerConfig{MaxTurns: 5, IdleTimeout: time.Hour}, nil).WithClock(now)

	// Append in uneven batch sizes; the retained log must stay bounded after
	// every batch.
	total := 0
	for _, batch := range []int{1, 3, 7, 2, 9, 1} {
		st, _, err := mgr.Open(ctx, "conv-1")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		var turns []Turn
		for i := 0; i < batch; i++ {
			total++
			turns = append(turns, UserTurn(now(), fmt.Sprintf("message %d", total)))
		}
		if err := mgr.Append(ctx, st, turns...); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		history, err := mgr.History(ctx, "conv-1", 0)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(history) > 5 {
			t.Fatalf("history length = %d after %d appends, cap is 5", len(history), total)
		}
	}

	// The retained tail must be the most recent turns.
	history, _ := mgr.History(ctx, "conv-1", 0)
	last := history[len(history)-1]
	if got := last.Blocks[0].Text; got != fmt.Sprintf("message %d", total) {
		t.Fatalf("newest retained turn = %q, want message %d", got, total)
	}
}

func TestManagerIdleTimeoutResetsSilently(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now, advance := testClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	mgr := NewManager(NewMemoryStore(), ManagerConfig{MaxTurns: 10, IdleTimeout: 30 * time.Minute}, nil).WithClock(now)

	st, reset, err := mgr.Open(ctx, "conv-idle")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if reset {
		t.Fatal("fresh conversation must not report reset")
	}
	if err := mgr.Append(ctx, st, UserTurn(now(), "hej"), AssistantTurn(now(), "hej själv", nil)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Within the timeout the history survives.
	advance(29 * time.Minute)
	st, reset, err = mgr.Open(ctx, "conv-idle")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if reset || len(st.Turns) != 2 {
		t.Fatalf("reset = %v, turns = %d, want no reset with 2 turns", reset, len(st.Turns))
	}

	// Past the timeout the next open resets and reports it.
	advance(32 * time.Minute)
	st, reset, err = mgr.Open(ctx, "conv-idle")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !reset {
		t.Fatal("expected reset after idle timeout")
	}
	if len(st.Turns) != 0 || st.Summary != "" {
		t.Fatalf("turns = %d, summary = %q, want cleared state", len(st.Turns), st.Summary)
	}

	if err := mgr.Append(ctx, st, UserTurn(now(), "ny fråga")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	history, _ := mgr.History(ctx, "conv-idle", 0)
	if len(history) != 1 {
		t.Fatalf("history after reset = %d turns, want only the new turn", len(history))
	}
}

func TestManagerSummarizesPrunedTurns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now, _ := testClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	sum := &fakeSummarizer{}
	mgr := NewManager(NewMemoryStore(), ManagerConfig{MaxTurns: 3, IdleTimeout: time.Hour}, sum).WithClock(now)

	st, _, _ := mgr.Open(ctx, "conv-sum")
	var turns []Turn
	for i := 0; i < 6; i++ {
		turns = append(turns, UserTurn(now(), fmt.Sprintf("m%d", i)))
	}
	if err := mgr.Append(ctx, st, turns...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if sum.calls != 1 {
		t.Fatalf("summarizer calls = %d, want 1", sum.calls)
	}

	loaded, _, _ := mgr.Open(ctx, "conv-sum")
	if loaded.Summary == "" {
		t.Fatal("expected a rolling summary after pruning")
	}
	if len(loaded.Turns) != 3 {
		t.Fatalf("retained turns = %d, want 3", len(loaded.Turns))
	}
}

func TestManagerSummarizerFailureDoesNotFailAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now, _ := testClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	mgr := NewManager(NewMemoryStore(), ManagerConfig{MaxTurns: 2, IdleTimeout: time.Hour}, &fakeSummarizer{fail: true}).WithClock(now)

	st, _, _ := mgr.Open(ctx, "conv-fail")
	var turns []Turn
	for i := 0; i < 5; i++ {
		turns = append(turns, UserTurn(now(), fmt.Sprintf("m%d", i)))
	}
	if err := mgr.Append(ctx, st, turns...); err != nil {
		t.Fatalf("Append() must tolerate summarizer failure, got %v", err)
	}
	if len(st.Turns) != 2 {
		t.Fatalf("retained turns = %d, want 2", len(st.Turns))
	}
}
