package identity

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
)

func TestClaimIsExactlyOnce(t *testing.T) {
	t.Parallel()

	svc := NewService(storage.NewMemoryStore())
	ctx := context.Background()

	if err := svc.Claim(ctx, "chat-1"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if err := svc.Claim(ctx, "chat-2"); !errors.Is(err, contractx.ErrPrecondition) {
		t.Fatalf("second Claim() error = %v, want ErrPrecondition", err)
	}
	// A repeat claim by the holder is also rejected; the claim is a one-shot
	// operation, not an upsert.
	if err := svc.Claim(ctx, "chat-1"); !errors.Is(err, contractx.ErrPrecondition) {
		t.Fatalf("repeat Claim() error = %v, want ErrPrecondition", err)
	}

	ok, err := svc.Verify(ctx, "chat-1")
	if err != nil || !ok {
		t.Fatalf("Verify(chat-1) = %v, %v", ok, err)
	}
	ok, err = svc.Verify(ctx, "chat-2")
	if err != nil || ok {
		t.Fatalf("Verify(chat-2) = %v, %v", ok, err)
	}
}

func TestClaimValidatesKey(t *testing.T) {
	t.Parallel()

	svc := NewService(storage.NewMemoryStore())
	if err := svc.Claim(context.Background(), "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Claim() error = %v, want ErrValidation", err)
	}
}

func TestVerifyUnclaimed(t *testing.T) {
	t.Parallel()

	svc := NewService(storage.NewMemoryStore())
	ok, err := svc.Verify(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatal("unclaimed identity must verify nobody")
	}
}

func TestEnsureClaimed(t *testing.T) {
	t.Parallel()

	svc := NewService(storage.NewMemoryStore())
	ctx := context.Background()

	ok, err := svc.EnsureClaimed(ctx, "chat-1")
	if err != nil || !ok {
		t.Fatalf("EnsureClaimed(chat-1) = %v, %v", ok, err)
	}
	// Idempotent for the holder.
	ok, err = svc.EnsureClaimed(ctx, "chat-1")
	if err != nil || !ok {
		t.Fatalf("second EnsureClaimed(chat-1) = %v, %v", ok, err)
	}
	// Everyone else stays unverified.
	ok, err = svc.EnsureClaimed(ctx, "chat-2")
	if err != nil {
		t.Fatalf("EnsureClaimed(chat-2) error = %v", err)
	}
	if ok {
		t.Fatal("a second chat must not take over the operator identity")
	}
}
