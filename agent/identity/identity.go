package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
)

// Service owns the operator identity. The identity is claimed through an
// explicit operation exactly once; there is no implicit "first chat wins"
// registration.
type Service struct {
	store storage.AdminStore
}

func NewService(store storage.AdminStore) *Service {
	return &Service{store: store}
}

// Claim registers chatKey as the operator. A second claim fails, including a
// repeat claim by the same key.
func (s *Service) Claim(ctx context.Context, chatKey string) error {
	if strings.TrimSpace(chatKey) == "" {
		return fmt.Errorf("%w: chat key is required", contractx.ErrValidation)
	}
	if err := s.store.SetAdmin(ctx, chatKey); err != nil {
		if errors.Is(err, storage.ErrAdminAlreadySet) {
			return fmt.Errorf("%w: operator identity is already claimed", contractx.ErrPrecondition)
		}
		return err
	}
	log.Info().Str("chat_key", chatKey).Msg("operator identity claimed")
	return nil
}

// Verify reports whether chatKey is the registered operator. An unclaimed
// identity verifies nobody.
func (s *Service) Verify(ctx context.Context, chatKey string) (bool, error) {
	admin, err := s.store.Admin(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return admin == chatKey, nil
}

// EnsureClaimed registers chatKey if no operator exists yet and reports
// whether the caller is the operator afterwards.
func (s *Service) EnsureClaimed(ctx context.Context, chatKey string) (bool, error) {
	ok, err := s.Verify(ctx, chatKey)
	if err != nil || ok {
		return ok, err
	}
	if _, err := s.store.Admin(ctx); err == nil {
		return false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if err := s.Claim(ctx, chatKey); err != nil {
		return false, err
	}
	return true, nil
}
