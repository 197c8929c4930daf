package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/chimenet/internal/adapters/secrets/file"
	passstore "github.com/bnema/chimenet/internal/adapters/secrets/pass"
	"github.com/bnema/chimenet/internal/ports"
)

// Store tries primary first and falls back to the second store on any error
// other than cancellation.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

// NewPassFirstWithFileFallback is the default credential store: pass entries
// below prefix, then plain files under fileRoot.
func NewPassFirstWithFileFallback(prefix, fileRoot string) (*Store, error) {
	return NewStore(passstore.NewStore(prefix), filestore.NewStore(fileRoot))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil || skipFallback(err) {
		return err
	}

	if fallbackErr := s.fallback.Put(ctx, key, value); fallbackErr != nil {
		return fmt.Errorf("store secret %q: primary: %w; fallback: %w", key, err, fallbackErr)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil || skipFallback(err) {
		return value, err
	}

	value, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr != nil {
		return "", fmt.Errorf("load secret %q: primary: %w; fallback: %w", key, err, fallbackErr)
	}

	return value, nil
}

// Delete clears both stores so a stale fallback copy cannot resurface.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if skipFallback(err) {
		return err
	}

	// Either store succeeding counts as deleted.
	if fallbackErr := s.fallback.Delete(ctx, key); err != nil && fallbackErr != nil {
		return fmt.Errorf("delete secret %q: primary: %w; fallback: %w", key, err, fallbackErr)
	}

	return nil
}

func skipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
