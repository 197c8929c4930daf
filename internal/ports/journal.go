package ports

import (
	"context"

	"github.com/bnema/chimenet/internal/domain"
)

type Journal interface {
	Append(ctx context.Context, entry domain.JournalEntry) error
	// List returns the most recent entries first, at most limit of them.
	List(ctx context.Context, limit int) ([]domain.JournalEntry, error)
	Close() error
}
