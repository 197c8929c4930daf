package ports

import (
	"context"

	"github.com/bnema/chimenet/internal/domain"
)

type CustomStateRepository interface {
	List(ctx context.Context) ([]domain.CustomState, error)
	Save(ctx context.Context, state domain.CustomState) error
	Delete(ctx context.Context, name string) error
}
