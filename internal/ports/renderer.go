package ports

import (
	"context"
	"time"
)

type Renderer interface {
	Render(ctx context.Context, notes, chords []string, duration time.Duration) error
}
