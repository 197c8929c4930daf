package silent

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/chimenet/internal/ports"
)

// Renderer only logs the ring. Headless nodes use it.
type Renderer struct {
	logger *slog.Logger
}

var _ ports.Renderer = (*Renderer)(nil)

func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Renderer{logger: logger}
}

func (r *Renderer) Render(ctx context.Context, notes, chords []string, duration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.logger.Info("chime rendered", "notes", notes, "chords", chords, "duration", duration)
	return nil
}
