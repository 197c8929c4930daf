package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
)

// Heartbeat calls emit once per interval until its context ends. Each tick
// stands alone: a failed emit is logged and the next tick still happens.
type Heartbeat struct {
	clock    ports.Clock
	interval time.Duration
	emit     func(context.Context) error
	logger   *slog.Logger
}

func NewHeartbeat(clock ports.Clock, interval time.Duration, emit func(context.Context) error, logger *slog.Logger) *Heartbeat {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if interval <= 0 {
		interval = domain.HeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Heartbeat{clock: clock, interval: interval, emit: emit, logger: logger}
}

func (h *Heartbeat) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := h.emit(ctx); err != nil {
				h.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}
