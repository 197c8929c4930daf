package silent

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderer := New(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, renderer.Render(context.Background(), []string{"C4"}, nil, time.Second))
	assert.Contains(t, buf.String(), "chime rendered")
	assert.Contains(t, buf.String(), "C4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, renderer.Render(ctx, nil, nil, 0), context.Canceled)
}
