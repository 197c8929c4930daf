package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	statusadapter "github.com/bnema/chimenet/internal/adapters/render/status"
	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/spf13/cobra"
)

const defaultDiscoverWait = 3 * time.Second

func newDiscoverCmd(app *app) *cobra.Command {
	var (
		wait   time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "discover [USER]",
		Short: "Ask chimes on the mesh to announce themselves",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait <= 0 {
				return errors.New("--wait must be positive")
			}

			transport, err := app.dialTransport(cmd.Context(), "discover")
			if err != nil {
				return err
			}
			defer transport.Close()

			registry := application.NewDiscoveryRegistry(ports.SystemClock{}, domain.DiscoveryStaleness)
			collect := func(ctx context.Context) error {
				return collectAnnouncements(ctx, app, transport, registry, wait)
			}

			if asJSON {
				err = collect(cmd.Context())
			} else {
				err = runWaitSpinner(cmd.Context(), cmd.ErrOrStderr(), "Listening for chimes...", app.now().Add(wait), collect)
			}
			if err != nil {
				return err
			}

			user := ""
			if len(args) == 1 {
				user = args[0]
			}
			records := registry.List(user)

			return writeChimesOutput(cmd, app, records, asJSON)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", defaultDiscoverWait, "how long to listen for announcements")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}

// collectAnnouncements subscribes first, then asks for announcements, so
// answers from fast chimes are not lost.
func collectAnnouncements(ctx context.Context, app *app, transport ports.Transport, registry *application.DiscoveryRegistry, wait time.Duration) error {
	listenCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	discovery := application.NewDiscoveryService(registry, transport, ports.SystemClock{}, app.logger)
	messages, err := discovery.Subscribe(listenCtx)
	if err != nil {
		return err
	}

	if err := app.ringer(transport, nil).Discover(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-listenCtx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			if err := discovery.Handle(msg); err != nil {
				app.logger.Debug("ignoring announcement", "topic", msg.Topic, "error", err)
			}
		}
	}
}

func writeChimesOutput(cmd *cobra.Command, app *app, records []domain.RemoteChimeRecord, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []domain.RemoteChimeRecord{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	rendered, err := app.chimesRenderer(records, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: domain.DiscoveryStaleness,
	})
	if err != nil {
		return fmt.Errorf("render chimes: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
