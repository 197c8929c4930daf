package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChimeID() string {
	return uuid.NewString()
}

func newNodeCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a chime node",
		Long: `Run a chime node: announce it on the mesh, gate incoming rings by mode and
custom state, answer automatically where the state says so, and read commands
from stdin (type "help").`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode(cmd, app)
		},
	}

	flags := cmd.Flags()
	flags.String("name", "", "chime display name")
	flags.String("chime-id", "", "chime id (default: a new uuid each run)")
	flags.String("description", "", "chime description")
	flags.StringSlice("notes", nil, "notes the chime plays, e.g. C4,E4,G4")
	flags.StringSlice("chords", nil, "chords the chime plays, e.g. C,Am")
	flags.String("mode", "", "initial mode or custom state")
	flags.Bool("example-states", false, "register the Meeting, Focus and Lunch example states")
	flags.String("render", "", "renderer: terminal or silent")
	bindFlags(app, flags, map[string]string{
		keyNodeName:          "name",
		keyNodeChimeID:       "chime-id",
		keyNodeDescription:   "description",
		keyNodeNotes:         "notes",
		keyNodeChords:        "chords",
		keyNodeMode:          "mode",
		keyNodeExampleStates: "example-states",
		keyRenderKind:        "render",
	})

	return cmd
}

func (a *app) nodeConfig() application.NodeConfig {
	chimeID := a.config.GetString(keyNodeChimeID)
	if chimeID == "" {
		chimeID = a.newID()
	}

	return application.NodeConfig{
		User:   a.user(),
		NodeID: a.nodeID(),
		Chime: domain.ChimeInfo{
			ID:          chimeID,
			Name:        a.config.GetString(keyNodeName),
			Description: a.config.GetString(keyNodeDescription),
			Notes:       splitList(a.config.GetStringSlice(keyNodeNotes)),
			Chords:      splitList(a.config.GetStringSlice(keyNodeChords)),
			CreatedAt:   a.now().UTC(),
		},
		HeartbeatInterval: a.config.GetDuration(keyNodeHeartbeat),
		SessionTTL:        a.config.GetDuration(keyNodeSessionTTL),
	}
}

func (a *app) nodeOptions(ctx context.Context, out *lockedWriter) ([]application.NodeOption, error) {
	opts := []application.NodeOption{
		application.WithLogger(a.logger),
		application.WithObserver(nodeObserver(out)),
	}

	if a.config.GetBool(keyNodeExampleStates) {
		states, behaviors := application.ExampleStates()
		opts = append(opts, application.WithCustomStates(states...))
		for name, behavior := range behaviors {
			opts = append(opts, application.WithBehavior(name, behavior))
		}
	}

	stored, err := a.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load custom states: %w", err)
	}
	opts = append(opts, application.WithCustomStates(stored...))

	mode, err := domain.ParseMode(a.config.GetString(keyNodeMode))
	if err != nil {
		return nil, err
	}

	return append(opts, application.WithInitialMode(mode)), nil
}

func runNode(cmd *cobra.Command, app *app) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newLockedWriter(cmd.OutOrStdout())

	cfg := app.nodeConfig()
	opts, err := app.nodeOptions(ctx, out)
	if err != nil {
		return err
	}

	journal, err := app.openJournal()
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
		opts = append(opts, application.WithJournal(journal))
	}

	renderer, err := app.newRenderer(out)
	if err != nil {
		return err
	}

	transport, err := app.dialTransport(ctx, "node")
	if err != nil {
		return err
	}
	defer transport.Close()

	node, err := application.NewNode(cfg, transport, renderer, opts...)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	registry := application.NewDiscoveryRegistry(ports.SystemClock{}, domain.DiscoveryStaleness)
	discovery := application.NewDiscoveryService(registry, transport, ports.SystemClock{}, app.logger,
		application.SkipUser(cfg.User))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	nodeErr := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		nodeErr <- node.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		if err := discovery.Run(runCtx); err != nil {
			app.logger.Warn("discovery stopped", "error", err)
		}
	}()

	select {
	case <-node.Ready():
	case err := <-nodeErr:
		cancel()
		wg.Wait()
		return err
	}

	state, err := node.ActiveState(runCtx)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}
	out.Printf("chime %s/%s (%s) ready, mode %s\n", cfg.User, cfg.Chime.ID, cfg.Chime.Name, state.Mode.Label())

	shell := &nodeShell{app: app, node: node, registry: registry, out: out}
	quit := make(chan struct{})
	go func() {
		if shell.run(runCtx, cmd.InOrStdin()) {
			close(quit)
		}
	}()

	select {
	case <-ctx.Done():
	case <-quit:
	case err := <-nodeErr:
		cancel()
		wg.Wait()
		return err
	}

	cancel()
	wg.Wait()
	if err := <-nodeErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	out.Printf("chime %s/%s stopped\n", cfg.User, cfg.Chime.ID)
	return nil
}

// nodeObserver prints ring activity. It runs on the node goroutine and only
// writes.
func nodeObserver(out *lockedWriter) func(application.NodeEvent) {
	return func(event application.NodeEvent) {
		req := event.Request
		switch event.Kind {
		case application.EventRingReceived:
			out.Printf("ring %s from %s\n", req.RequestID, req.FromNode)
		case application.EventRingDropped:
			out.Printf("ring %s from %s dropped\n", req.RequestID, req.FromNode)
		case application.EventSessionOpen:
			if event.Decision.HasAutoResponse() {
				out.Printf("ring %s pending, auto %s in %s (respond %s yes|no)\n",
					req.RequestID, event.Decision.AutoResponse, event.Decision.Delay, req.RequestID)
			} else {
				out.Printf("ring %s pending (respond %s yes|no)\n", req.RequestID, req.RequestID)
			}
		case application.EventResponded:
			how := "manual"
			if event.Auto {
				how = "auto"
			}
			out.Printf("ring %s answered %s (%s)\n", req.RequestID, event.Response, how)
		case application.EventExpired:
			out.Printf("ring %s expired\n", req.RequestID)
		case application.EventModeChanged:
			out.Printf("mode is now %s\n", event.Mode.Label())
		}
	}
}

func describeMode(mode domain.Mode) string {
	if mode.IsZero() {
		return "unknown"
	}

	return strings.TrimSpace(mode.Label())
}
