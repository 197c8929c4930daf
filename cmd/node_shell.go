package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	statusadapter "github.com/bnema/chimenet/internal/adapters/render/status"
	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
)

const shellHelp = `commands:
  status                      show mode, conditions, states and pending rings
  mode [MODE|auto]            show or set the mode; auto drops the manual override
  respond [REQUEST_ID] yes|no answer a pending ring (latest when no id is given)
  condition KEY VALUE|clear   set or clear a condition (true/false or a number)
  states                      list custom states
  pending                     list pending rings
  chimes                      list chimes seen on the mesh
  quit                        stop the node`

var errQuit = errors.New("quit")

// nodeShell drives a running node from line commands.
type nodeShell struct {
	app      *app
	node     *application.Node
	registry *application.DiscoveryRegistry
	out      *lockedWriter
}

// run reads commands until quit, EOF or ctx is done. It reports whether the
// user asked to quit.
func (s *nodeShell) run(ctx context.Context, in io.Reader) bool {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return false
		}

		err := s.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return true
		}
		if err != nil {
			s.out.Printf("error: %v\n", err)
		}
	}

	return false
}

func (s *nodeShell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	command, args := strings.ToLower(fields[0]), fields[1:]
	switch command {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		s.out.Printf("%s\n", shellHelp)
		return nil
	case "status":
		return s.status(ctx)
	case "mode":
		return s.mode(ctx, args)
	case "respond":
		return s.respond(ctx, args)
	case "yes", "no":
		return s.respond(ctx, []string{command})
	case "condition":
		return s.condition(ctx, args)
	case "states":
		return s.states(ctx)
	case "pending":
		return s.pending(ctx)
	case "chimes":
		return s.chimes()
	default:
		return fmt.Errorf("unknown command %q (try help)", command)
	}
}

func (s *nodeShell) status(ctx context.Context) error {
	snapshot, err := s.node.Snapshot(ctx)
	if err != nil {
		return err
	}

	rendered, err := s.app.nodeRenderer(snapshot, statusadapter.RenderOptions{Now: s.app.now()})
	if err != nil {
		return fmt.Errorf("render node status: %w", err)
	}

	s.out.Printf("%s\n", rendered)
	return nil
}

func (s *nodeShell) mode(ctx context.Context, args []string) error {
	if len(args) == 0 {
		state, err := s.node.ActiveState(ctx)
		if err != nil {
			return err
		}
		s.out.Printf("mode %s\n", describeMode(state.Mode))
		return nil
	}

	if strings.EqualFold(args[0], "auto") {
		return s.node.ClearOverride(ctx)
	}

	mode, err := domain.ParseMode(args[0])
	if err != nil {
		return err
	}

	return s.node.SetMode(ctx, mode)
}

func (s *nodeShell) respond(ctx context.Context, args []string) error {
	var requestID, answer string
	switch len(args) {
	case 1:
		answer = args[0]
	case 2:
		requestID, answer = args[0], args[1]
	default:
		return errors.New("usage: respond [REQUEST_ID] yes|no")
	}

	kind, err := domain.ParseResponseKind(answer)
	if err != nil {
		return err
	}

	session, err := s.node.Respond(ctx, requestID, kind)
	if err != nil {
		return err
	}

	s.out.Printf("answered %s %s\n", session.RequestID, kind)
	return nil
}

func (s *nodeShell) condition(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: condition KEY VALUE|clear")
	}

	key := args[0]
	if strings.EqualFold(args[1], "clear") {
		return s.node.ClearCondition(ctx, key)
	}

	value, err := domain.ParseConditionValue(args[1])
	if err != nil {
		return err
	}

	return s.node.SetCondition(ctx, key, value)
}

func (s *nodeShell) states(ctx context.Context) error {
	snapshot, err := s.node.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snapshot.States) == 0 {
		s.out.Printf("no custom states\n")
		return nil
	}

	for _, state := range snapshot.States {
		s.out.Printf("%s\n", describeState(state))
	}

	return nil
}

func (s *nodeShell) pending(ctx context.Context) error {
	sessions, err := s.node.PendingSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		s.out.Printf("no pending rings\n")
		return nil
	}

	for _, session := range sessions {
		line := fmt.Sprintf("%s from %s", session.RequestID, session.FromNode)
		if session.Deadline != nil {
			line += fmt.Sprintf(", auto %s at %s", session.AutoResponse, session.Deadline.Format("15:04:05"))
		}
		s.out.Printf("%s\n", line)
	}

	return nil
}

func (s *nodeShell) chimes() error {
	rendered, err := s.app.chimesRenderer(s.registry.List(""), statusadapter.RenderOptions{
		Now:        s.app.now(),
		StaleAfter: domain.DiscoveryStaleness,
	})
	if err != nil {
		return fmt.Errorf("render chimes: %w", err)
	}

	s.out.Printf("%s\n", rendered)
	return nil
}

func describeState(state domain.CustomState) string {
	parts := []string{fmt.Sprintf("%s (priority %d)", state.Name, state.Priority)}
	if state.ShouldChime {
		parts = append(parts, "chimes")
	} else {
		parts = append(parts, "silent")
	}
	if state.AutoResponse != "" && state.AutoResponseDelay != nil {
		parts = append(parts, fmt.Sprintf("auto %s after %s", state.AutoResponse, *state.AutoResponseDelay))
	}
	if state.ActiveHours != nil {
		parts = append(parts, "hours "+state.ActiveHours.String())
	}
	for _, condition := range state.Conditions {
		parts = append(parts, "if "+condition.String())
	}
	line := strings.Join(parts, ", ")
	if state.Description != "" {
		line += " - " + state.Description
	}

	return line
}
