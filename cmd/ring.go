package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/chimenet/internal/application"
	"github.com/spf13/cobra"
)

func newRingCmd(app *app) *cobra.Command {
	var (
		notes    []string
		chords   []string
		duration time.Duration
		wait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ring USER/CHIME",
		Short: "Ring a remote chime",
		Example: `  chimenet ring alice/desk
  chimenet ring alice/desk --notes C4,E4,G4 --duration 300ms
  chimenet ring alice/desk --chords Am,F --wait 30s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := application.ParseRingTarget(args[0])
			if err != nil {
				return err
			}
			if duration < 0 || wait < 0 {
				return errors.New("--duration and --wait must not be negative")
			}

			journal, err := app.openJournal()
			if err != nil {
				return err
			}
			if journal != nil {
				defer journal.Close()
			}

			transport, err := app.dialTransport(cmd.Context(), "ring")
			if err != nil {
				return err
			}
			defer transport.Close()

			ringer := app.ringer(transport, journalPort(journal))
			opts := application.RingOptions{
				Notes:    splitList(notes),
				Chords:   splitList(chords),
				Duration: duration,
			}

			if wait == 0 {
				req, err := ringer.Ring(cmd.Context(), target, opts)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "rang %s/%s (request %s)\n", target.User, target.ChimeID, req.RequestID)
				return err
			}

			req, response, err := ringer.RingAndWait(cmd.Context(), target, opts, wait)
			if err != nil {
				if errors.Is(err, application.ErrNoResponse) {
					return fmt.Errorf("%s/%s did not answer within %s (request %s)", target.User, target.ChimeID, wait, req.RequestID)
				}
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s/%s answered %s (request %s)\n", target.User, target.ChimeID, response.Kind, req.RequestID)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&notes, "notes", nil, "notes to play, e.g. C4,E4,G4")
	flags.StringSliceVar(&chords, "chords", nil, "chords to play, e.g. C,Am")
	flags.DurationVar(&duration, "duration", 0, "duration of each note or chord (default 500ms on the chime)")
	flags.DurationVar(&wait, "wait", 0, "wait this long for the chime to answer")

	return cmd
}
