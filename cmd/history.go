package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent rings from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, err := app.openJournal()
			if err != nil {
				return err
			}
			if journal == nil {
				return errors.New("journal is disabled (journal.path is empty)")
			}
			defer journal.Close()

			entries, err := journal.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if asJSON {
				if entries == nil {
					entries = []domain.JournalEntry{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No rings recorded yet.")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TIME\tEVENT\tCHIME\tPEER\tREQUEST\tDETAIL")
			for _, entry := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%s\n",
					entry.At.Local().Format(time.DateTime),
					entry.Event,
					entry.User, entry.ChimeID,
					dash(entry.Peer),
					entry.RequestID,
					dash(historyDetail(entry)),
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")

	return cmd
}

func historyDetail(entry domain.JournalEntry) string {
	var parts []string
	if entry.Mode != "" {
		parts = append(parts, "mode "+entry.Mode)
	}
	if entry.Response != "" {
		parts = append(parts, string(entry.Response))
	}
	if entry.Detail != "" {
		parts = append(parts, entry.Detail)
	}

	return strings.Join(parts, " ")
}

func dash(value string) string {
	if value == "" {
		return "-"
	}

	return value
}
