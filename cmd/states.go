package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tomlrepo "github.com/bnema/chimenet/internal/adapters/repo/toml"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/spf13/cobra"
)

func newStatesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "states",
		Short: "Manage custom states",
	}

	cmd.AddCommand(newStatesListCmd(app), newStatesAddCmd(app), newStatesRemoveCmd(app))
	return cmd
}

func newStatesListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List custom states",
		RunE: func(cmd *cobra.Command, _ []string) error {
			states, err := app.states.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(states) == 0 {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "no custom states in %s\n", app.states.Path())
				return err
			}

			for _, state := range states {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), describeState(state)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newStatesAddCmd(app *app) *cobra.Command {
	var (
		description  string
		chime        bool
		autoResponse string
		delay        time.Duration
		priority     uint8
		hours        string
		days         []string
		conditions   []string
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a custom state",
		Example: `  chimenet states add Lunch --chime --auto-response yes --delay 5s --priority 75 --hours 12:00-13:00
  chimenet states add Gym --auto-response no --delay 2s --when user_presence=false
  chimenet states add Busy --when system_load>=0.9 --when on_call=true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := domain.CustomState{
				Name:        args[0],
				Description: description,
				ShouldChime: chime,
				Priority:    priority,
			}

			if autoResponse != "" {
				kind, err := domain.ParseResponseKind(autoResponse)
				if err != nil {
					return err
				}
				state.AutoResponse = kind
				state.AutoResponseDelay = domain.DelayPtr(delay)
			} else if cmd.Flags().Changed("delay") {
				state.AutoResponseDelay = domain.DelayPtr(delay)
			}

			if hours != "" {
				window, err := parseTimeWindow(hours, days)
				if err != nil {
					return err
				}
				state.ActiveHours = &window
			}

			for _, raw := range conditions {
				condition, err := parseCondition(raw)
				if err != nil {
					return err
				}
				state.Conditions = append(state.Conditions, condition)
			}

			if err := app.states.Save(cmd.Context(), state); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", describeState(state))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&description, "description", "", "what the state is for")
	flags.BoolVar(&chime, "chime", false, "play incoming rings while in this state")
	flags.StringVar(&autoResponse, "auto-response", "", "answer automatically: yes or no")
	flags.DurationVar(&delay, "delay", 0, "wait this long before the automatic answer")
	flags.Uint8Var(&priority, "priority", 0, "higher priority wins when several states apply")
	flags.StringVar(&hours, "hours", "", "active hours, e.g. 09:00-17:00 (wraps midnight when start > end)")
	flags.StringSliceVar(&days, "days", nil, "active days, e.g. mon,tue (default: every day)")
	flags.StringArrayVar(&conditions, "when", nil, "condition, e.g. user_presence=true, system_load>=0.8, focus_mode=true")

	return cmd
}

func newStatesRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a custom state",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.states.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return err
		},
	}
}

// parseTimeWindow reads "HH:MM-HH:MM". No days means every day.
func parseTimeWindow(raw string, days []string) (domain.TimeRange, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return domain.TimeRange{}, fmt.Errorf("time window %q: expected HH:MM-HH:MM", raw)
	}

	start, err := time.Parse("15:04", strings.TrimSpace(startRaw))
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("time window %q: bad start", raw)
	}
	end, err := time.Parse("15:04", strings.TrimSpace(endRaw))
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("time window %q: bad end", raw)
	}

	window := domain.TimeRange{
		StartHour:   start.Hour(),
		StartMinute: start.Minute(),
		EndHour:     end.Hour(),
		EndMinute:   end.Minute(),
		Days:        domain.EveryDay,
	}

	if names := splitList(days); len(names) > 0 {
		window.Days = nil
		for _, name := range names {
			day, err := tomlrepo.ParseWeekday(name)
			if err != nil {
				return domain.TimeRange{}, err
			}
			window.Days = append(window.Days, day)
		}
	}

	return window, nil
}

func parseCondition(raw string) (domain.Condition, error) {
	if key, threshold, ok := strings.Cut(raw, ">="); ok {
		if domain.ConditionKind(strings.TrimSpace(key)) != domain.ConditionSystemLoad {
			return domain.Condition{}, fmt.Errorf("condition %q: only system_load takes a threshold", raw)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(threshold), 64)
		if err != nil {
			return domain.Condition{}, fmt.Errorf("condition %q: bad threshold", raw)
		}
		return domain.SystemLoadAtLeast(value), nil
	}

	key, value, hasValue := strings.Cut(raw, "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)

	switch domain.ConditionKind(key) {
	case domain.ConditionUserPresence, domain.ConditionCalendarBusy, domain.ConditionNetworkActivity:
		expect := true
		if hasValue {
			parsed, err := domain.ParseConditionValue(value)
			if err != nil || parsed.IsNumber {
				return domain.Condition{}, fmt.Errorf("condition %q: expected true or false", raw)
			}
			expect = parsed.Bool
		}
		return domain.Condition{Kind: domain.ConditionKind(key), Expect: expect}, nil
	case domain.ConditionSystemLoad:
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return domain.Condition{}, fmt.Errorf("condition %q: bad threshold", raw)
		}
		return domain.SystemLoadAtLeast(threshold), nil
	case domain.ConditionTimeRange:
		window, err := parseTimeWindow(value, nil)
		if err != nil {
			return domain.Condition{}, err
		}
		return domain.WithinTimeRange(window), nil
	}

	if !hasValue || key == "" {
		return domain.Condition{}, fmt.Errorf("condition %q: expected key=value", raw)
	}

	condition := domain.CustomCondition(key, value)
	if err := condition.Validate(); err != nil {
		return domain.Condition{}, fmt.Errorf("condition %q: %w", raw, err)
	}

	return condition, nil
}
