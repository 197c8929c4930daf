package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSecretCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage transport credentials",
		Long: `Store broker passwords outside the config file. Point
transport.password_secret at the key to use it when dialing.`,
	}

	cmd.AddCommand(newSecretSetCmd(app), newSecretRemoveCmd(app))
	return cmd
}

func newSecretSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "set KEY",
		Short:   "Store a secret read from the first line of stdin",
		Example: `  printf '%s\n' "$MQTT_PASSWORD" | chimenet secret set mqtt/broker`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecretLine(cmd)
			if err != nil {
				return err
			}

			store, err := app.secretStore()
			if err != nil {
				return err
			}
			if err := store.Put(cmd.Context(), args[0], value); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored secret %s\n", args[0])
			return err
		},
	}
}

func newSecretRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove KEY",
		Aliases: []string{"rm"},
		Short:   "Remove a stored secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.secretStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed secret %s\n", args[0])
			return err
		},
	}
}

func readSecretLine(cmd *cobra.Command) (string, error) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return "", errors.New("read secret: stdin is empty")
	}

	value := strings.TrimSpace(scanner.Text())
	if value == "" {
		return "", errors.New("read secret: value is empty")
	}

	return value, nil
}
