package cmd

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	app, err := wireApp()
	return buildRootCmd(app, err)
}

func buildRootCmd(app *app, err error) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "chimenet",
		Short:         "chimenet: ring your teammates' chimes over MQTT",
		Long:          "chimenet runs LCGP chime nodes that decide, per mode and custom state, whether an incoming ring plays and how it is answered. It also rings remote chimes, discovers who is on the mesh and keeps a ring history.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ~/.chimenet/config.toml)")
	flags.String("user", "", "user name the chimes belong to")
	flags.String("transport", "", "transport kind: mqtt, redis or memory")
	flags.String("broker", "", "MQTT broker address")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	bindFlags(app, flags, map[string]string{
		keyUser:            "user",
		keyTransportKind:   "transport",
		keyTransportBroker: "broker",
		keyLogLevel:        "log-level",
	})

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return app.load(configFile, cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newNodeCmd(app),
		newRingCmd(app),
		newDiscoverCmd(app),
		newStatesCmd(app),
		newHistoryCmd(app),
		newSecretCmd(app),
	)

	return rootCmd
}
