package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/earlybot/core/buildinfo"
	corecmd "github.com/m3rciful/earlybot/core/cmd"
	"github.com/m3rciful/earlybot/internal/app"
)

const configEnvVar = "CONFIG_PATH"

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "earlybot",
		Short:         "Early-access onboarding and broadcast bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return serve(cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to the YAML config (default $"+configEnvVar+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return serve(cfgFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				cfg, err := app.LoadConfig(resolvePath(cfgFile))
				if err != nil {
					return err
				}
				return app.Migrate(cfg)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			},
		},
	)
	return root
}

func serve(cfgFile string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:   cfgFile,
		ConfigEnvVar: configEnvVar,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	})
}

func resolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(configEnvVar)
}
