package main

import (
	"fmt"

	"script-agent/internal/config"
	"script-agent/internal/infrastructure/env"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type rootOptions struct {
	configFile string
	envDir     string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "script-agent",
		Short:         "Drive a browser from natural-language command scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envService := env.NewEnvService(opts.envDir)

			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			cfg, err := config.Load(v, opts.configFile, envService)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ./script-agent.yaml)")
	cmd.PersistentFlags().StringVar(&opts.envDir, "env-dir", ".", "directory holding .env files")

	cmd.AddCommand(newServeCmd(opts), newRunCmd(opts))
	return cmd
}
