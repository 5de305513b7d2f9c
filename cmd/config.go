package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeanhaley/personal-chat-bot/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager(a.configPath)
			manager.SetEnvFile(a.envFile)
			return manager.InitializeConfig()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager(a.configPath)
			manager.SetEnvFile(a.envFile)
			if err := manager.Load(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			redacted := manager.GetConfig().Redacted()

			var (
				data []byte
				err  error
			)
			switch format {
			case "yaml":
				data, err = yaml.Marshal(&redacted)
			case "json":
				data, err = json.MarshalIndent(&redacted, "", "  ")
				data = append(data, '\n')
			default:
				return fmt.Errorf("unknown format %q - use yaml or json", format)
			}
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	showCmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format: yaml or json")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.NewManager(a.configPath).GetConfigPath())
		},
	}

	configCmd.AddCommand(initCmd, showCmd, pathCmd)
	return configCmd
}
