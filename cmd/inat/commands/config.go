package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(newConfigViewCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := map[string]interface{}{
				"api":     viper.GetString("api"),
				"output":  viper.GetString("output"),
				"verbose": viper.GetBool("verbose"),
			}

			if viper.GetString("token") != "" {
				settings["token"] = "<set>"
			}

			handled, err := renderStructured(settings)
			if err != nil {
				return err
			}

			if !handled {
				for _, key := range []string{"api", "output", "token", "verbose"} {
					if value, ok := settings[key]; ok {
						fmt.Printf("%s: %v\n", key, value)
					}
				}
			}

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set(args[0], args[1])

			if err := viper.WriteConfig(); err != nil {
				configHome, homeErr := os.UserConfigDir()
				if homeErr != nil {
					return fmt.Errorf("resolving config directory: %w", homeErr)
				}

				path := filepath.Join(configHome, "inat", "config.yml")
				if err := viper.WriteConfigAs(path); err != nil {
					return fmt.Errorf("writing config: %w", err)
				}
			}

			fmt.Printf("Set %s\n", args[0])

			return nil
		},
	}
}
