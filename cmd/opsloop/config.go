package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage opsloop configuration",
	}
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file against the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			workRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(workRoot)
			if err != nil {
				return err
			}
			fmt.Printf("Config OK: provider=%s model=%s\n", cfg.Provider.Name, cfg.Provider.Model)
			return nil
		},
	}
}
