package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/karsov/opsloop/internal/logging"
)

var (
	cfgFile string
	debug   bool
	rootCmd = &cobra.Command{
		Use:   "opsloop",
		Short: "opsloop runs operational requests through risk-gated role agents",
	}
)

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", filepath.Join(".opsloop", "config.json"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("bind config flag: %w", err)
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	}
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd.Execute()
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = filepath.Join(".opsloop", "config.json")
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
}
