package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "albaranes",
	Short: "Delivery note service",
	Long:  `Create, render, sign and search delivery notes (albaranes) issued against client projects`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "config directory or file (yaml or .env)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
