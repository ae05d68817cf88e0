package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/metergate/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Listen:        %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Stats mode:    %s\n", cfg.Stats.Mode)
		fmt.Printf("  Daily driver:  %s (%s)\n", cfg.Daily.Driver, cfg.Daily.Path)
		fmt.Printf("  Daily limit:   %d\n", cfg.Stats.DailyLimit)
		fmt.Printf("  Models:        %d standard, %d express\n",
			len(cfg.Models.Standard), len(cfg.Models.Express))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
