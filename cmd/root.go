package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vinfill",
	Short: "VIN decode enrichment for commercial vehicle listings",
	Long:  "Decodes VINs against NHTSA vPIC and EPA fuel economy data, reconciles the result into listing drafts, and serves the listing wizard API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
