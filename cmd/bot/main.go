package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "signal-bot",
		Short: "Scans spot and futures markets and publishes trade proposals",
		Long: `signal-bot periodically pulls candles from Binance and OKX, detects
EMA cross, breakout and RSI extreme setups, builds entry/stop/take-profit
plans and delivers ranked proposals to Telegram, Kafka and Postgres.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/$CONFIG_FILE or configs/values_local.yaml)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newScanCmd(&configPath))
	root.AddCommand(newValidateCmd(&configPath))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
