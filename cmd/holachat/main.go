package main

import (
	"os"

	"github.com/spf13/cobra"

	"holachat/pkg/config"
	"holachat/pkg/logger"
)

var (
	cfg         *config.Config
	sessionFile string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "holachat",
	Short: "Terminal client for HolaChat direct messages",
	Long: `holachat talks to the messaging REST API and its websocket broker.

Log in once with 'holachat login'; the session is kept in a JSON file and
shared by every other command. 'holachat listen' stays connected and prints
messages as they arrive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("session-file") {
			loaded.SessionFile = sessionFile
		}
		if cmd.Flags().Changed("metrics-addr") {
			loaded.MetricsAddr = metricsAddr
		}
		cfg = loaded
		logger.Configure(cfg.Environment)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "path of the saved session (default from SESSION_FILE)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while listening")

	rootCmd.AddCommand(loginCmd, logoutCmd, partnersCmd, historyCmd, sendCmd, listenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
