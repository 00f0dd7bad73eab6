// Command server runs the LAN party billing API and its companion tools.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/lanparty/internal/config"
	"github.com/iliyamo/lanparty/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "lanparty",
	Short: "LAN party billing server",
	Long: `lanparty serves the billing API for LAN party events: guest costs,
consumption tracking, tips and settlements with QR payment codes.
Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.  It
// is called after the .env file has been loaded.
func newLogger() *logrus.Logger {
	return logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}
