package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/lanparty/internal/config"
	"github.com/iliyamo/lanparty/internal/queue"
)

func init() {
	rootCmd.AddCommand(consumeCmd)
	consumeCmd.Flags().String("journal-dir", "", "Directory for the event journals (default QUEUE_JOURNAL_DIR)")
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Journal settlement and consumption events from RabbitMQ",
	Args:  cobra.NoArgs,
	RunE:  runConsume,
}

func runConsume(cmd *cobra.Command, args []string) error {
	qcfg := config.LoadQueueConfig()
	if dir, _ := cmd.Flags().GetString("journal-dir"); dir != "" {
		qcfg.JournalDir = dir
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("dir", qcfg.JournalDir).Info("event consumer started")
	err := queue.NewConsumer(qcfg.URL, qcfg.JournalDir, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
