package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shano/email-to-remarkable-sync/internal/config"
	"github.com/shano/email-to-remarkable-sync/internal/email"
	"github.com/shano/email-to-remarkable-sync/internal/logger"
	"github.com/shano/email-to-remarkable-sync/internal/remarkable"
	"github.com/shano/email-to-remarkable-sync/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "email-to-remarkable",
	Short: "Send unread email PDF attachments to a reMarkable cloud folder",
	Long: `email-to-remarkable scans a mailbox for unread messages, uploads every
PDF attachment to a folder on the reMarkable cloud, and marks a message
read once all of its attachments are stored. Messages without PDF
attachments stay unread.

Configuration comes from environment variables (or a local .env file).
EMAIL_USERNAME, EMAIL_PASSWORD, and a reMarkable device token via
REMARKABLE_TOKEN or REMARKABLE_TOKEN_PATH are required; everything else
has defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func run(cmd *cobra.Command, args []string) error {
	// A local .env file is a convenience for development; absence is
	// not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// The reMarkable client keeps its own log file so cloud traffic
	// details stay out of the application output.
	clientLog, err := logger.NewFile(cfg.ClientLogPath)
	if err != nil {
		return err
	}
	defer func() { _ = clientLog.Sync() }()

	mailbox := email.NewClient(
		cfg.IMAPServer,
		cfg.IMAPPort,
		cfg.EmailUsername,
		cfg.EmailPassword,
		log,
	)

	store, err := remarkable.NewClient(remarkable.Config{
		DeviceToken:   cfg.DeviceToken,
		AuthHost:      cfg.AuthHost,
		DiscoveryHost: cfg.DiscoveryHost,
		SyncFilePath:  cfg.SyncFilePath,
	}, clientLog)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	syncer := sync.New(mailbox, store, sync.Options{
		Mailbox:    cfg.Mailbox,
		FolderName: cfg.DestFolder,
		StagingDir: cfg.DownloadDir,
	}, log)

	report, err := syncer.Run(cmd.Context())
	if err != nil {
		return err
	}

	log.Info("sync finished",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("skipped", report.Skipped()),
		zap.Int("failed", report.Failed()),
	)
	if !report.OK() {
		return fmt.Errorf("%d message(s) had failed uploads", report.Failed())
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "email-to-remarkable: %v\n", err)
		os.Exit(1)
	}
}
