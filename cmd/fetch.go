package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voltatlas/cutout/internal/db"
	"github.com/voltatlas/cutout/internal/fetch"
	"github.com/voltatlas/cutout/internal/util"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Discover and download input archive files from the feed pages",
	Long: `Scrapes each configured feed page for links to parquet archive files and
downloads the ones missing from the local input directory. Already present
files are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(appConfig.FeedURLs) == 0 {
			return fmt.Errorf("no feed URLs configured, use --feed-url")
		}

		client := util.DefaultHTTPClient()
		discovered, discoveryErr := fetch.Discover(ctx, client, logger, appConfig.FeedURLs)
		if discoveryErr != nil && len(discovered) == 0 {
			return discoveryErr
		}
		logger.Info("discovered archive files", slog.Int("count", len(discovered)))
		for _, u := range discovered {
			if err := db.LogEvent(ctx, dbConn, u, "", db.EventDiscovered, "", "", nil); err != nil {
				logger.Warn("failed to record discovery event", "error", err)
			}
		}

		return errors.Join(discoveryErr, fetch.Download(ctx, dbConn, logger, discovered, appConfig.InputDir))
	},
}
