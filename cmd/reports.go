package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bidworks/rfp-qualifier/internal/logger"
	"github.com/bidworks/rfp-qualifier/internal/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage generated eligibility reports",
}

var reportsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove reports older than the configured maximum age",
	Run: func(_ *cobra.Command, _ []string) {
		cleanReports()
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsCleanCmd)
}

func cleanReports() {
	zlogger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlogger.Fatal("getting a config", zap.Error(err))
	}

	maxAge := time.Duration(config.Reports.MaxAgeHours) * time.Hour

	removed, err := report.CleanOld(config.Reports.Dir, maxAge)
	if err != nil {
		zlogger.Fatal("cleaning reports", zap.Error(err))
	}

	zlogger.Info("cleaned old reports",
		zap.String("dir", config.Reports.Dir),
		zap.Duration("max_age", maxAge),
		zap.Int("removed", removed),
	)
}
