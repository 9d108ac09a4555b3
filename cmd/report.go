package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veslav/loan-counselor/internal/applicant"
	"github.com/veslav/loan-counselor/internal/conversation"
	"github.com/veslav/loan-counselor/internal/eligibility"
	"github.com/veslav/loan-counselor/internal/logger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Recompute the eligibility report from the persisted applicant record",
	Run: func(_ *cobra.Command, _ []string) {
		report()
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

// report evaluates the persisted record without a conversation. An
// incomplete record simply produces a rejecting verdict.
func report() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	store := applicant.NewStore(config.DataFile, logger)
	record, err := store.Load()
	if err != nil {
		logger.Fatal("loading applicant data", zap.Error(err))
	}

	engine := eligibility.NewEngine(criteria(config))
	result := engine.Evaluate(record)

	rep := conversation.NewReport(record, result, time.Now())
	if err := rep.WriteFile(config.ReportFile); err != nil {
		logger.Fatal("saving the report", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(pretty))

	logger.Info("report saved", zap.String("filename", config.ReportFile))
}
