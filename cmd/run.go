package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veslav/loan-counselor/internal/ai"
	"github.com/veslav/loan-counselor/internal/ai/gemini"
	"github.com/veslav/loan-counselor/internal/applicant"
	"github.com/veslav/loan-counselor/internal/conversation"
	"github.com/veslav/loan-counselor/internal/eligibility"
	"github.com/veslav/loan-counselor/internal/logger"
	"github.com/veslav/loan-counselor/internal/secrets"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive loan application interview",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-ai", false, "collect answers as direct field values without the Gemini assistant")

	viper.BindPFlag("no-ai", runCmd.Flags().Lookup("no-ai"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the loan-counselor", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	schema := applicant.DefaultSchema()
	store := applicant.NewStore(config.DataFile, logger)
	engine := eligibility.NewEngine(criteria(config))

	extractor, advisor := prepareAssistant(ctx, config, schema, logger)

	manager, err := conversation.NewManager(conversation.Deps{
		Schema:    schema,
		Store:     store,
		Engine:    engine,
		Extractor: extractor,
		Advisor:   advisor,
		IO:        conversation.TerminalIO{},
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("building conversation manager", zap.Error(err))
	}

	report, err := manager.Run(ctx)
	if errors.Is(err, conversation.ErrCancelled) {
		logger.Info("exiting", zap.String("reason", "session cancelled before completion"))
		return
	}
	if err != nil {
		logger.Fatal("running the interview", zap.Error(err))
	}

	if err := report.WriteFile(config.ReportFile); err != nil {
		logger.Warn("saving the report", zap.Error(err))
		return
	}

	logger.Info("report saved", zap.String("filename", config.ReportFile))
}

// prepareAssistant builds the Gemini collaborators, or returns nils when the
// session should run without AI assistance. Any failure here degrades to
// direct field entry instead of aborting the interview.
func prepareAssistant(ctx context.Context, config *Config, schema *applicant.Schema, log *zap.Logger) (ai.Extractor, ai.Advisor) {
	if viper.GetBool("no-ai") || config.AI == nil || !config.AI.Enabled {
		log.Info("running without AI assistance", zap.String("mode", "direct field entry"))
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		log.Warn("unsupported ai provider, continuing without AI assistance",
			zap.String("provider", config.AI.Provider),
		)
		return nil, nil
	}

	gcfg := config.AI.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gcfg.APIKey,
		File:  gcfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		log.Warn("continuing without AI assistance",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file in the configuration file"),
		)
		return nil, nil
	}

	genLogger := logger.WithCommonFields(log, "gemini", gcfg.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, genLogger)
	if err != nil {
		log.Warn("continuing without AI assistance", zap.Error(err))
		return nil, nil
	}

	assistant := gemini.NewAssistant(generator, schema, genLogger, gcfg.MaxLogLength)

	return assistant, assistant
}
