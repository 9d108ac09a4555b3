package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veslav/loan-counselor/internal/eligibility"
)

const (
	app = "loan-counselor"
)

type Config struct {
	DataFile    string                `mapstructure:"data-file"`
	ReportFile  string                `mapstructure:"report-file"`
	Eligibility *eligibility.Criteria `mapstructure:"eligibility"`
	AI          *AIConfig             `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "loan-counselor interviews a loan applicant and produces an eligibility report",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is loan-counselor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("data-file", "", "file the applicant record is persisted to")
	rootCmd.PersistentFlags().String("report-file", "", "file the eligibility report is written to")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("data-file", rootCmd.PersistentFlags().Lookup("data-file"))
	viper.BindPFlag("report-file", rootCmd.PersistentFlags().Lookup("report-file"))

	viper.SetDefault("data-file", "applicant_data_structured.json")
	viper.SetDefault("report-file", "loan_report.json")
	viper.SetDefault("eligibility.minimum-credit-score", 700)
	viper.SetDefault("eligibility.minimum-income", 50000)
	viper.SetDefault("eligibility.maximum-dti-ratio", 0.5)
	viper.SetDefault("eligibility.minimum-employment-years", 2)
	viper.SetDefault("eligibility.maximum-loan-to-value-ratio", 0.8)
}

func initConfig() {
	// Config needed only for the run and report commands.
	if runCmd.CalledAs() == "" && reportCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The config file itself is optional: defaults cover a full local run.
	// A file that exists but does not parse is still fatal.
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// criteria returns the configured thresholds, falling back to the bank
// defaults when the eligibility section is absent.
func criteria(config *Config) eligibility.Criteria {
	if config != nil && config.Eligibility != nil {
		return *config.Eligibility
	}
	return eligibility.DefaultCriteria()
}
