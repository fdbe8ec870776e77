package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "rfp-qualifier"
)

type Config struct {
	Documents *DocumentsConfig `mapstructure:"documents"`
	Pipeline  *PipelineConfig  `mapstructure:"pipeline"`
	Reports   *ReportsConfig   `mapstructure:"reports"`
	Embedder  *EmbedderConfig  `mapstructure:"embedder"`
	AI        *AIConfig        `mapstructure:"ai"`
}

// DocumentsConfig points at the pre-extracted plain-text documents to compare.
type DocumentsConfig struct {
	RFP            string `mapstructure:"rfp"`
	CompanyProfile string `mapstructure:"company-profile"`
}

// PipelineConfig carries the recognized scoring options.
type PipelineConfig struct {
	ChunkSize                    int                 `mapstructure:"chunk-size"`
	ChunkOverlap                 int                 `mapstructure:"chunk-overlap"`
	TopK                         int                 `mapstructure:"top-k"`
	EligibilityThreshold         float64             `mapstructure:"eligibility-threshold"`
	MinCoverageThreshold         float64             `mapstructure:"min-coverage-threshold"`
	FallbackSimilarityThresholds *FallbackThresholds `mapstructure:"fallback-similarity-thresholds"`
}

type FallbackThresholds struct {
	High float64 `mapstructure:"high"`
	Low  float64 `mapstructure:"low"`
}

type ReportsConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxAgeHours int    `mapstructure:"max-age-hours"`
}

// EmbedderConfig selects the embedding backend: "local" (offline hashing) or
// "gemini" (remote API).
type EmbedderConfig struct {
	Type      string `mapstructure:"type"`
	Dimension int    `mapstructure:"dimension"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
	TimeoutSecs    int    `mapstructure:"timeout-secs"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "rfp-qualifier judges whether a vendor qualifies for an RFP by comparing it against a company profile",
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

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rfp-qualifier.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the analyze and reports commands. Without
	// them we can skip initialization entirely.
	if analyzeCmd.CalledAs() == "" && reportsCleanCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// Analysis can run fully from flags and defaults, so a missing config
	// file is fine; a file parsed with error is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile == "" {
			log.Fatal(err)
		}
		if cfgFile != "" {
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

	if config == nil {
		config = &Config{}
	}
	applyDefaults(config)

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Pipeline == nil {
		config.Pipeline = &PipelineConfig{}
	}
	p := config.Pipeline
	if p.ChunkSize == 0 {
		p.ChunkSize = 120
	}
	if p.ChunkOverlap == 0 {
		p.ChunkOverlap = 20
	}
	if p.TopK == 0 {
		p.TopK = 5
	}
	if p.EligibilityThreshold == 0 {
		p.EligibilityThreshold = 0.70
	}
	if p.MinCoverageThreshold == 0 {
		p.MinCoverageThreshold = 0.75
	}
	if p.FallbackSimilarityThresholds == nil {
		p.FallbackSimilarityThresholds = &FallbackThresholds{High: 0.8, Low: 0.5}
	}

	if config.Embedder == nil {
		config.Embedder = &EmbedderConfig{Type: "local"}
	}
	if config.Embedder.Type == "" {
		config.Embedder.Type = "local"
	}

	if config.Reports == nil {
		config.Reports = &ReportsConfig{}
	}
	if config.Reports.Dir == "" {
		config.Reports.Dir = "reports"
	}
	if config.Reports.MaxAgeHours == 0 {
		config.Reports.MaxAgeHours = 24
	}
}
