package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
	aligngemini "github.com/bidworks/rfp-qualifier/internal/alignment/gemini"
	"github.com/bidworks/rfp-qualifier/internal/eligibility"
	"github.com/bidworks/rfp-qualifier/internal/embedding"
	embedgemini "github.com/bidworks/rfp-qualifier/internal/embedding/gemini"
	"github.com/bidworks/rfp-qualifier/internal/embedding/local"
	"github.com/bidworks/rfp-qualifier/internal/logger"
	"github.com/bidworks/rfp-qualifier/internal/pipeline"
	"github.com/bidworks/rfp-qualifier/internal/secrets"
)

const (
	PromptSaveReport   = "Save report to reports directory"
	PromptPrintSummary = "Print summary"
	PromptBreakdown    = "Breakdown by verdict"
	PromptDumpTmpFile  = "Dump report to temp file"
	PromptExit         = "Exit"
)

var errExit = errors.New("exit requested")

var analyzePrompt = promptui.Select{
	Label: "Analysis complete. What next?",
	Items: []string{PromptSaveReport, PromptPrintSummary, PromptBreakdown, PromptDumpTmpFile, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an RFP against a company profile and produce an eligibility report",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("rfp", "", "path to the extracted RFP text")
	analyzeCmd.Flags().String("profile", "", "path to the extracted company profile text")
	analyzeCmd.Flags().BoolP("auto-approve", "y", false, "save the report without prompting")
	analyzeCmd.Flags().String("embedder", "", "embedding backend: local or gemini")

	viper.BindPFlag("embedder.type", analyzeCmd.Flags().Lookup("embedder"))
}

// analyze is the main command for the cli.
func analyze(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the rfp-qualifier", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	rfpPath, profilePath := documentPaths(cmd, config)
	if rfpPath == "" || profilePath == "" {
		logger.Fatal("both documents are required",
			zap.String("hint", "pass --rfp and --profile or set the documents section in the configuration file"),
		)
	}

	rfpText, err := os.ReadFile(rfpPath)
	if err != nil {
		logger.Fatal("reading rfp document", zap.Error(err))
	}

	profileText, err := os.ReadFile(profilePath)
	if err != nil {
		logger.Fatal("reading company profile document", zap.Error(err))
	}

	embedder, err := newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the embedder", zap.Error(err))
	}

	logger.Info("embedding backend selected",
		zap.String("embedder", embedder.Name()),
		zap.Int("dimension", embedder.Dimension()),
	)

	judge := prepareJudge(ctx, config, logger)

	job, err := pipeline.NewJob(pipelineConfig(config), pipeline.Deps{
		Embedder: embedder,
		Judge:    judge,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("configuring the job", zap.Error(err))
	}

	result, err := job.Run(ctx, filepath.Base(rfpPath), string(rfpText), string(profileText))
	if err != nil {
		logger.Fatal("analysis aborted", zap.Error(err))
	}

	logger.Info(result.Document.Summary,
		zap.Bool("eligible", result.Document.Eligible),
		zap.Float64("technical_match", result.Document.Scores.TechnicalMatch),
		zap.Float64("requirement_coverage", result.Document.Scores.RequirementCoverage),
	)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		if err := handleAction(PromptSaveReport, result, config, logger); err != nil && !errors.Is(err, errExit) {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := analyzePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, result, config, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, result *pipeline.Result, config *Config, logger *zap.Logger) error {
	switch action {
	case PromptSaveReport:
		path, err := result.Document.SaveTo(config.Reports.Dir)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		logger.Info("report saved", zap.String("path", path))
		return nil
	case PromptPrintSummary:
		logger.Info(result.Document.Summary,
			zap.Strings("risks", result.Document.Risks),
			zap.Int("requirements", result.Document.Statistics.TotalRequirements),
		)
		return nil
	case PromptBreakdown:
		pretty, _ := json.MarshalIndent(result.Document.BreakdownByVerdict(), "", "  ")
		logger.Info(string(pretty), zap.Int("requirements", result.Document.Statistics.TotalRequirements))
		return nil
	case PromptDumpTmpFile:
		filename, err := result.Document.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func documentPaths(cmd *cobra.Command, config *Config) (string, string) {
	rfpPath := strings.TrimSpace(cmd.Flag("rfp").Value.String())
	profilePath := strings.TrimSpace(cmd.Flag("profile").Value.String())

	if config.Documents != nil {
		if rfpPath == "" {
			rfpPath = strings.TrimSpace(config.Documents.RFP)
		}
		if profilePath == "" {
			profilePath = strings.TrimSpace(config.Documents.CompanyProfile)
		}
	}

	return rfpPath, profilePath
}

func pipelineConfig(config *Config) pipeline.Config {
	p := config.Pipeline

	return pipeline.Config{
		ChunkSize:    p.ChunkSize,
		ChunkOverlap: p.ChunkOverlap,
		TopK:         p.TopK,
		Eligibility: eligibility.Thresholds{
			EligibilityThreshold: p.EligibilityThreshold,
			MinCoverageThreshold: p.MinCoverageThreshold,
		},
		Fallback: alignment.SimilarityThresholds{
			High: p.FallbackSimilarityThresholds.High,
			Low:  p.FallbackSimilarityThresholds.Low,
		},
	}
}

func newEmbedder(ctx context.Context, config *Config, logger *zap.Logger) (embedding.Embedder, error) {
	switch strings.TrimSpace(strings.ToLower(config.Embedder.Type)) {
	case "", "local":
		return local.New(config.Embedder.Dimension), nil
	case "gemini":
		if config.AI == nil || config.AI.Gemini == nil {
			return nil, errors.New("ai.gemini configuration is required for the gemini embedder")
		}

		apiKey, err := geminiAPIKey(config.AI.Gemini)
		if err != nil {
			return nil, err
		}

		return embedgemini.New(ctx, embedgemini.Config{
			APIKey:     apiKey,
			Model:      config.AI.Gemini.EmbeddingModel,
			Dimension:  config.Embedder.Dimension,
			Timeout:    time.Duration(config.AI.Gemini.TimeoutSecs) * time.Second,
			MaxRetries: config.AI.Gemini.MaxRetries,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", config.Embedder.Type)
	}
}

// prepareJudge builds the LLM judge when AI is enabled. Failures disable the
// judge and the similarity fallback scores everything; they never stop the
// analysis.
func prepareJudge(ctx context.Context, config *Config, zlogger *zap.Logger) alignment.Judge {
	if config.AI == nil || !config.AI.Enabled {
		return nil
	}

	judge, err := newJudge(ctx, config.AI, zlogger)
	if err != nil {
		zlogger.Warn("continuing without llm judge", zap.Error(err))
		return nil
	}

	return judge
}

func newJudge(ctx context.Context, cfg *AIConfig, zlogger *zap.Logger) (alignment.Judge, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := geminiAPIKey(cfg.Gemini)
	if err != nil {
		return nil, err
	}

	genLogger := logger.WithProvider(zlogger, "gemini", cfg.Gemini.Model)

	generator, err := aligngemini.NewGenerator(ctx, aligngemini.GeneratorConfig{
		APIKey:     apiKey,
		Model:      cfg.Gemini.Model,
		Timeout:    time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Gemini.MaxRetries,
	}, genLogger)
	if err != nil {
		return nil, err
	}

	return aligngemini.NewJudge(generator, genLogger, cfg.Gemini.MaxLogLength), nil
}

func geminiAPIKey(cfg *GeminiConfig) (string, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return "", fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	return apiKey, nil
}
