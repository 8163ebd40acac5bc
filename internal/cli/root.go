package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/robodebate/internal/app"
	"github.com/apresai/robodebate/internal/config"
	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/httpapi"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/apresai/robodebate/internal/observability"
	"github.com/apresai/robodebate/internal/pipeline"
	"github.com/apresai/robodebate/internal/progress"
	"github.com/apresai/robodebate/internal/snapshot"
	"github.com/apresai/robodebate/internal/tui"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "robodebate",
	Short:         "Two robots argue about trending prediction markets",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("robodebate %s\n", Version)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch trending proposals, debate each one and write the snapshot",
	RunE:  runGenerate,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trending feed, on-demand debates and the snapshot over HTTP",
	RunE:  runServe,
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Print the current trending proposals",
	RunE:  runTrending,
}

var debateCmd = &cobra.Command{
	Use:   "debate <title>",
	Short: "Run one dialogue about a proposal in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebate,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Play a snapshot back with a typewriter effect",
	RunE:  runReplay,
}

var (
	flagOutput      string
	flagTurns       int
	flagLang        string
	flagProvider    string
	flagModel       string
	flagPublish     bool
	flagSeed        int64
	flagVerbose     bool
	flagPort        int
	flagMode        string
	flagDescription string
	flagDebateTurns int
	flagFile        string
	flagReplayLang  string
	flagSpeed       float64
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(debateCmd)
	rootCmd.AddCommand(replayCmd)

	for _, c := range []*cobra.Command{generateCmd, serveCmd, debateCmd} {
		c.Flags().StringVar(&flagProvider, "provider", "", "LLM provider: openrouter, anthropic, bedrock, gemini (overrides LLM_PROVIDER)")
		c.Flags().StringVarP(&flagModel, "model", "m", "", "Model ID or alias for the provider (overrides LLM_MODEL)")
	}

	generateCmd.Flags().StringVarP(&flagOutput, "output", "o", "public/data/debates.json", "Snapshot output path")
	generateCmd.Flags().IntVarP(&flagTurns, "turns", "n", 7, "Messages per dialogue (2-20)")
	generateCmd.Flags().StringVarP(&flagLang, "lang", "l", "ko", "Translation target language code")
	generateCmd.Flags().BoolVar(&flagPublish, "publish", false, "Upload the snapshot to S3_BUCKET after writing")
	generateCmd.Flags().Int64Var(&flagSeed, "seed", 0, "Seed for template selection (0 = random)")
	generateCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print every turn and detailed logs")

	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "Listen port (overrides PORT, default 3000)")

	debateCmd.Flags().StringVar(&flagMode, "mode", "auto", "Dialogue mode: auto, debate, roast")
	debateCmd.Flags().StringVarP(&flagDescription, "description", "d", "", "Proposal description")
	debateCmd.Flags().IntVarP(&flagDebateTurns, "turns", "n", 7, "Messages in the dialogue (2-20)")

	replayCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Snapshot to replay (default SNAPSHOT_PATH)")
	replayCmd.Flags().StringVarP(&flagReplayLang, "lang", "l", "en", "Dialogue language to show: en or the translated code")
	replayCmd.Flags().Float64Var(&flagSpeed, "speed", 1, "Typing speed multiplier")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the environment and applies the provider flags.
func loadConfig() config.Config {
	cfg := config.Load()
	if flagProvider != "" {
		cfg.LLM.Provider = strings.ToLower(flagProvider)
	}
	if flagModel != "" {
		cfg.LLM.Model = flagModel
	}
	return cfg
}

func cliLogger(cfg config.Config) *slog.Logger {
	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	if cfg.LogLevel == "debug" {
		level = cfg.LogLevel
	}
	return observability.NewLogger(os.Stderr, level, "text")
}

func validateTurns(n int) error {
	if n < pipeline.MinTurns || n > pipeline.MaxTurns {
		return fmt.Errorf("invalid turns %d: must be between %d and %d", n, pipeline.MinTurns, pipeline.MaxTurns)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := validateTurns(flagTurns); err != nil {
		return err
	}
	if strings.TrimSpace(flagLang) == "" {
		return fmt.Errorf("--lang must not be empty")
	}
	lang, err := pipeline.NormalizeLanguage(flagLang)
	if err != nil {
		return fmt.Errorf("invalid --lang %q: %w", flagLang, err)
	}
	cfg := loadConfig()
	if err := checkProvider(cfg.LLM.Provider); err != nil {
		return err
	}
	if err := checkAPIKeys(cfg.LLM); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := cliLogger(cfg)

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		Source: app.NewFetcher(market.FallbackSecondary, logger),
		Client: client,
		Logger: logger,
	}
	if flagPublish {
		awsCfg, err := app.LoadAWS(ctx, cfg)
		if err != nil {
			return err
		}
		pub := app.NewPublisher(awsCfg, cfg)
		if pub == nil {
			return fmt.Errorf("--publish requires S3_BUCKET to be set")
		}
		runner.Publisher = pub
	}

	opts := pipeline.Options{
		Output:    flagOutput,
		Turns:     flagTurns,
		Language:  lang,
		TurnDelay: cfg.TurnDelay,
		Seed:      flagSeed,
		Publish:   flagPublish,
		Verbose:   flagVerbose,
	}

	// Stage lines in verbose mode, progress bar otherwise.
	if flagVerbose {
		runner.Out = os.Stdout
	} else {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		opts.OnProgress = r.Handle
	}

	_, err = runner.Run(ctx, opts)
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if err := checkProvider(cfg.LLM.Provider); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	serviceName := ""
	tp, err := observability.InitTracer(ctx, "robodebate-api", Version, cfg.Env)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else if tp != nil {
		serviceName = "robodebate-api"
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	trending, closeCache := app.NewTrendingSource(ctx, cfg, logger)
	defer closeCache()

	// Debate routes answer 500 without a client; trending and health still work.
	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("LLM client unavailable", "provider", cfg.LLM.Provider, "error", err)
		client = nil
	}

	srv := httpapi.NewServer(httpapi.Config{
		Source:             trending,
		Client:             client,
		KeyEnv:             keyEnvName(cfg.LLM.Provider),
		SnapshotPath:       cfg.SnapshotPath,
		Turns:              cfg.Turns,
		TurnDelay:          cfg.TurnDelay,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ServiceName:        serviceName,
	})
	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
}

func runTrending(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := cliLogger(cfg)

	props, err := app.NewFetcher(market.FallbackStatic, logger).Fetch(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("\nTrending proposals:")
	fmt.Printf("  %s\n", strings.Repeat("─", 60))
	for i, p := range props {
		fmt.Printf("\n  %d. %s\n", i+1, p.Title)
		fmt.Printf("     %-10s %-10s %s\n", p.Category, p.Volume, p.ID)
		for _, c := range p.Conditions {
			parts := make([]string, 0, len(c.Outcomes))
			for j, o := range c.Outcomes {
				if j < len(c.Prices) {
					parts = append(parts, fmt.Sprintf("%s %d%%", o, c.Prices[j]))
				}
			}
			fmt.Printf("     %s: %s\n", c.Question, strings.Join(parts, " / "))
		}
	}
	fmt.Println()
	return nil
}

func runDebate(cmd *cobra.Command, args []string) error {
	if err := validateTurns(flagDebateTurns); err != nil {
		return err
	}
	title := strings.TrimSpace(args[0])
	if title == "" {
		return debate.ErrEmptyTitle
	}

	cfg := loadConfig()
	if err := checkProvider(cfg.LLM.Provider); err != nil {
		return err
	}
	if err := checkAPIKeys(cfg.LLM); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := cliLogger(cfg)
	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	var mode debate.Mode
	switch strings.ToLower(flagMode) {
	case "auto", "":
		fmt.Print("  Triaging...")
		mode, err = debate.NewTriager(client).Classify(ctx, title, flagDescription)
		if err != nil {
			logger.Warn("Triage failed, defaulting to debate", "error", err)
		}
		fmt.Printf(" %s\n\n", mode)
	default:
		mode, err = debate.ParseMode(flagMode)
		if err != nil {
			return err
		}
	}

	engine := debate.NewEngine(client,
		debate.WithTurns(flagDebateTurns),
		debate.WithTurnDelay(cfg.TurnDelay),
		debate.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
		debate.WithEngineLogger(logger),
		debate.WithOnTurn(func(m debate.Message) {
			p, _ := debate.PersonaFor(m.AgentID)
			fmt.Printf("  %s: %s\n\n", p.Name, m.Text)
		}),
	)
	_, err = engine.Generate(ctx, debate.Topic{Title: title, Description: flagDescription}, mode)
	return err
}

func runReplay(cmd *cobra.Command, args []string) error {
	path := flagFile
	if path == "" {
		path = config.Load().SnapshotPath
	}
	snap, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	return tui.Run(snap, flagReplayLang, flagSpeed)
}

var validProviders = map[string]bool{
	llm.ProviderOpenRouter: true,
	llm.ProviderAnthropic:  true,
	llm.ProviderBedrock:    true,
	llm.ProviderGemini:     true,
}

func checkProvider(provider string) error {
	if provider == "" || validProviders[provider] {
		return nil
	}
	return fmt.Errorf("invalid provider %q: must be openrouter, anthropic, bedrock, or gemini", provider)
}

// keyEnvName names the credential the provider needs; bedrock uses the AWS
// credential chain and reports AWS credentials instead.
func keyEnvName(provider string) string {
	if env := llm.APIKeyEnv(provider); env != "" {
		return env
	}
	return "AWS credentials"
}

func checkAPIKeys(cfg config.LLMConfig) error {
	keys := map[string]string{
		"OPENROUTER_API_KEY": cfg.OpenRouterAPIKey,
		"ANTHROPIC_API_KEY":  cfg.AnthropicAPIKey,
		"GEMINI_API_KEY":     cfg.GeminiAPIKey,
	}

	needed := map[string]bool{}
	if env := llm.APIKeyEnv(cfg.Provider); env != "" && keys[env] == "" {
		needed[env] = true
	}

	if len(needed) > 0 {
		var missing []string
		for k := range needed {
			missing = append(missing, k)
		}
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variable(s): %s: %w", strings.Join(missing, ", "), llm.ErrMissingAPIKey)
	}
	return nil
}
