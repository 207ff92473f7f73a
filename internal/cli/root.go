package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/engine"
	"docchat/internal/index"
	"docchat/internal/provider"
	"docchat/internal/store/sqlite"
)

var (
	cfgFile string
	userID  int64
)

var rootCmd = &cobra.Command{
	Use:          "docchat",
	Short:        "docchat - chat with your documents from the terminal",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { _ = godotenv.Load() })
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (defaults to ./docchat.yaml, then ~/.config/docchat/config.yaml)")
	rootCmd.PersistentFlags().Int64VarP(&userID, "user", "u", 1, "user id owning the documents and sessions")
}

// app bundles the assembled collaborators behind each command.
type app struct {
	cfg    *config.AppConfig
	store  *sqlite.Store
	engine *engine.Engine
}

// newApp loads the configuration and assembles the engine. Callers must
// close the returned app.
func newApp() (*app, error) {
	var cfg *config.AppConfig
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	embedder, generator, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("assembling provider: %w", err)
	}

	st, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	eng := engine.New(
		chunker.NewSentenceChunker(cfg.Chunker.TargetSize, cfg.Chunker.Overlap),
		embedder,
		generator,
		index.NewManager(cfg.IndexRoot()),
		st,
		engine.Options{
			TopK:            cfg.Retrieval.TopK,
			HistoryTurns:    cfg.Retrieval.HistoryTurns,
			MaxContextChars: cfg.Retrieval.MaxContextChars,
			MaxTokens:       cfg.Retrieval.MaxTokens,
			Temperature:     cfg.Retrieval.Temperature,
		},
	)
	return &app{cfg: cfg, store: st, engine: eng}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing record store: %v\n", err)
	}
}
