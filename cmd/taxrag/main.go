package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gkhurtsilava/taxrag"
	"github.com/gkhurtsilava/taxrag/llm"
)

var (
	flagConfig   string
	flagIndexDir string
	flagCorpus   string
	flagArticles string
	flagAuditDB  string
	flagVerbose  bool

	cfg taxrag.Config
)

func main() {
	root := &cobra.Command{
		Use:           "taxrag",
		Short:         "Georgian tax dispute retrieval and question answering",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real environment always wins.
			_ = godotenv.Load()

			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))

			var err error
			cfg, err = loadConfig()
			return err
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (JSON)")
	root.PersistentFlags().StringVar(&flagIndexDir, "index-dir", "", "corpus index directory")
	root.PersistentFlags().StringVar(&flagCorpus, "corpus", "", "corpus name")
	root.PersistentFlags().StringVar(&flagArticles, "articles", "", "path to the article registry JSON")
	root.PersistentFlags().StringVar(&flagAuditDB, "audit-db", "", "path to the query audit database")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(ingestCmd(), askCmd(), searchCmd(), statsCmd(), historyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the optional config file, environment
// variables and command-line flags, in that order.
func loadConfig() (taxrag.Config, error) {
	cfg := taxrag.DefaultConfig()

	if flagConfig != "" {
		f, err := os.Open(flagConfig)
		if err != nil {
			return cfg, fmt.Errorf("opening config: %w", err)
		}
		err = json.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("TAXRAG_INDEX_DIR"); v != "" {
		cfg.IndexDir = v
	}
	if v := os.Getenv("TAXRAG_CORPUS"); v != "" {
		cfg.CorpusName = v
	}
	if v := os.Getenv("TAXRAG_ARTICLE_INDEX"); v != "" {
		cfg.ArticleIndexPath = v
	}
	if v := os.Getenv("TAXRAG_AUDIT_DB"); v != "" {
		cfg.AuditDBPath = v
	}
	applyProviderEnv("TAXRAG_CHAT", &cfg.Chat)
	applyProviderEnv("TAXRAG_FALLBACK", &cfg.Fallback)
	applyProviderEnv("TAXRAG_EMBED", &cfg.Embedding)

	// Well-known provider env vars cover missing API keys.
	fillAPIKey(&cfg.Chat)
	fillAPIKey(&cfg.Fallback)
	fillAPIKey(&cfg.Embedding)

	if flagIndexDir != "" {
		cfg.IndexDir = flagIndexDir
	}
	if flagCorpus != "" {
		cfg.CorpusName = flagCorpus
	}
	if flagArticles != "" {
		cfg.ArticleIndexPath = flagArticles
	}
	if flagAuditDB != "" {
		cfg.AuditDBPath = flagAuditDB
	}
	return cfg, nil
}

// applyProviderEnv overrides one provider config from environment
// variables with the given prefix, e.g. TAXRAG_CHAT_MODEL.
func applyProviderEnv(prefix string, c *llm.Config) {
	if v := os.Getenv(prefix + "_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(prefix + "_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		c.APIKey = v
	}
}

// fillAPIKey falls back to the provider's conventional env var when no
// key was configured explicitly.
func fillAPIKey(c *llm.Config) {
	if c.APIKey != "" {
		return
	}
	switch c.Provider {
	case "openai":
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	case "gemini":
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	case "openrouter":
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
}
