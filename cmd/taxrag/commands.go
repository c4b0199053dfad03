package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkhurtsilava/taxrag"
	"github.com/gkhurtsilava/taxrag/audit"
	"github.com/gkhurtsilava/taxrag/index"
	"github.com/gkhurtsilava/taxrag/ingest"
)

func ingestCmd() *cobra.Command {
	var register string

	cmd := &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Index dispute decision files or directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && register == "" {
				return fmt.Errorf("nothing to ingest: pass files, directories or --register")
			}

			engine, err := taxrag.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			loader := ingest.NewLoader(nil)
			var docs []index.Document
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				var fileDocs []index.Document
				if info.IsDir() {
					fileDocs, err = loader.LoadDir(path)
				} else {
					fileDocs, err = loader.LoadFile(path)
				}
				if err != nil {
					return err
				}
				docs = append(docs, fileDocs...)
			}
			if register != "" {
				regDocs, err := ingest.LoadRegister(register)
				if err != nil {
					return err
				}
				docs = append(docs, regDocs...)
			}

			added, err := engine.Index().Add(cmd.Context(), docs)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d documents (%d total)\n", added, engine.Index().Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&register, "register", "", "path to a case register spreadsheet (xlsx)")
	return cmd
}

func askCmd() *cobra.Command {
	var (
		court    string
		from     string
		to       string
		articles string
		topK     int
		vecW     float64
		kwW      float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question over the indexed dispute corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := buildFilters(court, from, to, articles)
			if err != nil {
				return err
			}

			engine, err := taxrag.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			var opts []taxrag.QueryOption
			if topK > 0 {
				opts = append(opts, taxrag.WithTopK(topK))
			}
			if vecW != 0 || kwW != 0 {
				opts = append(opts, taxrag.WithWeights(vecW, kwW))
			}

			answer, err := engine.Query(cmd.Context(), args[0], filters, opts...)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(answer)
			}
			printAnswer(answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&court, "court", "", "only cases from this court")
	cmd.Flags().StringVar(&from, "from", "", "only cases on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "only cases on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&articles, "cited-articles", "", "only cases citing any of these articles (comma-separated)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of cases to retrieve")
	cmd.Flags().Float64Var(&vecW, "vector-weight", 0, "dense score weight")
	cmd.Flags().Float64Var(&kwW, "keyword-weight", 0, "sparse score weight")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		topK int
		mode string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a raw retrieval query without answer generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := taxrag.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			idx := engine.Index()
			var results []index.SearchResult
			switch mode {
			case "vector":
				results, err = idx.VectorSearch(cmd.Context(), args[0], topK, nil)
			case "keyword":
				results = idx.KeywordSearch(args[0], topK)
			case "hybrid":
				results, err = idx.HybridSearch(cmd.Context(), args[0], topK,
					cfg.VectorWeight, cfg.KeywordWeight, nil)
			default:
				return fmt.Errorf("unknown search mode %q", mode)
			}
			if err != nil {
				return err
			}

			for i, r := range results {
				fmt.Printf("%d. %s  score=%.4f (vector=%.4f keyword=%.4f)\n",
					i+1, r.Document.ID, r.Score, r.VectorScore, r.KeywordScore)
				fmt.Printf("   %s\n", firstLine(r.Document.Content))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 5, "number of results")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, vector or keyword")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show engine status and index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := taxrag.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			return printJSON(struct {
				Status taxrag.Status `json:"status"`
				Index  index.Stats   `json:"index"`
			}{engine.Status(), engine.Index().Stats()})
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent audited queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AuditDBPath == "" {
				return fmt.Errorf("audit log not configured; set --audit-db or TAXRAG_AUDIT_DB")
			}
			log, err := audit.Open(cfg.AuditDBPath)
			if err != nil {
				return err
			}
			defer log.Close()

			entries, err := log.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

// buildFilters parses the ask command's filter flags.
func buildFilters(court, from, to, articles string) (*taxrag.Filters, error) {
	if court == "" && from == "" && to == "" && articles == "" {
		return nil, nil
	}

	f := &taxrag.Filters{Court: court}
	var err error
	if from != "" {
		if f.DateFrom, err = time.Parse("2006-01-02", from); err != nil {
			return nil, fmt.Errorf("parsing --from: %w", err)
		}
	}
	if to != "" {
		if f.DateTo, err = time.Parse("2006-01-02", to); err != nil {
			return nil, fmt.Errorf("parsing --to: %w", err)
		}
	}
	for _, a := range strings.Split(articles, ",") {
		if a = strings.TrimSpace(a); a != "" {
			f.CitedArticles = append(f.CitedArticles, a)
		}
	}
	return f, nil
}

func printAnswer(a *taxrag.Answer) {
	fmt.Println(a.Answer)
	fmt.Println()
	if len(a.TaxArticles) > 0 {
		fmt.Printf("articles: %s\n", strings.Join(a.TaxArticles, ", "))
	}
	for _, c := range a.Cases {
		fmt.Printf("case %s (%s, %s)  relevance=%.2f\n", c.CaseID, c.Court, c.Date, c.Relevance)
	}
	fmt.Printf("confidence=%.2f model=%s took=%dms\n", a.Confidence, a.Model, a.ProcessingTimeMS)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// firstLine returns the first line of s, shortened for display.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > 120 {
		return string(runes[:120]) + "…"
	}
	return s
}
