package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/keywordlens"
	"github.com/poiesic/keywordlens/backfill"
	"github.com/poiesic/keywordlens/config"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/ingestion"
)

// openEngine builds the engine for a command. Tests replace it to inject a
// mock provider.
var openEngine = func(ctx context.Context, cfg *config.Config) (*keywordlens.Engine, error) {
	return keywordlens.NewEngine(ctx, cfg, keywordlens.WithLogger(slog.Default()))
}

// loadConfig reads --config and applies the command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Driver = config.StorageBadger
		cfg.Storage.Path = db
		cfg.Storage.InMemory = false
	}
	if host := c.String("embedding-host"); host != "" {
		cfg.Embedding.Host = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.Embedding.Model = model
	}
	return cfg, cfg.Validate()
}

func withEngine(c *cli.Context, fn func(ctx context.Context, e *keywordlens.Engine) error) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	e, err := openEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer e.Close()
	return fn(ctx, e)
}

func parseBlog(c *cli.Context) (core.ID, error) {
	s := c.String("blog")
	if s == "" {
		return core.NilID, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return core.NilID, fmt.Errorf("invalid blog id %q: %w", s, err)
	}
	return id, nil
}

// searchBounds resolves --threshold and --max-results against the config defaults.
func searchBounds(c *cli.Context, cfg *config.Config) (float64, int) {
	threshold := cfg.Search.DefaultThreshold
	if c.IsSet("threshold") {
		threshold = c.Float64("threshold")
	}
	maxResults := cfg.Search.DefaultMaxResults
	if c.IsSet("max-results") {
		maxResults = c.Int("max-results")
	}
	return threshold, maxResults
}

func serveCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		srv, err := e.NewServer()
		if err != nil {
			return err
		}
		addr := e.Config().Server.Address
		if a := c.String("addr"); a != "" {
			addr = a
		}
		return srv.Run(ctx, addr)
	})
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("query is required")
	}
	blog, err := parseBlog(c)
	if err != nil {
		return err
	}

	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		threshold, maxResults := searchBounds(c, e.Config())
		resp, err := e.Searcher().Search(ctx, core.SearchRequest{
			Query:      query,
			Corpus:     core.Corpus(c.String("corpus")),
			Threshold:  threshold,
			MaxResults: maxResults,
			BlogScope:  blog,
		})
		if err != nil {
			return explain(err)
		}
		return printSearch(c, resp)
	})
}

func similarCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one keyword id is required")
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid keyword id: %w", err)
	}
	blog, err := parseBlog(c)
	if err != nil {
		return err
	}

	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		threshold, maxResults := searchBounds(c, e.Config())
		resp, err := e.Searcher().SimilarToKeyword(ctx, id, core.SearchQuery{
			Threshold:  threshold,
			MaxResults: maxResults,
			Corpus:     core.CorpusKeywords,
			BlogScope:  blog,
		})
		if err != nil {
			return explain(err)
		}
		return printSearch(c, resp)
	})
}

func readinessCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		report, err := e.Readiness().CheckReadiness(ctx)
		if report != nil {
			if perr := printReport(c, report); perr != nil {
				return perr
			}
		}
		return err
	})
}

func setupCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		report, err := e.Readiness().RunSetup(ctx)
		if report != nil {
			if perr := printReport(c, report); perr != nil {
				return perr
			}
		}
		if err != nil {
			return explain(err)
		}
		return nil
	})
}

func clustersCommand(c *cli.Context) error {
	blog, err := parseBlog(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		analysis, err := e.Analyzer().Analyze(ctx, blog)
		if err != nil {
			return explain(err)
		}
		return printAnalysis(c, analysis)
	})
}

func backfillCommand(c *cli.Context) error {
	backfillConfig := &backfill.Config{
		BatchSize:      c.Int("batch-size"),
		Workers:        c.Int("workers"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if backfillConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if backfillConfig.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if backfillConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if backfillConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	corpus := core.Corpus(c.String("corpus"))
	if err := core.ValidateCorpus(corpus); err != nil {
		return err
	}

	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		backfillConfig.Dimensions = e.Config().Embedding.Dimensions
		b, err := e.NewBackfiller(backfillConfig, backfill.WithProgress(c.App.ErrWriter))
		if err != nil {
			return err
		}
		defer b.Release()

		fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", e.Config().Embedding.Host)
		fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", e.Config().Embedding.Model)
		fmt.Fprintln(c.App.ErrWriter)

		results, err := b.Run(ctx, corpus)
		for _, r := range results {
			fmt.Fprintf(c.App.Writer, "%s: embedded %d, failed %d\n", r.Corpus, r.Embedded, r.Failed)
		}
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		return nil
	})
}

func seedCommand(c *cli.Context) error {
	fixtures, err := readFixtures(c.String("src"))
	if err != nil {
		return err
	}

	return withEngine(c, func(ctx context.Context, e *keywordlens.Engine) error {
		pipeline, err := e.NewIngestionPipeline(ingestion.WithBatchSize(c.Int("batch-size")))
		if err != nil {
			return err
		}
		defer pipeline.Release()

		summary, err := pipeline.IngestFixtures(ctx, fixtures)
		if err != nil {
			return err
		}
		pipeline.Wait()

		fmt.Fprintf(c.App.Writer, "Seeded blog %s (%s): %d clusters, %d keywords, %d posts\n",
			fixtures.Blog, fixtures.BlogID(), summary.Clusters, summary.Keywords, summary.Posts)
		if failed := pipeline.Failed(); failed > 0 {
			fmt.Fprintf(c.App.Writer, "%d records could not be embedded; run backfill to retry\n", failed)
		}
		return nil
	})
}

func readFixtures(path string) (*ingestion.Fixtures, error) {
	if path == "" {
		return ingestion.SampleFixtures()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingestion.LoadFixtures(f)
}

// explain appends the first readiness recommendation to not-ready errors.
func explain(err error) error {
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Report == nil || len(ce.Report.Recommendations) == 0 {
		return err
	}
	return fmt.Errorf("%w\n  hint: %s", err, strings.Join(ce.Report.Recommendations, "\n  hint: "))
}

func setupLogger(c *cli.Context) error {
	level, err := config.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
