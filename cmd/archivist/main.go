// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/poiesic/archivist"
	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/config"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/dedupe"
	"github.com/poiesic/archivist/search"
	"github.com/poiesic/archivist/synthesis"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "archivist",
		Usage: "Ask questions of a corpus of historical documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"ARCHIVIST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file read before the environment is consulted",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Retrieve passages for a question and narrate an answer",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "sources",
						Usage: "List the passages the answer was drawn from",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Show the passages retrieved for a query without generating",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keyword-limit",
						Usage: "Passages taken per expanded term (0 uses the config value)",
					},
					&cli.IntFlag{
						Name:  "semantic-limit",
						Usage: "Passages taken from semantic search (0 uses the config value)",
					},
					&cli.BoolFlag{
						Name:  "keyword-only",
						Usage: "Skip semantic search",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log each retrieval step at debug level",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Chunk, store, embed and index text files",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Metadata key=value attached to every passage",
					},
				},
			},
			{
				Name:   "dedupe",
				Usage:  "Merge overlapping passages and rewrite the term index",
				Action: dedupeCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "window",
						Usage: "Overlap window in words",
						Value: dedupe.DefaultWindow,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute passage embeddings",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "only-missing",
						Usage: "Only embed passages without a vector",
					},
				},
			},
		},
	}
}

// setup loads the dotenv file and the configuration, then configures slog.
func setup(c *cli.Context) error {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	levelStr := cfg.Logging.Level
	if c.IsSet("log-level") {
		levelStr = c.String("log-level")
	}
	if err := setupLogger(levelStr); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(levelStr string) error {
	level, err := config.ParseLevel(levelStr)
	if err != nil {
		return err
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func openArchive(c *cli.Context, opts ...archivist.Option) (*archivist.Archive, error) {
	cfg, err := loadedConfig(c)
	if err != nil {
		return nil, err
	}
	archive, err := archivist.Open(cfg, append([]archivist.Option{archivist.WithLogger(slog.Default())}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return archive, nil
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func joinArgs(c *cli.Context, what string) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("a %s is required", what)
	}
	return text, nil
}

func askCommand(c *cli.Context) error {
	question, err := joinArgs(c, "question")
	if err != nil {
		return err
	}

	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx, cancel := interruptible()
	defer cancel()

	answer, err := archive.Ask(ctx, question, synthesis.WithAdvisory(func(a synthesis.Advisory) {
		fmt.Fprintf(os.Stderr, "Note: %d passages need %d generation calls, more than %d. This may use up the daily quota.\n",
			a.Passages, a.Slices, a.Threshold)
	}))
	if errors.Is(err, archivist.ErrNoPassages) {
		fmt.Fprintln(os.Stdout, "No passages matched the question.")
		return nil
	}
	if errors.Is(err, ai.ErrContentBlocked) {
		return fmt.Errorf("%w; try rephrasing the question", err)
	}
	if errors.Is(err, search.ErrRetrievalUnavailable) {
		return fmt.Errorf("%w; run search --keyword-only to see keyword matches", err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, answer.Narrative)
	if c.Bool("sources") {
		fmt.Fprintln(os.Stdout)
		printRetrieval(os.Stdout, answer.Retrieval)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query, err := joinArgs(c, "query")
	if err != nil {
		return err
	}

	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	searcher, err := archive.NewSearcher()
	if err != nil {
		return err
	}

	retrieval := archive.Config().Retrieval
	keywordLimit := retrieval.KeywordLimit
	if c.Int("keyword-limit") > 0 {
		keywordLimit = c.Int("keyword-limit")
	}
	semanticLimit := retrieval.SemanticLimit
	if c.Int("semantic-limit") > 0 {
		semanticLimit = c.Int("semantic-limit")
	}

	ctx, cancel := interruptible()
	defer cancel()

	var result *core.RetrievalResult
	switch {
	case c.Bool("keyword-only"):
		result, err = searcher.RetrieveKeywordOnly(ctx, query, keywordLimit)
	case c.Bool("trace"):
		result, err = searcher.RetrieveWithMonitor(ctx, query, keywordLimit, semanticLimit, search.NewLoggingMonitor(slog.Default()))
	default:
		result, err = searcher.Retrieve(ctx, query, keywordLimit, semanticLimit)
	}
	if err != nil {
		return err
	}

	printRetrieval(os.Stdout, result)
	return nil
}

// printRetrieval writes a retrieval result in reading order.
func printRetrieval(w io.Writer, result *core.RetrievalResult) {
	if len(result.ExpandedTerms) > 0 {
		fmt.Fprintf(w, "Terms: %s\n", strings.Join(result.ExpandedTerms, ", "))
	}
	fmt.Fprintf(w, "Found %d passages\n", len(result.Passages))
	for i, hit := range result.Passages {
		fmt.Fprintf(w, "%d: [%s #%d] (%s)[%0.3f]\n", i+1, hit.Passage.SourceDocument, hit.Passage.Position, hit.Passage.ID, hit.Score)
		fmt.Fprintf(w, "   %s\n", hit.Passage.Text)
	}
	if len(result.Annotations) > 0 {
		fmt.Fprintf(w, "\nAnnotations (%d):\n", result.AnnotationCount)
		for _, annotation := range result.Annotations {
			fmt.Fprintf(w, "- %s: %s\n", annotation.ID, annotation.Text)
		}
	}
}

// documentName derives a source document name from a file path.
func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseMetadata(pairs []string) (map[string]string, error) {
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		metadata[key] = strings.TrimSpace(value)
	}
	return metadata, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	metadata, err := parseMetadata(c.StringSlice("meta"))
	if err != nil {
		return err
	}

	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	pipeline, err := archive.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	ctx, cancel := interruptible()
	defer cancel()

	total := 0
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		passages, err := pipeline.Ingest(ctx, documentName(path), string(data), metadata)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "%s: %d passages\n", path, len(passages))
		total += len(passages)
	}

	if err := pipeline.Wait(); err != nil {
		// Passages are stored; reembed --only-missing fills the gaps
		slog.Warn("some embeddings failed", "err", err)
	}
	if err := archive.SaveIndex(pipeline.Builder()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Ingested %d passages from %d files\n", total, c.NArg())
	return nil
}

func dedupeCommand(c *cli.Context) error {
	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx, cancel := interruptible()
	defer cancel()

	result, err := archive.Dedupe(ctx, dedupe.WithWindow(c.Int("window")))
	if err != nil {
		return err
	}
	printDedupe(os.Stdout, result)
	return nil
}

func printDedupe(w io.Writer, result *dedupe.Result) {
	if len(result.Merged) == 0 {
		fmt.Fprintln(w, "No overlapping passages found.")
		return
	}
	fmt.Fprintf(w, "Merged %d passages into %d; %d passages remain.\n",
		len(result.Tombstoned), len(result.Merged), len(result.Passages))
	if len(result.Lossy) > 0 {
		fmt.Fprintf(w, "%d merged passages repeat a shared span: %s\n", len(result.Lossy), strings.Join(result.Lossy, ", "))
	}
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("only-missing") {
		cfg.Reembed.OnlyMissing = true
	}

	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Paths.Database)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	ctx, cancel := interruptible()
	defer cancel()

	if err := archive.Reembed(ctx, os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}
