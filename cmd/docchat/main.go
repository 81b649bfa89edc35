package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/domain"
	openaiembed "docchat/internal/embedding/openai"
	"docchat/internal/embedding/tfidf"
	"docchat/internal/llm"
	"docchat/internal/loader"
	"docchat/internal/service"
	"docchat/internal/session"
	"docchat/internal/summarizer"
	"docchat/internal/tui"
	"docchat/internal/vectorstore/local"
	"docchat/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var useTUI bool
	var forceIngest bool
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file (optional)")
	flag.BoolVar(&useTUI, "tui", false, "run the full-screen terminal UI instead of the plain prompt")
	flag.BoolVar(&forceIngest, "ingest", false, "re-ingest documents without asking")
	flag.Parse()

	if err := run(cfgPath, useTUI, forceIngest); err != nil {
		errColor := color.New(color.FgRed, color.Bold)
		errColor.Fprintf(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		if hint := domain.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

func run(cfgPath string, useTUI, forceIngest bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewReader(os.Stdin)

	var embedder domain.Embedder
	switch cfg.Embedder {
	case "openai":
		embedder, err = openaiembed.New(openaiembed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.EmbeddingModel,
			BatchSize:  cfg.OpenAI.BatchSize,
			MaxRetries: cfg.OpenAI.MaxRetries,
			Timeout:    cfg.Timeout(),
		}, logger)
		if err != nil {
			return err
		}
	case "tfidf":
		embedder = tfidf.New()
	}

	// The tfidf vocabulary lives in memory only, so that mode always
	// rebuilds the store at startup.
	ingest := forceIngest || cfg.Embedder == "tfidf"

	var store domain.VectorStore
	switch cfg.Store.Type {
	case "local":
		if !ingest && local.Exists(cfg.Store.Dir) {
			fmt.Println("Existing vector store found.")
			ingest = askYesNo(stdin, "Re-ingest documents? (y/n): ")
		} else if !local.Exists(cfg.Store.Dir) {
			fmt.Println("No vector store found. Starting document ingestion.")
			ingest = true
		}
		// Append mode reuses an existing snapshot, but a first run has
		// nothing to open yet and must create the store either way.
		if ingest && (cfg.IngestMode == config.IngestReplace || !local.Exists(cfg.Store.Dir)) {
			store, err = local.Create(cfg.Store.Dir)
		} else {
			store, err = local.Open(cfg.Store.Dir)
		}
		if err != nil {
			return err
		}
	case "qdrant":
		qs := qdrant.New(qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Timeout:    cfg.Timeout(),
		})
		if !ingest {
			if qs.Count() > 0 {
				fmt.Println("Existing vector store found.")
				ingest = askYesNo(stdin, "Re-ingest documents? (y/n): ")
			} else {
				fmt.Println("No vector store found. Starting document ingestion.")
				ingest = true
			}
		}
		store = qs
	}

	generator, err := llm.New(llm.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.Retrieval.Temperature,
		MaxRetries:  cfg.OpenAI.MaxRetries,
		Timeout:     cfg.Timeout(),
	}, logger)
	if err != nil {
		return err
	}

	splitter, err := chunker.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	svc := service.New(
		loader.New(logger),
		splitter,
		embedder,
		store,
		generator,
		summarizer.New(),
		service.Options{TopK: cfg.Retrieval.TopK, IngestMode: cfg.IngestMode},
		logger,
	)

	var summary string
	if ingest {
		heading := color.New(color.FgYellow, color.Bold)
		heading.Printf("Ingesting documents from %s ...\n", cfg.DocsDir)
		res, err := svc.Ingest(ctx, cfg.DocsDir)
		if err != nil {
			return err
		}
		summary = res.Summary
		fmt.Printf("Ingested %d documents as %d chunks.\n", res.Documents, res.Chunks)
		if summary != "" {
			fmt.Printf("Knowledge base: %s\n", summary)
		}
		fmt.Println()
	}

	if useTUI {
		_, err := tea.NewProgram(tui.New(svc, summary), tea.WithAltScreen()).Run()
		return err
	}
	return session.Run(ctx, svc, stdin, os.Stdout)
}

func askYesNo(in *bufio.Reader, prompt string) bool {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(line)) == "y"
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("unknown log level %q", level), err).
			WithHint("set LOG_LEVEL to debug, info, warn or error")
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}
