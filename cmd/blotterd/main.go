// Command blotterd drives the incident extraction pipeline over stored
// articles.
//
// Usage:
//
//	blotterd [flags] run        process all articles in the configured section
//	blotterd [flags] backfill   infer missing incident dates
//	blotterd [flags] pdf FILE   extract incidents from a PDF blotter
//	blotterd [flags] export     write the review workbook
//	blotterd [flags] reset      delete all extracted data (keeps articles)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"blotter"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	exportPath := flag.String("out", "review.xlsx", "Output path for export")
	pdfDate := flag.String("date", "", "Reported date (YYYY-MM-DD) for pdf input")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	applyEnvOverrides(&cfg)

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: blotterd [flags] run|backfill|pdf|export|reset")
		os.Exit(2)
	}

	p, err := blotter.New(cfg)
	if err != nil {
		slog.Error("creating pipeline", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, p, flag.Args(), *exportPath, *pdfDate); err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, p blotter.Pipeline, args []string, exportPath, pdfDate string) error {
	switch args[0] {
	case "run":
		res, err := p.ProcessSection(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)

	case "backfill":
		res, err := p.BackfillDates(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)

	case "pdf":
		if len(args) < 2 {
			return fmt.Errorf("pdf command needs a file argument")
		}
		res, err := p.ProcessPDF(ctx, args[1], pdfDate)
		if err != nil {
			return err
		}
		return printJSON(res)

	case "export":
		if err := p.ExportReview(ctx, exportPath); err != nil {
			return err
		}
		slog.Info("review workbook written", "path", exportPath)
		return nil

	case "reset":
		return p.Reset(ctx)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig reads a YAML or JSON config file, falling back to defaults
// when no path is given.
func loadConfig(path string) (blotter.Config, error) {
	cfg := blotter.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	return cfg, err
}

// applyEnvOverrides lets environment variables win over the config
// file, matching how the pipeline is deployed alongside the scraper.
func applyEnvOverrides(cfg *blotter.Config) {
	if v := os.Getenv("BLOTTER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BLOTTER_SECTION"); v != "" {
		cfg.Section = v
	}
	if v := os.Getenv("BLOTTER_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("BLOTTER_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("BLOTTER_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("BLOTTER_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("BLOTTER_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("BLOTTER_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("BLOTTER_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("BLOTTER_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	// Well-known provider env vars as API key fallback.
	if cfg.Chat.APIKey == "" {
		switch cfg.Chat.Provider {
		case "openai":
			cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			cfg.Chat.APIKey = os.Getenv("GROQ_API_KEY")
		}
	}
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			cfg.Embedding.APIKey = os.Getenv("GROQ_API_KEY")
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
