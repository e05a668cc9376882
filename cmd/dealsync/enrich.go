package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hyperengineering/dealsync/internal/config"
	"github.com/hyperengineering/dealsync/internal/enrich"
	"github.com/spf13/cobra"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

var enrichCmd = &cobra.Command{
	Use:   "enrich <input.csv> [output.csv]",
	Short: "Discover decision makers for companies listed in a CSV",
	Long: `Reads a CSV with "Domain" and "Company Name" columns, runs
role-targeted web searches per company, extracts structured contacts
with an LLM, and writes them to an output CSV.

Requires SERPER_API_KEY and OPENROUTER_API_KEY in the environment.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEnrich,
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogger(cfg)

	if cfg.Enrich.SerperAPIKey == "" || cfg.Enrich.OpenRouterAPIKey == "" {
		return errors.New("SERPER_API_KEY and OPENROUTER_API_KEY must be set")
	}

	inputPath := args[0]
	outputPath := defaultOutputPath(inputPath)
	if len(args) == 2 {
		outputPath = args[1]
	}

	companies, err := enrich.ReadCompanies(inputPath)
	if err != nil {
		return err
	}
	slog.Info("starting enrichment",
		"component", "enrich",
		"companies", len(companies),
		"batch_size", cfg.Enrich.BatchSize,
		"model", cfg.Enrich.Model,
	)

	pipeline := enrich.NewPipeline(
		enrich.NewSerperClient(cfg.Enrich.SerperAPIKey),
		enrich.NewLLMExtractor(openRouterBaseURL, cfg.Enrich.OpenRouterAPIKey, cfg.Enrich.Model),
		cfg.Enrich.BatchSize,
	)

	contacts, err := pipeline.Run(ctx, companies)
	if err != nil {
		return err
	}

	if err := enrich.WriteContacts(outputPath, contacts); err != nil {
		return err
	}

	fmt.Printf("Wrote %d contacts for %d companies to %s\n", len(contacts), len(companies), outputPath)
	return nil
}

// defaultOutputPath derives the output file name from the input name.
func defaultOutputPath(inputPath string) string {
	base := strings.TrimSuffix(inputPath, ".csv")
	return base + "_decision_makers.csv"
}
