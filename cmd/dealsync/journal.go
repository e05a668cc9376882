package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hyperengineering/dealsync/internal/config"
	"github.com/hyperengineering/dealsync/internal/journal"
	"github.com/spf13/cobra"
)

var (
	journalDealID string
	journalLimit  int
	journalJSON   bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the local mutation journal",
}

var journalTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent settled mutations",
	RunE:  runJournalTail,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mutation counts by outcome",
	RunE:  runJournalStats,
}

func init() {
	journalCmd.PersistentFlags().StringVar(&journalDealID, "deal", "",
		"Filter entries to one deal id")
	journalCmd.PersistentFlags().BoolVar(&journalJSON, "json", false,
		"Output in JSON format")
	journalTailCmd.Flags().IntVar(&journalLimit, "limit", 20,
		"Maximum number of entries to show")

	journalCmd.AddCommand(journalTailCmd)
	journalCmd.AddCommand(journalStatsCmd)
}

func openJournal() (*journal.Journal, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogger(cfg)
	return journal.Open(cfg.Journal.Path)
}

func runJournalTail(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Tail(cmd.Context(), journalDealID, journalLimit)
	if err != nil {
		return err
	}

	if journalJSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tDEAL\tOPERATION\tACTOR\tOUTCOME")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.DealID, e.Operation, e.ActorID, e.Outcome)
	}
	return w.Flush()
}

func runJournalStats(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	counts, err := j.CountByOutcome(cmd.Context())
	if err != nil {
		return err
	}

	if journalJSON {
		return json.NewEncoder(os.Stdout).Encode(counts)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OUTCOME\tCOUNT")
	for _, outcome := range []journal.Outcome{journal.OutcomeCommitted, journal.OutcomeRolledBack, journal.OutcomeConflict} {
		fmt.Fprintf(w, "%s\t%d\n", outcome, counts[outcome])
	}
	return w.Flush()
}
