package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hailam/chessrelocate/internal/score"
	"github.com/hailam/chessrelocate/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived relocation results, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of results (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.NoStore {
		return fmt.Errorf("history needs the database; drop --no-store")
	}
	store, err := storage.Open(cfg.DataDir, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	records, err := store.Records(historyLimit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No relocation results archived yet.")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, r := range records {
		result := "no improvement"
		if r.Found {
			result = score.Pawns(r.Centipawns)
		}
		fmt.Fprintf(out, "#%d  %s  %s  %s  %d leaves in %v\n",
			r.ID, r.Time.Format("2006-01-02 15:04:05"), r.Policy, result, r.Leaves, r.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(out, "    root: %s\n", r.RootFEN)
		if r.Found {
			fmt.Fprintf(out, "    best: %s\n    moves: %s\n", r.BestFEN, strings.Join(r.Moves, " "))
		}
	}
	return nil
}
