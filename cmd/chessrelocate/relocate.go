package main

import (
	"github.com/spf13/cobra"

	"github.com/hailam/chessrelocate/internal/enumerate"
)

var relocateCmd = &cobra.Command{
	Use:   "relocate <mode> [FEN]",
	Short: "Find the best four-piece relocation for the side to move",
	Long: `Enumerate relocations of the side to move's pieces and print the
best-scoring position.

Modes:
  1  any four back-rank pieces moved to free squares on ranks 3 to 6
  2  four legal moves in a row, the opponent passing in between

Examples:
  chessrelocate relocate 2
  chessrelocate relocate 1 "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRelocate,
}

func init() {
	rootCmd.AddCommand(relocateCmd)
}

func runRelocate(cmd *cobra.Command, args []string) error {
	if _, err := enumerate.ParseMode(args[0]); err != nil {
		cmd.Print(enumerate.Usage)
		return err
	}
	var fen string
	if len(args) > 1 {
		fen = args[1]
	}
	return runSession(cmd, []string{positionCommand(fen), "go relocate " + args[0]})
}
