package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var perftCmd = &cobra.Command{
	Use:   "perft <depth> [FEN]",
	Short: "Count leaf nodes of the legal move tree",
	Long: `Count the positions reachable in exactly <depth> plies, listed per root
move. Without a FEN the start position is used.

Examples:
  chessrelocate perft 5
  chessrelocate perft 4 "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPerft,
}

func init() {
	rootCmd.AddCommand(perftCmd)
}

func runPerft(cmd *cobra.Command, args []string) error {
	depth, err := strconv.Atoi(args[0])
	if err != nil || depth < 1 {
		return fmt.Errorf("depth %q must be a positive integer", args[0])
	}
	var fen string
	if len(args) > 1 {
		fen = args[1]
	}
	return runSession(cmd, []string{positionCommand(fen), "go perft " + args[0]})
}
