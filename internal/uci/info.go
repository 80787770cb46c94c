package uci

import (
	"fmt"
	"strings"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/engine"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/score"
)

func (s *Session) sendInfo(info engine.Info) {
	s.println(formatInfo(info, s.chess960.Load(), s.showWDL.Load()))
}

func (s *Session) sendBestMove(best, ponder board.Move) {
	chess960 := s.chess960.Load()
	line := "bestmove " + best.UCI(chess960)
	if ponder.IsOK() {
		line += " ponder " + ponder.UCI(chess960)
	}
	s.println(line)
}

// formatInfo renders one "info" line. A depth 0 report carries only the
// score of a position without legal moves.
func formatInfo(info engine.Info, chess960, showWDL bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "info depth %d", info.Depth)
	if info.Depth == 0 {
		fmt.Fprintf(&b, " score %s", score.Format(info.Value, info.Material))
		return b.String()
	}

	multiPV := max(info.MultiPV, 1)
	fmt.Fprintf(&b, " seldepth %d multipv %d score %s", info.SelDepth, multiPV, score.Format(info.Value, info.Material))
	if showWDL {
		b.WriteString(" " + score.FormatWDL(info.Value, info.Material))
	}
	switch info.Bound {
	case engine.BoundLower:
		b.WriteString(" lowerbound")
	case engine.BoundUpper:
		b.WriteString(" upperbound")
	}
	fmt.Fprintf(&b, " nodes %d nps %d hashfull %d tbhits %d time %d",
		info.Nodes, info.NPS(), info.HashFull, info.TBHits, info.Time.Milliseconds())
	if len(info.PV) > 0 {
		b.WriteString(" pv")
		for _, m := range info.PV {
			b.WriteString(" " + m.UCI(chess960))
		}
	}
	return b.String()
}

func evalTrace(pos *board.Position) string {
	return eval.NewTrace(pos).String()
}
