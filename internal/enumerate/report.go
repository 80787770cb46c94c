package enumerate

import (
	"fmt"
	"io"

	"github.com/hailam/chessrelocate/internal/board"
)

// Usage is printed when the mode selector is not recognised.
const Usage = `Invalid choice! Exiting...
Usage: go relocate <choice>
<choice> = 1 or 2
1: Search across any 4 relocations
2: Search across 4 relocations which are legal moves
`

// Banner announces a run of policy p.
func Banner(p Policy) string {
	return fmt.Sprintf("Searching across %s!\n", p.Name)
}

// WriteReport prints the best score and the best position.
func WriteReport(w io.Writer, res Result) error {
	if !res.Found {
		_, err := fmt.Fprintf(w, "No improvement found over 0.00 (%s side), %d leaves\n", res.Side, res.Leaves)
		return err
	}
	best, err := board.ParseFEN(res.FEN)
	if err != nil {
		// Relocations may leave a position that fails validation; the
		// FEN alone still identifies it.
		_, werr := fmt.Fprintf(w, "Best eval is %s (%s side)\nFen: %s\n", res.Pawns(), res.Side, res.FEN)
		return werr
	}
	_, err = fmt.Fprintf(w, "Best eval is %s (%s side)\n%s\nMoves: %s\n", res.Pawns(), res.Side, best, formatPath(res.Path))
	return err
}

func formatPath(path []board.Move) string {
	s := ""
	for i, m := range path {
		if i > 0 {
			s += " "
		}
		s += m.String()
	}
	return s
}
