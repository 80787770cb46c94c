package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessrelocate/internal/board"
)

// DefaultLichessURL is the public standard-chess endpoint.
const DefaultLichessURL = "https://tablebase.lichess.ovh/standard"

// LichessProber queries the Lichess tablebase HTTP API.
type LichessProber struct {
	baseURL   string
	client    *http.Client
	maxPieces int
	logger    *zap.Logger
}

var _ Prober = (*LichessProber)(nil)

// NewLichessProber returns a prober for baseURL, or for DefaultLichessURL
// when baseURL is empty.
func NewLichessProber(baseURL string, logger *zap.Logger) *LichessProber {
	if baseURL == "" {
		baseURL = DefaultLichessURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LichessProber{
		baseURL:   strings.TrimRight(baseURL, "?"),
		client:    &http.Client{Timeout: 5 * time.Second},
		maxPieces: 7,
		logger:    logger,
	}
}

type lichessMove struct {
	UCI      string `json:"uci"`
	Category string `json:"category"`
	DTZ      *int   `json:"dtz"`
}

type lichessResponse struct {
	Category string        `json:"category"`
	DTZ      *int          `json:"dtz"`
	Moves    []lichessMove `json:"moves"`
}

func (lp *LichessProber) query(ctx context.Context, pos *board.Position) (*lichessResponse, error) {
	if CountPieces(pos) > lp.maxPieces {
		return nil, ErrUnavailable
	}
	fen := strings.ReplaceAll(pos.ToFEN(), " ", "_")
	reqURL := lp.baseURL + "?fen=" + url.QueryEscape(fen)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("tablebase: build request: %w", err)
	}
	resp, err := lp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tablebase: query %s: %w", lp.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tablebase: %s returned %s", lp.baseURL, resp.Status)
	}
	var out lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tablebase: decode response: %w", err)
	}
	lp.logger.Debug("probe", zap.String("fen", fen), zap.String("category", out.Category))
	return &out, nil
}

// Probe implements Prober.
func (lp *LichessProber) Probe(ctx context.Context, pos *board.Position) (ProbeResult, error) {
	res, err := lp.query(ctx, pos)
	if err != nil {
		return ProbeResult{}, err
	}
	wdl, ok := categoryToWDL(res.Category)
	if !ok {
		return ProbeResult{}, ErrUnavailable
	}
	return ProbeResult{WDL: wdl, DTZ: deref(res.DTZ)}, nil
}

// ProbeRoot implements Prober. The API lists moves best first.
func (lp *LichessProber) ProbeRoot(ctx context.Context, pos *board.Position) (RootResult, error) {
	res, err := lp.query(ctx, pos)
	if err != nil {
		return RootResult{}, err
	}
	wdl, ok := categoryToWDL(res.Category)
	if !ok || len(res.Moves) == 0 {
		return RootResult{}, ErrUnavailable
	}
	m, err := board.ParseMove(res.Moves[0].UCI, pos, false)
	if err != nil {
		return RootResult{}, fmt.Errorf("tablebase: best move %q: %w", res.Moves[0].UCI, err)
	}
	return RootResult{Move: m, WDL: wdl, DTZ: deref(res.DTZ)}, nil
}

// MaxPieces implements Prober.
func (lp *LichessProber) MaxPieces() int { return lp.maxPieces }

func categoryToWDL(category string) (WDL, bool) {
	switch category {
	case "win", "syzygy-win", "maybe-win":
		return WDLWin, true
	case "cursed-win":
		return WDLCursedWin, true
	case "draw":
		return WDLDraw, true
	case "blessed-loss":
		return WDLBlessedLoss, true
	case "loss", "syzygy-loss", "maybe-loss":
		return WDLLoss, true
	}
	return WDLDraw, false
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
