// Package logger writes metric updates to a zap logger at debug level.
package logger

import (
	"go.uber.org/zap"

	"github.com/hailam/chessrelocate/internal/stats"
)

// Collector logs every update.
type Collector struct {
	logger *zap.Logger
}

var _ stats.Collector = (*Collector)(nil)

// New returns a collector logging to l, or to a no-op logger if l is nil.
func New(l *zap.Logger) *Collector {
	if l == nil {
		l = zap.NewNop()
	}
	return &Collector{logger: l.Named("stats")}
}

func (c *Collector) IncCounter(name string, delta int64) {
	c.logger.Debug("counter", zap.String("metric", name), zap.Int64("delta", delta))
}

func (c *Collector) SetGauge(name string, value int64) {
	c.logger.Debug("gauge", zap.String("metric", name), zap.Int64("value", value))
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	c.logger.Debug("histogram", zap.String("metric", name), zap.Float64("value", value))
}
