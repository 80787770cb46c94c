package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestCounterAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.IncCounter("leaves_total", 5)
	c.IncCounter("leaves_total", 3)
	if got := gather(t, reg, "leaves_total"); got != 8 {
		t.Errorf("counter = %v, want 8", got)
	}
}

func TestGaugeOverwrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.SetGauge("hashfull", 10)
	c.SetGauge("hashfull", 42)
	if got := gather(t, reg, "hashfull"); got != 42 {
		t.Errorf("gauge = %v, want 42", got)
	}
}

func TestHistogramCountsSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	for _, v := range []float64{0.01, 0.2, 3} {
		c.ObserveHistogram("enum_seconds", v)
	}
	if got := gather(t, reg, "enum_seconds"); got != 3 {
		t.Errorf("sample count = %v, want 3", got)
	}
}

func TestSharedRegistryReusesMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).IncCounter("shared_total", 1)
	New(reg).IncCounter("shared_total", 2)
	if got := gather(t, reg, "shared_total"); got != 3 {
		t.Errorf("counter = %v, want 3", got)
	}
}
