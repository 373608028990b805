package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zephyrtronium/casino/metrics"
)

func TestObservers(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "c"})
	metrics.NewPromCounter(c).Observe(3)
	if got := testutil.ToFloat64(c); got != 3 {
		t.Errorf("wrong counter value %v", got)
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "v"}, []string{"command"})
	o := metrics.NewPromCounterVec(v)
	o.Observe(1, "bet")
	o.Observe(1, "bet")
	o.Observe(1, "hit")
	if got := testutil.ToFloat64(v.WithLabelValues("bet")); got != 2 {
		t.Errorf("wrong bet count %v", got)
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "g"})
	gg := metrics.NewPromGauge(g)
	gg.Observe(2)
	gg.Observe(-1)
	if got := testutil.ToFloat64(g); got != 1 {
		t.Errorf("wrong gauge value %v", got)
	}
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	for _, c := range metrics.Discard().Collectors() {
		if err := reg.Register(c); err != nil {
			t.Errorf("couldn't register %v: %v", c, err)
		}
	}
}
