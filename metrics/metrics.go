package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	// the go otel metrics sdk also has a prometheus adapter that implements this interface.
	prometheus.Collector
}

type Metrics struct {
	MessageCount  Observer
	CommandCount  Observer
	RoundCount    Observer
	Wagered       Observer
	PaidOut       Observer
	ActiveTables  Observer
	RelayCount    Observer
	RelayLatency  Observer
	PaydayClaimed Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessageCount,
		m.CommandCount,
		m.RoundCount,
		m.Wagered,
		m.PaidOut,
		m.ActiveTables,
		m.RelayCount,
		m.RelayLatency,
		m.PaydayClaimed,
	}
}

// Discard returns metrics that record nothing.
func Discard() *Metrics {
	c := func(name string) Observer {
		return NewPromCounter(prometheus.NewCounter(prometheus.CounterOpts{Name: name}))
	}
	return &Metrics{
		MessageCount:  c("messages"),
		CommandCount:  NewPromCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{Name: "commands"}, []string{"command"})),
		RoundCount:    c("rounds"),
		Wagered:       c("wagered"),
		PaidOut:       c("paid"),
		ActiveTables:  NewPromGauge(prometheus.NewGauge(prometheus.GaugeOpts{Name: "tables"})),
		RelayCount:    c("relayed"),
		RelayLatency:  NewPromObserverVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "relay_latency"}, []string{"channel"})),
		PaydayClaimed: c("payday"),
	}
}
