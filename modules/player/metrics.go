package player

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	relayBytes prometheus.Counter
	reconnects prometheus.Counter
	switches   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		relayBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tunehop",
			Subsystem: "player",
			Name:      "stream_bytes_total",
			Help:      "Audio bytes read from the upstream station.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tunehop",
			Subsystem: "player",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts after upstream disconnects.",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tunehop",
			Subsystem: "player",
			Name:      "station_switches_total",
			Help:      "Station switches, manual and automatic.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.relayBytes, m.reconnects, m.switches)
	}

	return m
}
