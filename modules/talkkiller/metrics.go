package talkkiller

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	ticks       prometheus.Counter
	switches    prometheus.Counter
	blocked     prometheus.Counter
	score       prometheus.Gauge
	accumulated prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tunehop",
			Subsystem: "talkkiller",
			Name:      "ticks_total",
			Help:      "Sampling ticks executed.",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tunehop",
			Subsystem: "talkkiller",
			Name:      "switches_total",
			Help:      "Automatic station switches triggered by sustained speech.",
		}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tunehop",
			Subsystem: "talkkiller",
			Name:      "analysis_blocked_total",
			Help:      "Stations for which spectral analysis became unavailable.",
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tunehop",
			Subsystem: "talkkiller",
			Name:      "speech_score",
			Help:      "Speech score of the most recent tick.",
		}),
		accumulated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tunehop",
			Subsystem: "talkkiller",
			Name:      "speech_seconds_accumulated",
			Help:      "Consecutive speech seconds accumulated so far.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ticks, m.switches, m.blocked, m.score, m.accumulated)
	}

	return m
}
