package dot11

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts codec activity. A nil *Metrics records nothing.
type Metrics struct {
	decodes   *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	encodes   *prometheus.CounterVec
}

// NewMetrics creates the codec counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wifi",
				Subsystem: "dot11",
				Name:      "decode_total",
				Help:      "Total frame bodies decoded, by frame type and outcome status.",
			},
			[]string{"frame", "status"},
		),
		anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wifi",
				Subsystem: "dot11",
				Name:      "anomalies_total",
				Help:      "Total element anomalies recorded while decoding.",
			},
			[]string{"frame", "element"},
		),
		encodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wifi",
				Subsystem: "dot11",
				Name:      "encode_total",
				Help:      "Total frame bodies encoded, by frame type and result.",
			},
			[]string{"frame", "result"},
		),
	}

	for _, c := range []prometheus.Collector{m.decodes, m.anomalies, m.encodes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observeDecode(t FrameType, o *Outcome) {
	if m == nil {
		return
	}

	frame := t.String()
	m.decodes.WithLabelValues(frame, o.Status.String()).Inc()
	for _, a := range o.Warnings {
		m.anomalies.WithLabelValues(frame, a.Key.String()).Inc()
	}
	if o.Fatal != nil {
		element := "-"
		if attributable(o.Fatal.Err) {
			element = o.Fatal.Key.String()
		}
		m.anomalies.WithLabelValues(frame, element).Inc()
	}
}

func (m *Metrics) observeEncode(t FrameType, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.encodes.WithLabelValues(t.String(), result).Inc()
}
