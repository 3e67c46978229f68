package alpaca

import (
	"iter"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// Metrics counts REST calls and stream traffic of a Client.
// Methods on a nil *Metrics are no-ops.
type Metrics struct {
	requests *prometheus.CounterVec
	messages *prometheus.CounterVec
	states   *prometheus.CounterVec
	active   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "alpaca_rest_requests_total", Help: "REST requests by method and response status"},
			[]string{"method", "status"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "alpaca_stream_messages_total", Help: "Decoded stream messages by channel and type"},
			[]string{"channel", "type"},
		),
		states: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "alpaca_stream_state_changes_total", Help: "Stream session state transitions"},
			[]string{"channel", "state"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "alpaca_stream_active", Help: "Stream sessions between connecting and a terminal state"},
			[]string{"channel"},
		),
	}

	for _, collector := range []prometheus.Collector{m.requests, m.messages, m.states, m.active} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// observeRequest records one REST call. status is 0 when no response arrived.
func (m *Metrics) observeRequest(method string, status int) {
	if m == nil {
		return
	}

	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}

	m.requests.WithLabelValues(method, label).Inc()
}

func (m *Metrics) observeState(channel Channel, state stream.State) {
	if m == nil {
		return
	}

	m.states.WithLabelValues(string(channel), string(state)).Inc()

	switch {
	case state == stream.StateConnecting:
		m.active.WithLabelValues(string(channel)).Inc()
	case state.IsTerminal():
		m.active.WithLabelValues(string(channel)).Dec()
	}
}

func (m *Metrics) observeMessage(channel Channel, kind string) {
	if m == nil {
		return
	}

	m.messages.WithLabelValues(string(channel), kind).Inc()
}

// countBatches counts every message of every batch flowing through seq.
func (m *Metrics) countBatches(channel Channel, seq iter.Seq2[[]stream.Message, error]) iter.Seq2[[]stream.Message, error] {
	if m == nil {
		return seq
	}

	return func(yield func([]stream.Message, error) bool) {
		for batch, err := range seq {
			for _, message := range batch {
				m.observeMessage(channel, string(message.MessageType()))
			}

			if !yield(batch, err) {
				return
			}
		}
	}
}

// countEvents counts account events by their stream name.
func (m *Metrics) countEvents(seq iter.Seq2[stream.AccountEvent, error]) iter.Seq2[stream.AccountEvent, error] {
	if m == nil {
		return seq
	}

	return func(yield func(stream.AccountEvent, error) bool) {
		for event, err := range seq {
			if err == nil {
				m.observeMessage(ChannelAccount, event.Stream)
			}

			if !yield(event, err) {
				return
			}
		}
	}
}
