package monitoring

import (
	"livesignal/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	connectionsOpen prometheus.Gauge
	streamsActive   prometheus.Gauge
	roomViewers     *prometheus.GaugeVec

	// Counters
	streamsStartedTotal prometheus.Counter
	streamsStoppedTotal prometheus.Counter
	signalsRelayedTotal prometheus.Counter
	signalsDroppedTotal prometheus.Counter
	joinsIgnoredTotal   prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livesignal_connections_open",
			Help: "Number of open signaling channels",
		}),

		streamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livesignal_streams_active",
			Help: "Number of currently live streams",
		}),

		roomViewers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livesignal_room_viewers",
			Help: "Number of viewers per live room",
		}, []string{"room_id"}),

		streamsStartedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livesignal_streams_started_total",
			Help: "Total number of streams started",
		}),

		streamsStoppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livesignal_streams_stopped_total",
			Help: "Total number of streams stopped",
		}),

		signalsRelayedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livesignal_signals_relayed_total",
			Help: "Total number of WebRTC signaling payloads relayed",
		}),

		signalsDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livesignal_signals_dropped_total",
			Help: "Total number of relays dropped because the target was gone",
		}),

		joinsIgnoredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livesignal_joins_ignored_total",
			Help: "Total number of joins ignored for unknown streamers",
		}),
	}
}

func (p *PrometheusCollector) RecordConnectionOpened() {
	p.connectionsOpen.Inc()
}

func (p *PrometheusCollector) RecordConnectionClosed() {
	p.connectionsOpen.Dec()
}

func (p *PrometheusCollector) RecordStreamStarted(streamer domain.Identity) {
	p.streamsActive.Inc()
	p.streamsStartedTotal.Inc()
}

func (p *PrometheusCollector) RecordStreamStopped(streamer domain.Identity) {
	p.streamsActive.Dec()
	p.streamsStoppedTotal.Inc()
	p.roomViewers.DeleteLabelValues(string(domain.LiveRoomID(streamer)))
}

func (p *PrometheusCollector) RecordViewerJoined(room domain.RoomID) {
	p.roomViewers.WithLabelValues(string(room)).Inc()
}

func (p *PrometheusCollector) RecordViewerLeft(room domain.RoomID) {
	p.roomViewers.WithLabelValues(string(room)).Dec()
}

func (p *PrometheusCollector) RecordSignalRelayed() {
	p.signalsRelayedTotal.Inc()
}

func (p *PrometheusCollector) RecordSignalDropped() {
	p.signalsDroppedTotal.Inc()
}

func (p *PrometheusCollector) RecordJoinIgnored() {
	p.joinsIgnoredTotal.Inc()
}
