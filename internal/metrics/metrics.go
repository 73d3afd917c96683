package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wapair_connects_total",
		Help: "Connect requests that created a provider instance",
	})
	QRIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wapair_qr_codes_issued_total",
		Help: "QR codes delivered to event streams",
	})
	QRTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wapair_qr_timeouts_total",
		Help: "QR acquisition attempts exhausted without a code",
	})
	StatusChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wapair_status_changes_total",
		Help: "Provider status transitions observed by pollers",
	})
	PollTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wapair_poll_timeouts_total",
		Help: "Poll loops that hit their deadline before a terminal status",
	})
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wapair_messages_sent_total",
		Help: "Outbound messages accepted by the provider",
	})
)

var sourcesOnce sync.Once

// RegisterSources exposes live gauges backed by the owning components; called
// once from server wiring.
func RegisterSources(sessions, streams, pollers func() int) {
	sourcesOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "wapair_sessions_active",
			Help: "Sessions currently in the registry",
		}, func() float64 { return float64(sessions()) })
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "wapair_event_streams_active",
			Help: "Open event streams",
		}, func() float64 { return float64(streams()) })
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "wapair_status_polls_active",
			Help: "Running status poll loops",
		}, func() float64 { return float64(pollers()) })
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
