// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "poker_events_published_total",
	Help: "Domain events published to the room bus, by event type.",
}, []string{"type"})

var ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "poker_active_streams",
	Help: "Currently connected room update streams.",
})

var StreamResumes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "poker_stream_resumes_total",
	Help: "Subscriptions that supplied a lastEventId and received a synthesized roomState baseline.",
})
