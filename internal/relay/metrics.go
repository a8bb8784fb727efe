package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream outcomes used as metric labels.
const (
	outcomeDone          = "done"
	outcomeConnectError  = "connect_error"
	outcomeStreamError   = "stream_error"
	outcomeClientGone    = "client_gone"
	outcomeIdleTimeout   = "idle_timeout"
	outcomeInternalError = "internal_error"
)

var (
	streamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stickyboard_relay_streams_total",
		Help: "Completed relay streams by outcome",
	}, []string{"outcome"})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stickyboard_relay_frames_total",
		Help: "Frames sent to clients by kind",
	}, []string{"kind"})

	malformedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stickyboard_relay_malformed_events_total",
		Help: "Upstream events skipped because they could not be parsed",
	})

	streamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stickyboard_relay_stream_duration_seconds",
		Help:    "Wall time of relay streams",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"outcome"})
)
