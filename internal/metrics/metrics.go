package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "eventstack"
)

var (
	// SubscribersActive tracks open vote channels on the server
	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vote_subscribers",
			Help:      "Number of open vote channel subscribers",
		},
	)

	// BroadcastsTotal counts vote_update messages sent to subscribers
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_broadcasts_total",
			Help:      "Total number of vote_update messages sent",
		},
		[]string{"status"}, // sent/dropped
	)

	// VotesTotal counts vote changes
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of vote changes",
		},
		[]string{"action"}, // vote/unvote
	)

	// ClientStatus counts connectivity statuses surfaced by the client
	ClientStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_status_total",
			Help:      "Connectivity statuses emitted by the vote client",
		},
		[]string{"status"}, // connected/disconnected/error/failed
	)

	// ClientReconnects counts automatic reconnects that fired
	ClientReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_reconnects_total",
			Help:      "Total number of automatic reconnection attempts",
		},
	)

	// ClientDecodeFailures counts inbound frames that could not be decoded
	ClientDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_decode_failures_total",
			Help:      "Total number of malformed inbound messages",
		},
	)
)
