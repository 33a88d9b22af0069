package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	conflictsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_conflicts_detected_total",
		Help: "Login attempts that found a live session on another device.",
	})
	sessionsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_sessions_registered_total",
		Help: "Sessions activated via register.",
	})
	sessionsKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_sessions_kicked_total",
		Help: "Sessions force-deactivated by id.",
	})
	staleCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_stale_corrections_total",
		Help: "Active records opportunistically deactivated after missing heartbeats.",
	})
	heartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_heartbeats_total",
		Help: "Accepted heartbeat refreshes.",
	})
)
