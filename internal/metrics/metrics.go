// Package metrics exposes Prometheus counters for auth outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Signups counts signup attempts by result (created, email_taken, invalid, error).
	Signups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_signups_total",
		Help: "Total number of signup attempts",
	}, []string{"result"})

	// Signins counts signin attempts by result (ok, invalid_credentials, error).
	Signins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_signins_total",
		Help: "Total number of signin attempts",
	}, []string{"result"})

	// Refreshes counts refresh attempts by result (rotated, missing, invalid, conflict, error).
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refreshes_total",
		Help: "Total number of refresh-token rotation attempts",
	}, []string{"result"})

	// SessionsRevoked counts explicit session revocations (signout, signout_all).
	SessionsRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sessions_revoked_total",
		Help: "Total number of sessions revoked by user action",
	}, []string{"scope"})
)
