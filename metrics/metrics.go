// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package metrics exposes server.Server's queue depths as Prometheus
// gauges, grounded on the teacher's cmd/coordinated/metrics.go
// Observe loop, generalized from Coordinate's per-namespace summary
// to RTE's flat Stats snapshot.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-rte/server"
)

var (
	unassignedIDs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rte",
		Name:      "unassigned_ids",
		Help:      "Number of task ids reserved but not yet assigned a task.",
	})

	pendingTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rte",
		Name:      "pending_tasks",
		Help:      "Number of tasks submitted but not yet picked up by a worker.",
	})

	pendingResults = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rte",
		Name:      "pending_results",
		Help:      "Number of results produced but not yet collected by a client.",
	})

	canceledTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rte",
		Name:      "canceled_tasks",
		Help:      "Number of tasks with a cancellation request awaiting worker acknowledgement.",
	})

	timeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rte",
		Name:      "task_timeouts_total",
		Help:      "Total number of tasks that timed out waiting for a worker heartbeat.",
	})
)

func init() {
	prometheus.MustRegister(unassignedIDs, pendingTasks, pendingResults, canceledTasks, timeouts)
}

// CountTimeout records one task timeout. cmd/rted calls this from
// server.Server's OnTimeout hook, since Stats only reports
// point-in-time queue depths and can't be polled into a running
// total on its own.
func CountTimeout() {
	timeouts.Inc()
}

// Observe polls srv.Stats() every period until ctx is canceled,
// setting each gauge to its latest snapshot value.
func Observe(ctx context.Context, srv *server.Server, period time.Duration, log *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
			stats := srv.Stats()
			unassignedIDs.Set(float64(stats.UnassignedIDs))
			pendingTasks.Set(float64(stats.PendingTasks))
			pendingResults.Set(float64(stats.Results))
			canceledTasks.Set(float64(stats.Canceled))
			log.WithField("stats", stats).Debug("metrics observed server stats")
		}
	}
}
