// Package metrics holds the domain counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_feed_changes_total",
			Help: "Change-feed events received, by outcome",
		},
		[]string{"table", "type", "outcome"},
	)

	feedSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadsync_feed_subscriptions",
			Help: "Open change-feed subscriptions",
		},
		[]string{"table"},
	)

	feedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_feed_failures_total",
			Help: "Change-feed subscriptions that ended with a permanent failure",
		},
		[]string{"table"},
	)

	webhookResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_webhook_results_total",
			Help: "Qualification results ingested, by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	triggerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_trigger_transitions_total",
			Help: "Trigger flag arm/disarm attempts",
		},
		[]string{"flag", "action", "outcome"},
	)

	queueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_queue_messages_total",
			Help: "AMQP messages published or consumed, by outcome",
		},
		[]string{"queue", "outcome"},
	)
)

func RecordChange(table, eventType, outcome string) {
	feedChanges.WithLabelValues(table, eventType, outcome).Inc()
}

func SubscriptionOpened(table string) {
	feedSubscriptions.WithLabelValues(table).Inc()
}

func SubscriptionClosed(table string) {
	feedSubscriptions.WithLabelValues(table).Dec()
}

func RecordFeedFailure(table string) {
	feedFailures.WithLabelValues(table).Inc()
}

func RecordWebhook(path, outcome string) {
	webhookResults.WithLabelValues(path, outcome).Inc()
}

func RecordTrigger(flag, action, outcome string) {
	triggerTransitions.WithLabelValues(flag, action, outcome).Inc()
}

func RecordQueueMessage(queue, outcome string) {
	queueMessages.WithLabelValues(queue, outcome).Inc()
}
