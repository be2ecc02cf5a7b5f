/*
Package metrics holds the Prometheus counters for routing and delivery.

The counters live in a private registry so they can be written out for the
node-exporter textfile collector without dragging in the Go runtime
collectors.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons used as the reason label of RecipientsSkipped.
const (
	ReasonInvalidAddress = "invalid_address"
	ReasonUnconfigured   = "unconfigured"
)

// Delivery outcomes used as the outcome label of Deliveries.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

var (
	RecipientsRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailrise_recipients_routed_total",
		Help: "Total number of recipients resolved to a notification",
	}, []string{"config"})
	RecipientsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailrise_recipients_skipped_total",
		Help: "Total number of recipients skipped during routing",
	}, []string{"reason"})
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailrise_deliveries_total",
		Help: "Total number of notification deliveries per target scheme and outcome",
	}, []string{"scheme", "outcome"})

	// Registry holds every mailrise metric.
	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(RecipientsRouted, RecipientsSkipped, Deliveries)
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
