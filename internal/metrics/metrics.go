package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samplepal_emails_total",
			Help: "Email lifecycle counter by stage and lane",
		},
		[]string{"stage", "lane"}, // enqueued|sent|failed|skipped , campaign|sequence
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samplepal_webhook_events_total",
			Help: "Provider webhook events by type and outcome",
		},
		[]string{"type", "outcome"}, // delivered|opened|... , applied|stale|unknown_target|rejected
	)

	TrackingHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samplepal_tracking_hits_total",
			Help: "Tracking endpoint hits by kind and outcome",
		},
		[]string{"kind", "outcome"}, // open|click|unsubscribe , applied|stale|unknown_target|rejected
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EmailsTotal,
		WebhookEventsTotal,
		TrackingHitsTotal,
	)
}
