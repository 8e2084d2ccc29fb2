package http

import (
	"errors"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/doug7410/samplepal-leads-sub001/internal/metrics"
	"github.com/doug7410/samplepal-leads-sub001/internal/reconcile"
)

// mailWebhookHandler ingests provider delivery notifications. The signature
// is checked over the raw body before anything else; duplicates and
// out-of-order events are absorbed by the state machine.
func mailWebhookHandler(rec *reconcile.Reconciler) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		if !rec.VerifySignature(body, c.Request().Header.Get("X-Webhook-Signature")) {
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
			return c.NoContent(http.StatusForbidden)
		}

		evType, outcome, err := rec.Ingest(c.Request().Context(), body)
		if err != nil {
			if errors.Is(err, reconcile.ErrMalformed) {
				metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed event"})
			}
			log.Errorf("webhook ingest failed: %v", err)
			return c.NoContent(http.StatusInternalServerError)
		}

		metrics.WebhookEventsTotal.WithLabelValues(evType.String(), outcome.String()).Inc()

		// unknown targets are dropped, not retried by the provider
		return c.JSON(http.StatusOK, map[string]string{"outcome": outcome.String()})
	}
}
