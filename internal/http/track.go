package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/metrics"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/tracking"
)

// transparent 1x1 GIF served by the open pixel
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func trackIDs(c echo.Context) (int64, int64, bool) {
	campaignID, err := strconv.ParseInt(c.QueryParam("campaign"), 10, 64)
	if err != nil || campaignID <= 0 {
		return 0, 0, false
	}
	contactID, err := strconv.ParseInt(c.QueryParam("contact"), 10, 64)
	if err != nil || contactID <= 0 {
		return 0, 0, false
	}
	return campaignID, contactID, true
}

// openPixelHandler records an open and always answers with the pixel when the
// token is valid. A bad token is rejected before any state is touched.
func openPixelHandler(codec *tracking.Codec, machine *delivery.Machine) echo.HandlerFunc {
	return func(c echo.Context) error {
		campaignID, contactID, ok := trackIDs(c)
		if !ok || !codec.Verify(c.QueryParam("token"), campaignID, contactID) {
			metrics.TrackingHitsTotal.WithLabelValues("open", "rejected").Inc()
			return c.NoContent(http.StatusForbidden)
		}

		outcome, err := machine.Apply(c.Request().Context(), campaignID, contactID, delivery.Event{
			Type:       model.EventOpened,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			log.Errorf("open apply failed: %v", err)
		}
		metrics.TrackingHitsTotal.WithLabelValues("open", outcome.String()).Inc()

		c.Response().Header().Set("Cache-Control", "no-store, max-age=0")
		return c.Blob(http.StatusOK, "image/gif", pixelGIF)
	}
}

// clickRedirectHandler records a click and 302s to the original destination.
func clickRedirectHandler(codec *tracking.Codec, machine *delivery.Machine) echo.HandlerFunc {
	return func(c echo.Context) error {
		campaignID, contactID, ok := trackIDs(c)
		if !ok || !codec.Verify(c.QueryParam("token"), campaignID, contactID) {
			metrics.TrackingHitsTotal.WithLabelValues("click", "rejected").Inc()
			return c.NoContent(http.StatusForbidden)
		}

		dest, err := tracking.DecodeClickTarget(c.QueryParam("url"))
		if err != nil || dest == "" {
			metrics.TrackingHitsTotal.WithLabelValues("click", "rejected").Inc()
			return c.NoContent(http.StatusBadRequest)
		}

		outcome, err := machine.Apply(c.Request().Context(), campaignID, contactID, delivery.Event{
			Type:       model.EventClicked,
			OccurredAt: time.Now().UTC(),
			Data:       map[string]any{"url": dest},
		})
		if err != nil {
			log.Errorf("click apply failed: %v", err)
		}
		metrics.TrackingHitsTotal.WithLabelValues("click", outcome.String()).Inc()

		return c.Redirect(http.StatusFound, dest)
	}
}

// unsubscribeHandler flips the contact's unsubscribed flag and applies the
// unsubscribed branch to the campaign membership. The token binds
// campaign, contact and the contact's current email address.
func unsubscribeHandler(
	codec *tracking.Codec,
	machine *delivery.Machine,
	contacts repository.ContactsRepository,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		campaignID, contactID, ok := trackIDs(c)
		if !ok {
			metrics.TrackingHitsTotal.WithLabelValues("unsubscribe", "rejected").Inc()
			return c.NoContent(http.StatusForbidden)
		}

		contact, err := contacts.GetByID(c.Request().Context(), contactID)
		if err != nil && !errors.Is(err, delivery.ErrNotFound) {
			log.Errorf("unsubscribe contact lookup failed: %v", err)
			return c.NoContent(http.StatusInternalServerError)
		}
		if contact == nil || !codec.VerifyUnsubscribe(c.QueryParam("token"), campaignID, contactID, contact.Email) {
			metrics.TrackingHitsTotal.WithLabelValues("unsubscribe", "rejected").Inc()
			return c.NoContent(http.StatusForbidden)
		}

		outcome, err := machine.Apply(c.Request().Context(), campaignID, contactID, delivery.Event{
			Type:       model.EventUnsubscribed,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			log.Errorf("unsubscribe apply failed: %v", err)
			return c.NoContent(http.StatusInternalServerError)
		}
		metrics.TrackingHitsTotal.WithLabelValues("unsubscribe", outcome.String()).Inc()

		return c.HTML(http.StatusOK,
			`<html><body><p>You have been unsubscribed and will not receive further emails.</p></body></html>`)
	}
}
