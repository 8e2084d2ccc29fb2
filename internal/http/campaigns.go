package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/dispatcher"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
)

func campaignParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// startCampaignHandler moves a startable campaign to in_progress and kicks
// the dispatcher. The dispatcher reschedules itself until the campaign
// reaches a terminal status.
func startCampaignHandler(
	campaigns repository.CampaignsRepository,
	disp *dispatcher.BatchDispatcher,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := campaignParam(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad campaign id"})
		}

		cam, err := campaigns.GetByID(c.Request().Context(), id)
		if errors.Is(err, delivery.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
		}
		if err != nil {
			log.Errorf("campaign lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if !cam.Status.Startable() {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":  "campaign not startable",
				"status": cam.Status.String(),
			})
		}

		if err := campaigns.UpdateStatus(c.Request().Context(), id, model.CampaignInProgress); err != nil {
			log.Errorf("campaign status update failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := disp.DispatchCampaign(ctx, id); err != nil {
				log.Errorf("dispatch campaign %d failed: %v", id, err)
			}
		}()

		return c.JSON(http.StatusAccepted, map[string]any{
			"id":     id,
			"status": model.CampaignInProgress.String(),
		})
	}
}

// stopCampaignHandler halts an in-progress campaign. In-flight sends finish
// on their own; contacts still pending or processing go back to pending so
// a later resume picks them up.
func stopCampaignHandler(
	campaigns repository.CampaignsRepository,
	contacts repository.CampaignContactsRepository,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := campaignParam(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad campaign id"})
		}

		cam, err := campaigns.GetByID(c.Request().Context(), id)
		if errors.Is(err, delivery.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
		}
		if err != nil {
			log.Errorf("campaign lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if cam.Status != model.CampaignInProgress && cam.Status != model.CampaignPaused {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":  "campaign not running",
				"status": cam.Status.String(),
			})
		}

		if err := campaigns.UpdateStatus(c.Request().Context(), id, model.CampaignStopped); err != nil {
			log.Errorf("campaign status update failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		reset, err := contacts.ResetForResume(c.Request().Context(), id)
		if err != nil {
			log.Errorf("campaign %d reset failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"id":     id,
			"status": model.CampaignStopped.String(),
			"reset":  reset,
		})
	}
}

// getCampaignHandler reports the campaign status and per-status contact
// counts straight from MySQL.
func getCampaignHandler(
	campaigns repository.CampaignsRepository,
	contacts repository.CampaignContactsRepository,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := campaignParam(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad campaign id"})
		}

		cam, err := campaigns.GetByID(c.Request().Context(), id)
		if errors.Is(err, delivery.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
		}
		if err != nil {
			log.Errorf("campaign lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		counts, err := contacts.CountByStatus(c.Request().Context(), id, nil)
		if err != nil {
			log.Errorf("campaign %d counts failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		byStatus := make(map[string]int, len(counts))
		total := 0
		for st, n := range counts {
			byStatus[st.String()] = n
			total += n
		}

		return c.JSON(http.StatusOK, map[string]any{
			"id":           cam.ID,
			"name":         cam.Name,
			"type":         string(cam.Type),
			"status":       cam.Status.String(),
			"completed_at": cam.CompletedAt,
			"contacts":     total,
			"by_status":    byStatus,
		})
	}
}
