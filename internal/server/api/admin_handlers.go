package api

import (
	"net/http"

	"bustrack/internal/logger"
)

type resetBusRequest struct {
	BusID string `json:"busId"`
}

func (h *Handler) liveTrips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := h.service.ListActive(ctx)
	if err != nil {
		h.handleTripError(ctx, w, err)
		return
	}

	views := make([]tripView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, toTripView(s))
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]any{"trips": views})
}

func (h *Handler) tripLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tripID := r.PathValue("id")
	if tripID == "" {
		writeJSONError(ctx, w, http.StatusBadRequest, "trip id is required")
		return
	}

	sample, err := h.service.Latest(ctx, tripID)
	if err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]any{
		"tripId":  sample.TripID,
		"busId":   sample.BusID,
		"lat":     sample.Lat,
		"lng":     sample.Lng,
		"speed":   sample.SpeedKmh,
		"heading": sample.HeadingDegrees,
		"time":    sample.CapturedAt,
	})
}

// resetBus clears a stuck bus lock after an abandoned or crashed trip.
func (h *Handler) resetBus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetBusRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.service.ResetBus(ctx, req.BusID); err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	logger.Warn(ctx, h.logger, "bus_reset", "Bus lock cleared by admin", "bus_id", req.BusID)
	writeJSONInfo(ctx, w, http.StatusOK, map[string]string{"status": "reset", "busId": req.BusID})
}
