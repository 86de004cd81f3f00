package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bustrack/internal/contextx"
	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/trip"
	"bustrack/internal/logger"

	"github.com/go-playground/validator/v10"
)

// -------------------- ERROR HANDLING --------------------

func (h *Handler) handleTripError(ctx context.Context, w http.ResponseWriter, err error) {
	var conflict *trip.ConflictError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &conflict):
		writeJSONInfo(ctx, w, http.StatusConflict, map[string]any{
			"error":        "bus already has an active trip",
			"busId":        conflict.BusID,
			"activeTripId": conflict.ActiveTripID,
			"code":         http.StatusConflict,
		})
	case errors.Is(err, trip.ErrNoActiveTrip):
		writeJSONError(ctx, w, http.StatusNotFound, "no active trip")
	case errors.Is(err, trip.ErrDriverMismatch):
		writeJSONError(ctx, w, http.StatusForbidden, "trip belongs to another driver")
	case errors.Is(err, trip.ErrDriverBusy):
		writeJSONError(ctx, w, http.StatusConflict, "driver already has an active trip")
	case errors.Is(err, trip.ErrAlreadyPaused),
		errors.Is(err, trip.ErrNotPaused),
		errors.Is(err, trip.ErrTripEnded):
		writeJSONError(ctx, w, http.StatusConflict, err.Error())
	case errors.Is(err, trip.ErrInvalidBusID),
		errors.Is(err, trip.ErrInvalidDriverID),
		errors.Is(err, geo.ErrMissingIdentifier),
		errors.Is(err, geo.ErrInvalidCoordinates),
		errors.As(err, &invalid):
		writeJSONError(ctx, w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(ctx, h.logger, "internal_error", "Unhandled API error", err)
		writeJSONError(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

// -------------------- RESPONSE HELPERS --------------------

func writeJSONError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]any{
		"error":      message,
		"code":       status,
		"request_id": contextx.GetRequestID(ctx),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSONInfo(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
