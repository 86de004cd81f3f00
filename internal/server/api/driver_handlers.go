package api

import (
	"context"
	"net/http"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/trip"
	"bustrack/internal/jwt"
	"bustrack/internal/logger"
)

type tripActionFunc func(ctx context.Context, driverID, tripID string) (*trip.Session, error)

type selectBusRequest struct {
	BusID string `json:"busId"`
}

type startTripRequest struct {
	BusID   string `json:"busId"`
	RouteID string `json:"routeId"`
	Force   bool   `json:"force"`
}

type tripActionRequest struct {
	TripID string `json:"tripId"`
}

func (h *Handler) listBuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buses, err := h.buses.ListActive(ctx)
	if err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]any{"buses": buses})
}

func (h *Handler) activeTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)

	sess, err := h.service.ActiveForDriver(ctx, claims.Subject)
	if err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, toTripView(sess))
}

func (h *Handler) selectBus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectBusRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.service.SelectBus(ctx, req.BusID); err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]any{"busId": req.BusID, "available": true})
}

func (h *Handler) startTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)

	var req startTripRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, err := h.service.StartTrip(ctx, claims.Subject, req.BusID, req.RouteID, req.Force)
	if err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	logger.Info(ctx, h.logger, "trip_started", "Trip started via REST",
		"trip_id", sess.ID, "bus_id", sess.BusID, "force", req.Force)
	writeJSONInfo(ctx, w, http.StatusCreated, toTripView(sess))
}

func (h *Handler) stopTrip(w http.ResponseWriter, r *http.Request) {
	h.tripAction(w, r, h.service.PauseTrip)
}

func (h *Handler) resumeTrip(w http.ResponseWriter, r *http.Request) {
	h.tripAction(w, r, h.service.ResumeTrip)
}

func (h *Handler) endTrip(w http.ResponseWriter, r *http.Request) {
	h.tripAction(w, r, h.service.EndTrip)
}

func (h *Handler) tripAction(w http.ResponseWriter, r *http.Request, action tripActionFunc) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)

	var req tripActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TripID == "" {
		writeJSONError(ctx, w, http.StatusBadRequest, "tripId is required")
		return
	}

	sess, err := action(ctx, claims.Subject, req.TripID)
	if err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, toTripView(sess))
}

func (h *Handler) progressStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)

	var p contracts.StopProgressed
	if err := decodeBody(r, &p); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.TripID == "" || p.StopID == "" {
		writeJSONError(ctx, w, http.StatusBadRequest, "tripId and stopId are required")
		return
	}

	if err := h.service.ProgressStop(ctx, claims.Subject, p); err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *Handler) markAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)

	var p contracts.AttendanceMarked
	if err := decodeBody(r, &p); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.TripID == "" || p.StudentID == "" {
		writeJSONError(ctx, w, http.StatusBadRequest, "tripId and studentId are required")
		return
	}
	switch p.Status {
	case "PICKED_UP", "DROPPED", "ABSENT":
	default:
		writeJSONError(ctx, w, http.StatusBadRequest, "status must be PICKED_UP, DROPPED or ABSENT")
		return
	}

	if err := h.service.MarkAttendance(ctx, claims.Subject, p); err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]string{"status": "accepted"})
}

// trackingUpdate is the REST fallback for driver samples when the realtime
// channel is unavailable. Same validation and fan-out as the socket path.
func (h *Handler) trackingUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)

	var upd contracts.DriverLocationUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeJSONError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.service.AcceptLocation(ctx, claims.Subject, upd); err != nil {
		h.handleTripError(ctx, w, err)
		return
	}
	writeJSONInfo(ctx, w, http.StatusOK, map[string]string{"status": "accepted"})
}
