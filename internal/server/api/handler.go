package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bustrack/internal/contextx"
	"bustrack/internal/domain/fleet"
	"bustrack/internal/domain/trip"
	"bustrack/internal/domain/user"
	"bustrack/internal/jwt"
	"bustrack/internal/server/tracking"
	"bustrack/internal/server/ws"
)

// BusCatalog lists the vehicles a driver may pick from.
type BusCatalog interface {
	ListActive(ctx context.Context) ([]fleet.Bus, error)
}

// Handler exposes the tracking REST surface and the websocket entrypoint.
type Handler struct {
	logger  *slog.Logger
	service *tracking.Service
	buses   BusCatalog
	wsh     *ws.Handler
	jwtMgr  *jwt.Manager
}

func NewHandler(logger *slog.Logger, service *tracking.Service, buses BusCatalog, wsh *ws.Handler, jwtMgr *jwt.Manager) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		buses:   buses,
		wsh:     wsh,
		jwtMgr:  jwtMgr,
	}
}

// Router wires every route with its role guard.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	driverOnly := jwt.AuthMiddlewareFunc(h.jwtMgr, user.RoleDriver)
	fleetOnly := jwt.AuthMiddlewareFunc(h.jwtMgr, user.RoleAdmin, user.RoleStaff)

	mux.HandleFunc("GET /ws", h.wsh.Serve)
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /driver/buses", driverOnly(h.listBuses))
	mux.HandleFunc("GET /driver/active-trip", driverOnly(h.activeTrip))
	mux.HandleFunc("POST /driver/select-bus", driverOnly(h.selectBus))
	mux.HandleFunc("POST /driver/start-trip", driverOnly(h.startTrip))
	mux.HandleFunc("POST /driver/stop-trip", driverOnly(h.stopTrip))
	mux.HandleFunc("POST /driver/resume-trip", driverOnly(h.resumeTrip))
	mux.HandleFunc("POST /driver/end-trip", driverOnly(h.endTrip))
	mux.HandleFunc("POST /driver/progress-stop", driverOnly(h.progressStop))
	mux.HandleFunc("POST /driver/mark-attendance", driverOnly(h.markAttendance))
	mux.HandleFunc("POST /tracking/update", driverOnly(h.trackingUpdate))

	mux.HandleFunc("GET /admin/live-trips", fleetOnly(h.liveTrips))
	mux.HandleFunc("GET /admin/trip-location/{id}", fleetOnly(h.tripLocation))
	mux.HandleFunc("POST /admin/reset-bus", fleetOnly(h.resetBus))

	return h.withRequestID(mux)
}

func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contextx.WithNewRequestID(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSONInfo(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// -------------------- VIEWS --------------------

type tripView struct {
	ID        string     `json:"id"`
	BusID     string     `json:"busId"`
	DriverID  string     `json:"driverId"`
	RouteID   string     `json:"routeId,omitempty"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func toTripView(s *trip.Session) tripView {
	return tripView{
		ID:        s.ID,
		BusID:     s.BusID,
		DriverID:  s.DriverID,
		RouteID:   s.RouteID,
		Status:    s.Status.String(),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}
