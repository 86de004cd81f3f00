package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/user"
	"bustrack/internal/jwt"

	"github.com/gorilla/websocket"
)

const (
	authWindow  = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 30 * time.Second
	ctrlTimeout = 5 * time.Second
)

// LocationSink accepts validated driver updates for fan-out.
type LocationSink interface {
	AcceptLocation(ctx context.Context, driverID string, upd contracts.DriverLocationUpdate) error
}

// ConnGauge tracks how many connections are currently authenticated.
type ConnGauge interface {
	ConnOpened()
	ConnClosed()
}

type nopConnGauge struct{}

func (nopConnGauge) ConnOpened() {}
func (nopConnGauge) ConnClosed() {}

// Handler upgrades tracking connections, authenticates them with the
// first-frame JWT handshake, and routes realtime frames.
type Handler struct {
	logger   *slog.Logger
	hub      *Hub
	jwtMgr   *jwt.Manager
	sink     LocationSink
	gauge    ConnGauge
	upgrader websocket.Upgrader
}

func NewHandler(logger *slog.Logger, hub *Hub, jwtMgr *jwt.Manager, sink LocationSink, gauge ConnGauge) *Handler {
	if gauge == nil {
		gauge = nopConnGauge{}
	}
	return &Handler{
		logger: logger,
		hub:    hub,
		jwtMgr: jwtMgr,
		sink:   sink,
		gauge:  gauge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles one tracking connection end to end.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	// ---------------- AUTH PHASE ----------------
	conn.SetReadLimit(1 << 20) // 1 MiB
	_ = conn.SetReadDeadline(time.Now().Add(authWindow))

	_, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.logger.Warn("ws_auth_timeout_or_fail", "error", err)
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, h.jwtMgr,
		user.RoleDriver, user.RoleParent, user.RoleAdmin, user.RoleStaff)
	if err != nil {
		h.logger.Warn("ws_auth_failed", "error", err)
		h.rejectAuth(conn)
		return
	}
	role := res.Claims.Role
	userID := res.Claims.Subject

	// all writes after this point go through the client wrapper: the hub
	// broadcasts on other goroutines, and a gorilla connection allows only
	// one concurrent writer
	client := NewClient(userID, conn)
	defer h.hub.Drop(client)

	h.writeEvent(client, contracts.EventAuthSuccess, map[string]any{
		"userId": userID,
		"role":   role.String(),
	})
	h.logger.Info("ws_connected", "user_id", userID, "role", role.String())

	h.gauge.ConnOpened()
	defer h.gauge.ConnClosed()

	// ---------------- KEEP-ALIVE PHASE ----------------
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout)); err != nil {
					// close to unblock the reader; Serve returns and closes done
					_ = conn.Close()
					return
				}
			}
		}
	}()

	// ---------------- READ LOOP ----------------
	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws_unexpected_close", "user_id", userID, "error", err)
			} else {
				h.logger.Info("ws_connection_closed", "user_id", userID)
			}
			return
		}

		var frame contracts.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.writeError(client, "bad json")
			continue
		}

		h.route(r.Context(), client, role, frame)
	}
}

func (h *Handler) route(ctx context.Context, client *Client, role user.Role, frame contracts.Frame) {
	switch frame.Type {
	case contracts.EventJoinBus:
		var p contracts.JoinBus
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.BusID == "" {
			h.writeError(client, "invalid join-bus payload")
			return
		}
		h.hub.Join(BusRoom(p.BusID), client)

	case contracts.EventJoinTrip:
		var p contracts.JoinTrip
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.TripID == "" {
			h.writeError(client, "invalid join-trip payload")
			return
		}
		h.hub.Join(TripRoom(p.TripID), client)

	case contracts.EventJoinAdmin:
		if !role.IsFleetObserver() {
			h.writeError(client, "admin-fleet room is restricted")
			return
		}
		h.hub.Join(AdminFleetRoom, client)

	case contracts.EventDriverLocationUpdate:
		if !role.IsDriver() {
			h.writeError(client, "only drivers send location updates")
			return
		}
		var p contracts.DriverLocationUpdate
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			h.writeError(client, "invalid location payload")
			return
		}
		if err := h.sink.AcceptLocation(ctx, client.ID, p); err != nil {
			h.logger.Warn("location_rejected", "driver_id", client.ID, "error", err)
			h.writeError(client, "location rejected")
		}

	default:
		h.writeError(client, "unknown message type")
	}
}

func (h *Handler) writeEvent(c *Client, event string, data any) {
	frame, err := contracts.NewFrame(event, data)
	if err != nil {
		return
	}
	_ = c.WriteRaw(frame)
}

func (h *Handler) writeError(c *Client, msg string) {
	h.writeEvent(c, contracts.EventError, map[string]any{"error": msg})
}

// rejectAuth writes on the bare connection: before auth succeeds the
// connection is not in the hub, so there is no concurrent writer yet.
func (h *Handler) rejectAuth(conn *websocket.Conn) {
	frame, err := contracts.NewFrame(contracts.EventAuthError, map[string]any{"error": "authentication failed"})
	if err != nil {
		return
	}
	_ = conn.WriteJSON(json.RawMessage(frame))
}
