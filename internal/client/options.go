package client

import (
	"log/slog"
	"time"

	"bustrack/internal/domain/user"
)

const (
	defaultQueueCapacity    = 30
	defaultInitialDelay     = 1 * time.Second
	defaultMaxDelay         = 5 * time.Second
	defaultHandshakeTimeout = 20 * time.Second
)

// Options configures a Session. Zero values fall back to the defaults the
// deployed mobile clients run with.
type Options struct {
	// URL of the realtime endpoint (ws:// or wss://).
	URL string
	// Token is the raw JWT presented in the auth handshake frame.
	Token string
	// Role decides default room membership: fleet observers auto-join the
	// admin-fleet room on every (re)connect.
	Role user.Role

	// Reconnection policy. MaxAttempts 0 means retry forever; transient
	// server unavailability (cold starts) is an expected operating
	// condition, not an error.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	MaxAttempts           int

	HandshakeTimeout time.Duration
	QueueCapacity    int

	Logger *slog.Logger

	// Dialer overrides the websocket dialer; tests inject fakes here.
	Dialer Dialer
}

func (o *Options) withDefaults() {
	if o.ReconnectInitialDelay <= 0 {
		o.ReconnectInitialDelay = defaultInitialDelay
	}
	if o.ReconnectMaxDelay <= 0 {
		o.ReconnectMaxDelay = defaultMaxDelay
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = defaultQueueCapacity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Dialer == nil {
		o.Dialer = gorillaDialer(o.HandshakeTimeout)
	}
}
