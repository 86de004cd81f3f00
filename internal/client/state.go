package client

// State is the connection state of a Session.
//
//	Connecting   -> Live          first successful handshake
//	Live         -> Reconnecting  transport-level drop (not an explicit Close)
//	Reconnecting -> Live          successful re-handshake
//	Reconnecting -> Disconnected  bounded attempts exhausted
//	any          -> Disconnected  explicit Close
//	any          -> Errored       unrecoverable configuration (malformed URL)
type State string

const (
	StateConnecting   State = "CONNECTING"
	StateLive         State = "LIVE"
	StateReconnecting State = "RECONNECTING"
	StateDisconnected State = "DISCONNECTED"
	StateErrored      State = "ERRORED"
)

func (s State) String() string { return string(s) }
