// ABOUTME: Sendspin protocol message type definitions
// ABOUTME: Structs for all JSON control envelopes exchanged with a controller
package protocol

import "encoding/json"

// Message type strings used in the JSON envelope.
const (
	TypeClientHello         = "client/hello"
	TypeServerHello         = "server/hello"
	TypeClientTime          = "client/time"
	TypeServerTime          = "server/time"
	TypeClientState         = "client/state"
	TypeServerState         = "server/state"
	TypeServerCommand       = "server/command"
	TypeClientGoodbye       = "client/goodbye"
	TypeStreamStart         = "stream/start"
	TypeStreamClear         = "stream/clear"
	TypeStreamEnd           = "stream/end"
	TypeStreamRequestFormat = "stream/request-format"
)

// Message is the top-level wrapper for all protocol messages.
// Payload is kept raw so each handler decodes only its own type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClientHello is sent by the player to initiate the handshake
type ClientHello struct {
	ClientID       string         `json:"client_id"`
	Name           string         `json:"name"`
	Version        int            `json:"version"`
	SupportedRoles []string       `json:"supported_roles"`
	DeviceInfo     *DeviceInfo    `json:"device_info,omitempty"`
	PlayerSupport  *PlayerSupport `json:"player_support,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// PlayerSupport describes player role capabilities
type PlayerSupport struct {
	SupportedFormats  []AudioFormat `json:"supported_formats"`
	BufferCapacity    int           `json:"buffer_capacity"`
	SupportedCommands []string      `json:"supported_commands"`
}

// AudioFormat describes one supported (codec, channels, rate, depth) tuple
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// ServerHello is the controller's response to client/hello
type ServerHello struct {
	ServerID    string   `json:"server_id"`
	Name        string   `json:"name"`
	Version     int      `json:"version"`
	ActiveRoles []string `json:"active_roles,omitempty"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Local µs at send
}

// ServerTime is the controller's response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Controller µs at receive
	ServerTransmitted int64 `json:"server_transmitted"` // Controller µs at send
}

// ClientStateMessage is sent as client/state with role-specific objects
type ClientStateMessage struct {
	Player *PlayerStateReport `json:"player,omitempty"`
}

// PlayerStateReport reports the player's current state
type PlayerStateReport struct {
	State  string `json:"state"` // "synchronized" or "error"
	Volume int    `json:"volume"`
	Muted  bool   `json:"muted"`
}

// ServerCommandMessage is sent as server/command with role-specific objects
type ServerCommandMessage struct {
	Player *PlayerCommand `json:"player,omitempty"`
}

// PlayerCommand is a control command for the player
type PlayerCommand struct {
	Command string `json:"command"` // "volume" or "mute"
	Volume  int    `json:"volume,omitempty"`
	Mute    bool   `json:"mute,omitempty"`
}

// StreamStart notifies the player of the stream format
type StreamStart struct {
	Player *StreamStartPlayer `json:"player,omitempty"`
}

// StreamStartPlayer contains the audio format details
type StreamStartPlayer struct {
	Codec       string  `json:"codec"`
	SampleRate  int     `json:"sample_rate"`
	Channels    int     `json:"channels"`
	BitDepth    int     `json:"bit_depth"`
	CodecHeader *string `json:"codec_header"` // Base64-encoded, null for PCM
}

// StreamClear instructs clients to clear buffers (seek)
type StreamClear struct {
	Roles []string `json:"roles,omitempty"`
}

// StreamEnd ends streams for the listed roles
type StreamEnd struct {
	Roles []string `json:"roles,omitempty"`
}

// ClientGoodbye is sent before a graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "restart", "user_request"
}

// HasRole reports whether roles names the player role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
