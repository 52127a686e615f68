// ABOUTME: Connection state machine for one controller session
// ABOUTME: Applies protocol messages and drives the clock sync and chunk buffer
package session

import (
	"encoding/base64"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-player-go/internal/chunkbuf"
	"github.com/Sendspin/sendspin-player-go/internal/state"
	"github.com/Sendspin/sendspin-player-go/internal/timesync"
	"github.com/Sendspin/sendspin-player-go/pkg/audio"
	"github.com/Sendspin/sendspin-player-go/pkg/protocol"
	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the session needs. Inbound
// pings are answered by the transport during reads; no protocol-level
// heartbeat exists at this layer.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hooks are the collaborator callbacks exposed outward. All hooks are
// invoked from the session's goroutines and must not block.
type Hooks struct {
	OnStreamStart  func(audio.Format)
	OnStreamEnd    func()
	OnVolumeChange func(int)
	OnMuteChange   func(bool)
}

// Options configures a session.
type Options struct {
	Conn   Conn
	Hello  protocol.ClientHello
	Buffer *chunkbuf.Buffer
	Clock  *timesync.Synchronizer
	Store  *state.Store
	Hooks  Hooks
	Now    timesync.NowMicros
}

// Session owns one controller connection and its protocol state. A new
// inbound session always supersedes the previous one; the orchestrator
// enforces that by closing the prior session first.
type Session struct {
	conn   Conn
	hello  protocol.ClientHello
	buffer *chunkbuf.Buffer
	clock  *timesync.Synchronizer
	store  *state.Store
	hooks  Hooks
	now    timesync.NowMicros

	writeMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool

	serverID   string
	serverName string

	// lastDropLog rate-limits buffer-overflow diagnostics.
	lastDropLog     time.Time
	dropsSuppressed int64
}

// New creates a session over an accepted connection.
func New(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = timesync.WallMicros
	}
	return &Session{
		conn:   opts.Conn,
		hello:  opts.Hello,
		buffer: opts.Buffer,
		clock:  opts.Clock,
		store:  opts.Store,
		hooks:  opts.Hooks,
		now:    opts.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run drives the session until the connection ends. It sends
// client/hello immediately, then processes inbound frames. Blocks;
// callers run it in its own goroutine.
func (s *Session) Run() {
	s.started.Store(true)
	defer close(s.done)

	s.setConn(state.Connecting)

	if err := s.sendJSON(protocol.TypeClientHello, s.hello); err != nil {
		s.fail("send client/hello: " + err.Error())
		return
	}
	s.setConn(state.Handshaking)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
				// Deliberate close: clean teardown, no error state.
				s.teardown()
			default:
				s.fail("transport: " + err.Error())
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.handleText(data)
		case websocket.BinaryMessage:
			s.handleBinary(data)
		}
	}
}

// Close ends the session deliberately: goodbye, cancel, disconnect.
// Safe to call more than once and while Run is blocked in a read.
// Blocks until Run has finished its teardown.
func (s *Session) Close(reason string) {
	s.stopOnce.Do(func() {
		close(s.stop)
		// Best effort; the connection may already be gone.
		s.sendJSON(protocol.TypeClientGoodbye, protocol.ClientGoodbye{Reason: reason})
		s.conn.Close()
	})
	if s.started.Load() {
		<-s.done
	}
}

// handleText routes a JSON control envelope. Malformed envelopes are
// dropped frames, never fatal.
func (s *Session) handleText(data []byte) {
	msg, ok := protocol.DecodeMessage(data)
	if !ok {
		log.Printf("Dropped malformed control frame (%d bytes)", len(data))
		return
	}

	switch msg.Type {
	case protocol.TypeServerHello:
		s.handleServerHello(msg)
	case protocol.TypeServerTime:
		s.handleServerTime(msg)
	case protocol.TypeServerCommand:
		s.handleServerCommand(msg)
	case protocol.TypeStreamStart:
		s.handleStreamStart(msg)
	case protocol.TypeStreamClear:
		s.handleStreamClear(msg)
	case protocol.TypeStreamEnd:
		s.handleStreamEnd(msg)
	case protocol.TypeServerState, protocol.TypeStreamRequestFormat:
		// Recognized, nothing for the player role to do.
	default:
		log.Printf("Ignoring unknown message type %q", msg.Type)
	}
}

func (s *Session) handleServerHello(msg protocol.Message) {
	var hello protocol.ServerHello
	if !protocol.DecodePayload(msg, &hello) {
		log.Printf("Dropped malformed server/hello")
		return
	}

	s.serverID = hello.ServerID
	s.serverName = hello.Name
	log.Printf("Handshake complete with %q (%s)", hello.Name, hello.ServerID)

	s.setConn(state.SyncingClock)
	go s.syncLoop()
}

func (s *Session) handleServerTime(msg protocol.Message) {
	var st protocol.ServerTime
	if !protocol.DecodePayload(msg, &st) {
		log.Printf("Dropped malformed server/time")
		return
	}

	t3 := s.now()
	s.clock.AddSample(st.ClientTransmitted, st.ServerReceived, st.ServerTransmitted, t3)

	// First successful sync completes the handshake; later replies only
	// refresh the offset.
	if s.clock.Synced() && s.store.Get().Connection == state.SyncingClock {
		s.setConn(state.Connected)
		s.sendStateReport()
	}
}

func (s *Session) handleServerCommand(msg protocol.Message) {
	var cmd protocol.ServerCommandMessage
	if !protocol.DecodePayload(msg, &cmd) || cmd.Player == nil {
		log.Printf("Dropped malformed server/command")
		return
	}

	switch cmd.Player.Command {
	case "volume":
		volume := cmd.Player.Volume
		if volume < 0 {
			volume = 0
		} else if volume > 100 {
			volume = 100
		}
		s.store.Update(func(snap *state.Snapshot) { snap.Volume = volume })
		if s.hooks.OnVolumeChange != nil {
			s.hooks.OnVolumeChange(volume)
		}
	case "mute":
		s.store.Update(func(snap *state.Snapshot) { snap.Muted = cmd.Player.Mute })
		if s.hooks.OnMuteChange != nil {
			s.hooks.OnMuteChange(cmd.Player.Mute)
		}
	default:
		log.Printf("Ignoring unknown player command %q", cmd.Player.Command)
		return
	}

	s.sendStateReport()
}

func (s *Session) handleStreamStart(msg protocol.Message) {
	// Streaming is only reachable from a synced session; a stream/start
	// arriving mid-handshake is a dropped frame like any other bad input.
	if conn := s.store.Get().Connection; conn != state.Connected && conn != state.Streaming {
		log.Printf("Ignoring stream/start in state %s", conn)
		return
	}

	var start protocol.StreamStart
	if !protocol.DecodePayload(msg, &start) || start.Player == nil {
		log.Printf("Dropped malformed stream/start")
		return
	}

	format := audio.Format{
		Codec:      start.Player.Codec,
		SampleRate: start.Player.SampleRate,
		Channels:   start.Player.Channels,
		BitDepth:   start.Player.BitDepth,
	}
	if start.Player.CodecHeader != nil {
		header, err := base64.StdEncoding.DecodeString(*start.Player.CodecHeader)
		if err != nil {
			log.Printf("Dropped stream/start with bad codec header: %v", err)
			return
		}
		format.CodecHeader = header
	}

	log.Printf("Stream starting: %s %dHz %dch %dbit",
		format.Codec, format.SampleRate, format.Channels, format.BitDepth)

	// Stale audio from any previous stream must not leak into this one.
	s.buffer.Clear()
	s.setConn(state.Streaming)

	if s.hooks.OnStreamStart != nil {
		s.hooks.OnStreamStart(format)
	}
}

func (s *Session) handleStreamClear(msg protocol.Message) {
	var clear protocol.StreamClear
	if !protocol.DecodePayload(msg, &clear) {
		log.Printf("Dropped malformed stream/clear")
		return
	}
	if !protocol.HasRole(clear.Roles, "player") {
		return
	}

	s.buffer.Clear()
	log.Printf("Buffer cleared on stream/clear")
}

func (s *Session) handleStreamEnd(msg protocol.Message) {
	var end protocol.StreamEnd
	if !protocol.DecodePayload(msg, &end) {
		log.Printf("Dropped malformed stream/end")
		return
	}
	if !protocol.HasRole(end.Roles, "player") {
		return
	}
	if s.store.Get().Connection != state.Streaming {
		log.Printf("Ignoring stream/end with no active stream")
		return
	}

	s.buffer.Clear()
	s.setConn(state.Connected)

	if s.hooks.OnStreamEnd != nil {
		s.hooks.OnStreamEnd()
	}
	log.Printf("Stream ended")
}

// handleBinary decodes an audio frame and writes it to the buffer. A
// full buffer drops the frame with rate-limited diagnostics.
func (s *Session) handleBinary(data []byte) {
	chunk, ok := protocol.DecodeAudioChunk(data)
	if !ok {
		// Artwork/visualizer frames land here too; they belong to roles
		// this player does not declare.
		return
	}

	if !s.buffer.Write(chunk) {
		s.dropsSuppressed++
		if time.Since(s.lastDropLog) >= time.Second {
			log.Printf("Audio buffer full: dropped %d frames", s.dropsSuppressed)
			s.lastDropLog = time.Now()
			s.dropsSuppressed = 0
		}
	}
}

// syncLoop sends a burst of time requests after handshake, then one
// every steady interval until the session ends.
func (s *Session) syncLoop() {
	for i := 0; i < timesync.BurstCount; i++ {
		s.sendTimeRequest()
		select {
		case <-s.stop:
			return
		case <-time.After(timesync.BurstInterval):
		}
	}

	ticker := time.NewTicker(timesync.SteadyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sendTimeRequest()
		}
	}
}

func (s *Session) sendTimeRequest() {
	req := protocol.ClientTime{ClientTransmitted: s.now()}
	if err := s.sendJSON(protocol.TypeClientTime, req); err != nil {
		log.Printf("Time request failed: %v", err)
	}
}

// sendStateReport emits a client/state message reflecting the current
// player state.
func (s *Session) sendStateReport() {
	snap := s.store.Get()

	playerState := "synchronized"
	if snap.Connection == state.Error {
		playerState = "error"
	}

	report := protocol.ClientStateMessage{
		Player: &protocol.PlayerStateReport{
			State:  playerState,
			Volume: snap.Volume,
			Muted:  snap.Muted,
		},
	}
	if err := s.sendJSON(protocol.TypeClientState, report); err != nil {
		log.Printf("State report failed: %v", err)
	}
}

// sendJSON serializes writes; the sync scheduler and message handlers
// share one connection.
func (s *Session) sendJSON(msgType string, payload interface{}) error {
	data, err := protocol.EncodeMessage(msgType, payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// fail records an unrecoverable transport error, releases session
// resources, and lands in DISCONNECTED so a new inbound session can be
// admitted.
func (s *Session) fail(message string) {
	log.Printf("Session error: %s", message)

	wasStreaming := s.store.Get().Connection == state.Streaming

	s.store.Update(func(snap *state.Snapshot) {
		snap.Connection = state.Error
		snap.ErrorMessage = message
	})

	s.releaseResources(wasStreaming)
	// The message survives into DISCONNECTED for the host layer to
	// render; the next session's Connecting transition clears it.
	s.store.Update(func(snap *state.Snapshot) { snap.Connection = state.Disconnected })
	s.conn.Close()
}

// teardown performs a clean shutdown after a deliberate Close.
func (s *Session) teardown() {
	wasStreaming := s.store.Get().Connection == state.Streaming
	s.releaseResources(wasStreaming)
	s.setConn(state.Disconnected)
}

func (s *Session) releaseResources(wasStreaming bool) {
	s.buffer.Clear()
	s.clock.Reset()
	if wasStreaming && s.hooks.OnStreamEnd != nil {
		s.hooks.OnStreamEnd()
	}
}

func (s *Session) setConn(c state.ConnState) {
	s.store.Update(func(snap *state.Snapshot) {
		snap.Connection = c
		if c == state.Connecting {
			snap.ErrorMessage = ""
		}
	})
}
