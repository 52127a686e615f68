// ABOUTME: Tests for the high-level Player API
// ABOUTME: Drives a real WebSocket controller connection end to end
package sendspin

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-player-go/internal/config"
	"github.com/Sendspin/sendspin-player-go/pkg/audio/output"
	"github.com/Sendspin/sendspin-player-go/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func newTestPlayer(t *testing.T) (*Player, int) {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "Test Player"
	cfg.Port = freePort(t)
	cfg.StateDir = t.TempDir()
	cfg.PrebufferTimeout = 50 * time.Millisecond

	p, err := NewPlayer(cfg, output.NewNull(), Hooks{})
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("start player: %v", err)
	}
	t.Cleanup(p.Close)
	return p, cfg.Port
}

func dialPlayer(t *testing.T, port int) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://127.0.0.1:%d/sendspin", port)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads text frames until one of the given type arrives.
func readMessage(t *testing.T, conn *websocket.Conn, msgType string) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg, ok := protocol.DecodeMessage(data); ok && msg.Type == msgType {
			return msg
		}
	}
}

func TestHandshakeOverWebSocket(t *testing.T) {
	_, port := newTestPlayer(t)
	conn := dialPlayer(t, port)

	msg := readMessage(t, conn, protocol.TypeClientHello)

	var hello protocol.ClientHello
	if !protocol.DecodePayload(msg, &hello) {
		t.Fatal("client/hello payload did not decode")
	}
	if _, err := uuid.Parse(hello.ClientID); err != nil {
		t.Errorf("client_id is not a UUID: %q", hello.ClientID)
	}
	if hello.Name != "Test Player" {
		t.Errorf("unexpected name %q", hello.Name)
	}
	if len(hello.SupportedRoles) != 1 || hello.SupportedRoles[0] != PlayerRole {
		t.Errorf("unexpected roles %v", hello.SupportedRoles)
	}
	if hello.PlayerSupport == nil {
		t.Fatal("player_support missing")
	}
	if hello.PlayerSupport.BufferCapacity != 4*1024*1024 {
		t.Errorf("unexpected buffer capacity %d", hello.PlayerSupport.BufferCapacity)
	}
	for _, f := range hello.PlayerSupport.SupportedFormats {
		if f.Codec != "pcm" || f.BitDepth != 16 || f.Channels != 2 {
			t.Errorf("unexpected format %+v", f)
		}
	}
}

func TestIdentityPersistsAcrossSessions(t *testing.T) {
	_, port := newTestPlayer(t)

	conn := dialPlayer(t, port)
	var first protocol.ClientHello
	protocol.DecodePayload(readMessage(t, conn, protocol.TypeClientHello), &first)
	conn.Close()

	// The next session reuses the same persistent identity.
	conn2 := dialPlayer(t, port)
	var second protocol.ClientHello
	protocol.DecodePayload(readMessage(t, conn2, protocol.TypeClientHello), &second)

	if first.ClientID == "" || first.ClientID != second.ClientID {
		t.Errorf("client IDs differ: %q vs %q", first.ClientID, second.ClientID)
	}
}

func TestSecondControllerSupersedes(t *testing.T) {
	_, port := newTestPlayer(t)

	first := dialPlayer(t, port)
	readMessage(t, first, protocol.TypeClientHello)

	second := dialPlayer(t, port)
	readMessage(t, second, protocol.TypeClientHello)

	// The first controller gets a goodbye and then the socket closes.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	sawGoodbye := false
	for {
		_, data, err := first.ReadMessage()
		if err != nil {
			break
		}
		if msg, ok := protocol.DecodeMessage(data); ok && msg.Type == protocol.TypeClientGoodbye {
			var goodbye protocol.ClientGoodbye
			if protocol.DecodePayload(msg, &goodbye) && goodbye.Reason == "another_server" {
				sawGoodbye = true
			}
		}
	}
	if !sawGoodbye {
		t.Error("first controller never received client/goodbye")
	}

	// The second session is unaffected: it can complete a handshake.
	hello := protocol.ServerHello{ServerID: "srv", Name: "Controller", Version: 1}
	data, err := protocol.EncodeMessage(protocol.TypeServerHello, hello)
	if err != nil {
		t.Fatalf("encode server/hello: %v", err)
	}
	if err := second.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write to second controller: %v", err)
	}
	readMessage(t, second, protocol.TypeClientTime)
}

func TestLocalVolumeControl(t *testing.T) {
	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.StateDir = t.TempDir()

	p, err := NewPlayer(cfg, output.NewNull(), Hooks{})
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	defer p.Close()

	p.SetVolume(150)
	if got := p.State().Volume; got != 100 {
		t.Errorf("expected volume clamped to 100, got %d", got)
	}

	p.SetVolume(-10)
	if got := p.State().Volume; got != 0 {
		t.Errorf("expected volume clamped to 0, got %d", got)
	}

	p.SetMuted(true)
	if !p.State().Muted {
		t.Error("expected muted")
	}
}

func TestSubscribeSeesUpdates(t *testing.T) {
	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.StateDir = t.TempDir()

	p, err := NewPlayer(cfg, output.NewNull(), Hooks{})
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	defer p.Close()

	updates := p.Subscribe()
	p.SetVolume(25)

	select {
	case snap := <-updates:
		if snap.Volume != 25 {
			t.Errorf("expected volume 25 in update, got %d", snap.Volume)
		}
	case <-time.After(time.Second):
		t.Fatal("no state update delivered")
	}
}
