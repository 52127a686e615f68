// ABOUTME: High-level Player API for the Sendspin client
// ABOUTME: Ties identity, discovery, transport, session, and playback together
package sendspin

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-player-go/internal/chunkbuf"
	"github.com/Sendspin/sendspin-player-go/internal/config"
	"github.com/Sendspin/sendspin-player-go/internal/discovery"
	"github.com/Sendspin/sendspin-player-go/internal/identity"
	"github.com/Sendspin/sendspin-player-go/internal/playback"
	"github.com/Sendspin/sendspin-player-go/internal/session"
	"github.com/Sendspin/sendspin-player-go/internal/state"
	"github.com/Sendspin/sendspin-player-go/internal/timesync"
	"github.com/Sendspin/sendspin-player-go/internal/version"
	"github.com/Sendspin/sendspin-player-go/pkg/audio"
	"github.com/Sendspin/sendspin-player-go/pkg/audio/output"
	"github.com/Sendspin/sendspin-player-go/pkg/protocol"
	"github.com/gorilla/websocket"
)

// ProtocolVersion is the version of the Sendspin protocol we implement.
const ProtocolVersion = 1

// PlayerRole is the one role this client declares.
const PlayerRole = "player@v1"

// Hooks are optional callbacks for host applications. All hooks fire
// from internal goroutines and must not block.
type Hooks struct {
	// OnStreamStart fires when a controller starts a stream.
	OnStreamStart func(audio.Format)

	// OnStreamEnd fires when the active stream ends.
	OnStreamEnd func()
}

// Player is a Sendspin client: it advertises itself on the local
// network, accepts one controller session at a time, and plays the
// synchronized audio the controller streams to it.
type Player struct {
	cfg      config.Config
	clientID string
	device   output.Device
	hooks    Hooks

	buffer *chunkbuf.Buffer
	clock  *timesync.Synchronizer
	store  *state.Store
	engine *playback.Engine

	advertiser *discovery.Advertiser
	upgrader   websocket.Upgrader
	httpServer *http.Server

	// One controller at a time. A new inbound connection supersedes
	// the current one.
	sessionMu sync.Mutex
	session   *session.Session

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPlayer creates a player from the given configuration. A nil
// device selects the default speaker output.
func NewPlayer(cfg config.Config, device output.Device, hooks Hooks) (*Player, error) {
	clientID, err := identity.Load(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("load client identity: %w", err)
	}

	if device == nil {
		device = output.NewOto()
	}

	buffer := chunkbuf.New(cfg.BufferCapacity)
	clock := timesync.New()
	store := state.NewStore()

	engine := playback.New(device, buffer, clock, store)
	engine.SetPrebufferTimeout(cfg.PrebufferTimeout)

	p := &Player{
		cfg:      cfg,
		clientID: clientID,
		device:   device,
		hooks:    hooks,
		buffer:   buffer,
		clock:    clock,
		store:    store,
		engine:   engine,
		upgrader: websocket.Upgrader{
			// Controllers live on the local network; origins vary.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	device.SetVolume(volumeScale(store.Get().Volume))
	return p, nil
}

// Start binds the WebSocket listener and begins mDNS advertisement.
// It returns once the player is reachable; errors after that surface
// through the state store.
func (p *Player) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", p.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", p.cfg.Port, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sendspin", p.handleWebSocket)
	p.httpServer = &http.Server{Handler: mux}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.httpServer.Serve(listener); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	p.advertiser = discovery.NewAdvertiser(discovery.Config{
		InstanceName: p.cfg.Name,
		Port:         p.cfg.Port,
	})
	if err := p.advertiser.Start(); err != nil {
		// The player still works for controllers configured manually.
		log.Printf("mDNS advertisement failed: %v", err)
	}

	log.Printf("Player %q (ID: %s) listening on port %d", p.cfg.Name, p.clientID, p.cfg.Port)
	return nil
}

// Close shuts the player down: the active session gets a goodbye, the
// listener and advertisement stop, and the output device is released.
func (p *Player) Close() {
	p.stopOnce.Do(func() {
		p.sessionMu.Lock()
		active := p.session
		p.sessionMu.Unlock()
		if active != nil {
			active.Close("shutdown")
		}

		if p.advertiser != nil {
			p.advertiser.Stop()
		}

		if p.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.httpServer.Shutdown(ctx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
		}

		p.wg.Wait()
		p.engine.Close()
		log.Printf("Player stopped cleanly")
	})
}

// State returns the current player snapshot.
func (p *Player) State() state.Snapshot {
	return p.store.Get()
}

// Subscribe returns a channel of state snapshots. Slow consumers miss
// intermediate snapshots rather than blocking the player.
func (p *Player) Subscribe() <-chan state.Snapshot {
	return p.store.Subscribe()
}

// SetVolume applies a local volume change (0-100).
func (p *Player) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	p.store.Update(func(s *state.Snapshot) { s.Volume = volume })
	p.device.SetVolume(volumeScale(volume))
}

// SetMuted applies a local mute change.
func (p *Player) SetMuted(muted bool) {
	p.store.Update(func(s *state.Snapshot) { s.Muted = muted })
	p.device.SetMuted(muted)
}

// handleWebSocket upgrades an inbound controller connection and runs
// its session. The newest controller wins: any existing session is
// closed before the new one is admitted.
func (p *Player) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	log.Printf("Controller connected from %s", r.RemoteAddr)

	sess := session.New(session.Options{
		Conn:   conn,
		Hello:  p.clientHello(),
		Buffer: p.buffer,
		Clock:  p.clock,
		Store:  p.store,
		Hooks:  p.sessionHooks(),
	})

	p.sessionMu.Lock()
	prior := p.session
	p.session = sess
	p.sessionMu.Unlock()

	if prior != nil {
		prior.Close("another_server")
	}

	sess.Run()

	p.sessionMu.Lock()
	if p.session == sess {
		p.session = nil
	}
	p.sessionMu.Unlock()
	log.Printf("Controller session from %s ended", r.RemoteAddr)
}

// sessionHooks bridges session events to the playback engine and the
// host application's callbacks.
func (p *Player) sessionHooks() session.Hooks {
	return session.Hooks{
		OnStreamStart: func(format audio.Format) {
			if err := p.engine.Start(format); err != nil {
				log.Printf("Playback start failed: %v", err)
				return
			}
			if p.hooks.OnStreamStart != nil {
				p.hooks.OnStreamStart(format)
			}
		},
		OnStreamEnd: func() {
			p.engine.Stop()
			if p.hooks.OnStreamEnd != nil {
				p.hooks.OnStreamEnd()
			}
		},
		OnVolumeChange: func(volume int) {
			p.device.SetVolume(volumeScale(volume))
		},
		OnMuteChange: func(muted bool) {
			p.device.SetMuted(muted)
		},
	}
}

// clientHello builds the handshake message advertising this player's
// identity and capabilities.
func (p *Player) clientHello() protocol.ClientHello {
	return protocol.ClientHello{
		ClientID:       p.clientID,
		Name:           p.cfg.Name,
		Version:        ProtocolVersion,
		SupportedRoles: []string{PlayerRole},
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		PlayerSupport: &protocol.PlayerSupport{
			SupportedFormats: []protocol.AudioFormat{
				{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16},
				{Codec: "pcm", Channels: 2, SampleRate: 44100, BitDepth: 16},
			},
			BufferCapacity:    p.buffer.Capacity(),
			SupportedCommands: []string{"volume", "mute"},
		},
	}
}

// volumeScale maps the protocol's 0-100 range onto the device's 0-1.
func volumeScale(volume int) float64 {
	return float64(volume) / 100.0
}
