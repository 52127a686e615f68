// ABOUTME: Entry point for the Sendspin player
// ABOUTME: Parses CLI flags, loads configuration, and runs the player
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sendspin/sendspin-player-go/internal/config"
	"github.com/Sendspin/sendspin-player-go/pkg/audio"
	"github.com/Sendspin/sendspin-player-go/pkg/audio/output"
	"github.com/Sendspin/sendspin-player-go/pkg/sendspin"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	name       = flag.String("name", "", "Player friendly name (default: hostname-sendspin-player)")
	port       = flag.Int("port", 0, "WebSocket listener and mDNS port (default: 8927)")
	logFile    = flag.String("log-file", "", "Log file path (default: stdout only)")
	headless   = flag.Bool("headless", false, "Use a silent output device (no audio hardware)")
)

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer func() { _ = f.Close() }()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *port != 0 {
		cfg.Port = *port
	}

	var device output.Device
	if *headless {
		device = output.NewNull()
	}

	player, err := sendspin.NewPlayer(cfg, device, sendspin.Hooks{
		OnStreamStart: func(format audio.Format) {
			log.Printf("Now playing: %s %dHz %dch %dbit",
				format.Codec, format.SampleRate, format.Channels, format.BitDepth)
		},
		OnStreamEnd: func() {
			log.Printf("Playback ended")
		},
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	if err := player.Start(); err != nil {
		log.Fatalf("Failed to start player: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Printf("Shutdown signal received")

	player.Close()
	log.Printf("Player stopped")
}
