// ABOUTME: High-level Sendspin player library API
// ABOUTME: Provides the Player type most applications embed directly
// Package sendspin provides the high-level API for a Sendspin player.
//
// A Player advertises itself over mDNS, accepts one controller session
// at a time over WebSocket, keeps its clock synchronized with the
// controller, and plays the timestamped PCM stream the controller sends.
//
// Example:
//
//	cfg := config.Default()
//	player, err := sendspin.NewPlayer(cfg, nil, sendspin.Hooks{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := player.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer player.Close()
//
// For lower-level control, see the protocol and audio packages.
package sendspin
