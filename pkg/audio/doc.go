// ABOUTME: Package documentation for audio types
// ABOUTME: Shared format definitions for playback and protocol packages
//
// Package audio defines the stream format negotiated over the Sendspin
// protocol and byte-rate arithmetic used by the playback engine.
package audio
