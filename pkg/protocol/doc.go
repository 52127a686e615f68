// ABOUTME: Package documentation for the protocol codec
// ABOUTME: Wire-level message schema for the Sendspin protocol
//
// Package protocol implements the Sendspin wire format: JSON control
// envelopes of the form {"type": ..., "payload": {...}} carried as text
// frames, and binary audio frames carrying a type tag, a big-endian
// 64-bit microsecond timestamp, and a raw PCM payload.
//
// Decoding is tolerant by design. Malformed envelopes, unknown types
// and undersized binary frames decode to a "no message" result so the
// session can drop them without tearing down the connection.
package protocol
