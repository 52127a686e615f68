// ABOUTME: Tests for JSON envelope and binary frame codecs
// ABOUTME: Covers malformed input, tag filtering, and round trips
package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	msg, ok := DecodeMessage([]byte(`{"type":"server/time","payload":{"client_transmitted":1,"server_received":2,"server_transmitted":3}}`))
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if msg.Type != TypeServerTime {
		t.Errorf("expected type server/time, got %s", msg.Type)
	}

	var st ServerTime
	if !DecodePayload(msg, &st) {
		t.Fatal("expected payload decode to succeed")
	}
	if st.ClientTransmitted != 1 || st.ServerReceived != 2 || st.ServerTransmitted != 3 {
		t.Errorf("unexpected payload: %+v", st)
	}
}

func TestDecodeMessageMalformed(t *testing.T) {
	cases := []string{
		``,
		`not json`,
		`{"payload":{}}`,
		`[1,2,3]`,
	}
	for _, c := range cases {
		if _, ok := DecodeMessage([]byte(c)); ok {
			t.Errorf("expected decode failure for %q", c)
		}
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	msg, ok := DecodeMessage([]byte(`{"type":"server/hello"}`))
	if !ok {
		t.Fatal("envelope without payload should still parse")
	}
	var hello ServerHello
	if DecodePayload(msg, &hello) {
		t.Error("expected payload decode to fail for missing payload")
	}
}

func TestEncodeMessage(t *testing.T) {
	data, err := EncodeMessage(TypeClientTime, ClientTime{ClientTransmitted: 12345})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	msg, ok := DecodeMessage(data)
	if !ok || msg.Type != TypeClientTime {
		t.Fatalf("round trip failed: %s", data)
	}
	var ct ClientTime
	if !DecodePayload(msg, &ct) || ct.ClientTransmitted != 12345 {
		t.Errorf("unexpected payload: %+v", ct)
	}
}

func TestClientHelloShape(t *testing.T) {
	hello := ClientHello{
		ClientID:       "abc",
		Name:           "Living Room",
		Version:        1,
		SupportedRoles: []string{"player@v1"},
		DeviceInfo: &DeviceInfo{
			ProductName:     "Sendspin Player",
			Manufacturer:    "Sendspin",
			SoftwareVersion: "0.3.0",
		},
		PlayerSupport: &PlayerSupport{
			SupportedFormats: []AudioFormat{
				{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16},
				{Codec: "pcm", Channels: 2, SampleRate: 44100, BitDepth: 16},
			},
			BufferCapacity:    4 * 1024 * 1024,
			SupportedCommands: []string{"volume", "mute"},
		},
	}

	data, err := EncodeMessage(TypeClientHello, hello)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(envelope["payload"], &payload); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}

	for _, key := range []string{"client_id", "name", "version", "supported_roles", "device_info", "player_support"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("client/hello payload missing %q", key)
		}
	}
}

func TestDecodeAudioChunk(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	frame := EncodeAudioChunk(987654321, pcm)

	chunk, ok := DecodeAudioChunk(frame)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if chunk.Timestamp != 987654321 {
		t.Errorf("expected timestamp 987654321, got %d", chunk.Timestamp)
	}
	if !bytes.Equal(chunk.PCM, pcm) {
		t.Errorf("payload mismatch: %v", chunk.PCM)
	}
}

func TestDecodeAudioChunkTooShort(t *testing.T) {
	for n := 0; n < 9; n++ {
		if _, ok := DecodeAudioChunk(make([]byte, n)); ok {
			t.Errorf("expected decode failure for %d-byte frame", n)
		}
	}
}

func TestDecodeAudioChunkWrongTag(t *testing.T) {
	for _, tag := range []byte{0, 1, TagArtworkFirst, TagArtworkLast, TagVisualizer} {
		frame := EncodeAudioChunk(1, []byte{0xAA})
		frame[0] = tag
		if _, ok := DecodeAudioChunk(frame); ok {
			t.Errorf("expected decode failure for tag %d", tag)
		}
	}
}

func TestStreamStartCodecHeader(t *testing.T) {
	raw := `{"type":"stream/start","payload":{"player":{"codec":"pcm","sample_rate":48000,"channels":2,"bit_depth":16,"codec_header":null}}}`
	msg, ok := DecodeMessage([]byte(raw))
	if !ok {
		t.Fatal("decode failed")
	}

	var start StreamStart
	if !DecodePayload(msg, &start) {
		t.Fatal("payload decode failed")
	}
	if start.Player == nil {
		t.Fatal("expected player block")
	}
	if start.Player.Codec != "pcm" || start.Player.SampleRate != 48000 {
		t.Errorf("unexpected format: %+v", start.Player)
	}
	if start.Player.CodecHeader != nil {
		t.Error("expected nil codec_header")
	}
}

func TestHasRole(t *testing.T) {
	if !HasRole([]string{"visualizer", "player"}, "player") {
		t.Error("expected player role to be found")
	}
	if HasRole([]string{"visualizer"}, "player") {
		t.Error("did not expect player role")
	}
	if HasRole(nil, "player") {
		t.Error("nil roles should not match")
	}
}
