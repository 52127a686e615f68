// ABOUTME: JSON envelope encoding and decoding
// ABOUTME: Malformed input decodes to nothing rather than raising an error
package protocol

import "encoding/json"

// DecodeMessage parses a JSON envelope. A malformed envelope or one
// without a type yields ok=false; callers treat that as a dropped frame.
func DecodeMessage(data []byte) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, false
	}
	if msg.Type == "" {
		return Message{}, false
	}
	return msg, true
}

// DecodePayload parses an envelope payload into out. A missing or
// malformed payload yields false with out untouched beyond partial decode.
func DecodePayload(msg Message, out interface{}) bool {
	if len(msg.Payload) == 0 {
		return false
	}
	return json.Unmarshal(msg.Payload, out) == nil
}

// EncodeMessage builds an envelope of the given type around payload.
func EncodeMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}
