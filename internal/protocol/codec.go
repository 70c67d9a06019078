package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"cattleherd/internal/types"
)

// Frame layout: one tag byte, a 4-byte big-endian payload length, then the
// payload. SendPublicKey carries raw key bytes, RequestUpdate is empty, the
// report variants carry JSON.
const (
	headerSize = 5

	// MaxPayloadSize bounds a single frame; anything larger is malformed
	MaxPayloadSize = 1 << 20
)

// Encode serializes a well-formed message into a single frame
func Encode(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	payload, err := encodePayload(m)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, headerSize+len(payload))
	frame[0] = byte(m.Type)
	binary.BigEndian.PutUint32(frame[1:headerSize], uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// Decode parses a single complete frame
func Decode(frame []byte) (*Message, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: frame truncated at %d bytes", types.ErrMalformedMessage, len(frame))
	}

	tag := MessageType(frame[0])
	length := binary.BigEndian.Uint32(frame[1:headerSize])

	if !tag.known() {
		return nil, fmt.Errorf("%w: unknown tag %d", types.ErrMalformedMessage, frame[0])
	}
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload length %d exceeds limit", types.ErrMalformedMessage, length)
	}
	if uint32(len(frame)-headerSize) != length {
		return nil, fmt.Errorf("%w: payload truncated, want %d bytes, have %d",
			types.ErrMalformedMessage, length, len(frame)-headerSize)
	}

	return decodePayload(tag, frame[headerSize:])
}

// WriteMessage frames and writes one message to the stream
func WriteMessage(w io.Writer, m *Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", types.ErrConnectionLost, err)
	}
	return nil
}

// ReadMessage reads exactly one framed message from the stream. A clean EOF
// before any header byte is returned as io.EOF so callers can distinguish
// orderly close from a truncated frame.
func ReadMessage(r io.Reader) (*Message, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading frame header: %v", types.ErrConnectionLost, err)
	}

	tag := MessageType(header[0])
	length := binary.BigEndian.Uint32(header[1:])

	if !tag.known() {
		return nil, fmt.Errorf("%w: unknown tag %d", types.ErrMalformedMessage, header[0])
	}
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload length %d exceeds limit", types.ErrMalformedMessage, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading frame payload: %v", types.ErrConnectionLost, err)
	}

	return decodePayload(tag, payload)
}

func encodePayload(m *Message) ([]byte, error) {
	switch m.Type {
	case TypeSendPublicKey:
		return m.PublicKey, nil
	case TypeRequestUpdate:
		return nil, nil
	case TypeSendUpdate:
		return marshalReport(m.Update)
	case TypeSendInitialInfo:
		return marshalReport(m.Initial)
	}
	return nil, fmt.Errorf("%w: unknown tag %d", types.ErrMalformedMessage, byte(m.Type))
}

func marshalReport(report any) ([]byte, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report payload: %w", err)
	}
	return payload, nil
}

// decodePayload interprets a payload for a known tag. A payload shape this
// version does not understand is a schema mismatch, never silently dropped.
func decodePayload(tag MessageType, payload []byte) (*Message, error) {
	switch tag {
	case TypeSendPublicKey:
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: SendPublicKey with empty key", types.ErrSchemaMismatch)
		}
		key := make([]byte, len(payload))
		copy(key, payload)
		return SendPublicKey(key), nil

	case TypeRequestUpdate:
		if len(payload) != 0 {
			return nil, fmt.Errorf("%w: RequestUpdate with unexpected payload", types.ErrSchemaMismatch)
		}
		return RequestUpdate(), nil

	case TypeSendUpdate:
		var report types.PeriodicUpdateReport
		if err := unmarshalStrict(payload, &report); err != nil {
			return nil, err
		}
		return SendUpdate(&report), nil

	case TypeSendInitialInfo:
		var report types.InitialConnectReport
		if err := unmarshalStrict(payload, &report); err != nil {
			return nil, err
		}
		return SendInitialInfo(&report), nil
	}
	return nil, fmt.Errorf("%w: unknown tag %d", types.ErrMalformedMessage, byte(tag))
}

// unmarshalStrict rejects payloads with fields this version does not know
func unmarshalStrict(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
	}
	return nil
}
