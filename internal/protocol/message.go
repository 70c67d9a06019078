package protocol

import (
	"fmt"

	"cattleherd/internal/types"
)

// MessageType tags the wire variants. Tag values are fixed across versions;
// schema evolution adds new tags rather than repurposing old payload shapes.
type MessageType byte

const (
	TypeSendPublicKey   MessageType = 1
	TypeRequestUpdate   MessageType = 2
	TypeSendUpdate      MessageType = 3
	TypeSendInitialInfo MessageType = 4
)

// String returns the message type name
func (t MessageType) String() string {
	switch t {
	case TypeSendPublicKey:
		return "SendPublicKey"
	case TypeRequestUpdate:
		return "RequestUpdate"
	case TypeSendUpdate:
		return "SendUpdate"
	case TypeSendInitialInfo:
		return "SendInitialInfo"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}

// known reports whether the tag is part of the wire vocabulary
func (t MessageType) known() bool {
	switch t {
	case TypeSendPublicKey, TypeRequestUpdate, TypeSendUpdate, TypeSendInitialInfo:
		return true
	}
	return false
}

// Message is the wire envelope. Exactly one payload is populated, matching
// the type tag; use the constructors rather than building one by hand.
type Message struct {
	Type      MessageType
	PublicKey []byte
	Initial   *types.InitialConnectReport
	Update    *types.PeriodicUpdateReport
}

// SendPublicKey builds the key-announcement message
func SendPublicKey(key []byte) *Message {
	return &Message{Type: TypeSendPublicKey, PublicKey: key}
}

// RequestUpdate builds the payload-free update request
func RequestUpdate() *Message {
	return &Message{Type: TypeRequestUpdate}
}

// SendUpdate builds a periodic update message
func SendUpdate(report *types.PeriodicUpdateReport) *Message {
	return &Message{Type: TypeSendUpdate, Update: report}
}

// SendInitialInfo builds the once-per-session connect message
func SendInitialInfo(report *types.InitialConnectReport) *Message {
	return &Message{Type: TypeSendInitialInfo, Initial: report}
}

// Validate checks that exactly the payload matching the tag is populated
func (m *Message) Validate() error {
	switch m.Type {
	case TypeSendPublicKey:
		if len(m.PublicKey) == 0 || m.Initial != nil || m.Update != nil {
			return fmt.Errorf("%w: SendPublicKey must carry only key bytes", types.ErrSchemaMismatch)
		}
	case TypeRequestUpdate:
		if len(m.PublicKey) != 0 || m.Initial != nil || m.Update != nil {
			return fmt.Errorf("%w: RequestUpdate carries no payload", types.ErrSchemaMismatch)
		}
	case TypeSendUpdate:
		if m.Update == nil || len(m.PublicKey) != 0 || m.Initial != nil {
			return fmt.Errorf("%w: SendUpdate must carry only an update report", types.ErrSchemaMismatch)
		}
	case TypeSendInitialInfo:
		if m.Initial == nil || len(m.PublicKey) != 0 || m.Update != nil {
			return fmt.Errorf("%w: SendInitialInfo must carry only an initial report", types.ErrSchemaMismatch)
		}
	default:
		return fmt.Errorf("%w: unknown tag %d", types.ErrMalformedMessage, byte(m.Type))
	}
	return nil
}
