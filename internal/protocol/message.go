package protocol

import (
	"errors"
	"fmt"
)

// Kind discriminates doorbell messages.
type Kind uint8

const (
	// KindTriggered reports that the doorbell sensor fired.
	KindTriggered Kind = iota + 1
	// KindError signals a protocol-level failure.
	KindError
	// KindKeepalive is a liveness probe sent while the sensor is idle.
	KindKeepalive
	// KindClose announces a graceful shutdown of the connection.
	KindClose
)

// Opcodes of the binary data frames.
const (
	OpcodeTriggered byte = 0x00
	OpcodeError     byte = 0x01
)

var (
	// ErrProtocolViolation marks any input that does not match a defined message.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrControlMessage is returned when encoding a message that is sent as a control frame.
	ErrControlMessage = errors.New("message is sent as a control frame")
)

// Message is a single doorbell wire message.
type Message struct {
	Kind Kind
}

// Triggered returns the doorbell event message.
func Triggered() Message { return Message{Kind: KindTriggered} }

// Error returns the protocol error message.
func Error() Message { return Message{Kind: KindError} }

// Keepalive returns the idle liveness probe.
func Keepalive() Message { return Message{Kind: KindKeepalive} }

// Close returns the graceful shutdown message.
func Close() Message { return Message{Kind: KindClose} }

// String returns the message kind name.
func (m Message) String() string {
	return m.Kind.String()
}

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindTriggered:
		return "triggered"
	case KindError:
		return "error"
	case KindKeepalive:
		return "keepalive"
	case KindClose:
		return "close"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Encode returns the binary payload of a data message.
func Encode(m Message) ([]byte, error) {
	switch m.Kind {
	case KindTriggered:
		return []byte{OpcodeTriggered}, nil
	case KindError:
		return []byte{OpcodeError}, nil
	case KindKeepalive, KindClose:
		return nil, fmt.Errorf("encode %s: %w", m.Kind, ErrControlMessage)
	default:
		return nil, Violationf("encode unknown message kind %d", uint8(m.Kind))
	}
}

// Decode parses the payload of a binary data frame.
func Decode(payload []byte) (Message, error) {
	if len(payload) != 1 {
		return Message{}, Violationf("data frame of %d bytes, want 1", len(payload))
	}

	switch payload[0] {
	case OpcodeTriggered:
		return Triggered(), nil
	case OpcodeError:
		return Error(), nil
	default:
		return Message{}, Violationf("unknown opcode 0x%02x", payload[0])
	}
}

// Violationf builds an error wrapping ErrProtocolViolation.
func Violationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
