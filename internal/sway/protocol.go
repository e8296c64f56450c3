package sway

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType is an i3-ipc message type
type MessageType uint32

const (
	RunCommand    MessageType = 0
	GetWorkspaces MessageType = 1
	GetOutputs    MessageType = 3
	GetVersion    MessageType = 7
)

func (t MessageType) String() string {
	switch t {
	case RunCommand:
		return "RUN_COMMAND"
	case GetWorkspaces:
		return "GET_WORKSPACES"
	case GetOutputs:
		return "GET_OUTPUTS"
	case GetVersion:
		return "GET_VERSION"
	default:
		return fmt.Sprintf("MESSAGE_%d", uint32(t))
	}
}

var magic = []byte("i3-ipc")

const headerSize = 6 + 4 + 4

// maxPayload guards against a corrupt length field
const maxPayload = 16 << 20

// writeMessage writes one framed message: magic, payload length, type, payload.
// Integers use the host byte order, as the compositor does.
func writeMessage(w io.Writer, t MessageType, payload []byte) error {
	buf := make([]byte, headerSize+len(payload))
	copy(buf, magic)
	binary.NativeEndian.PutUint32(buf[6:], uint32(len(payload)))
	binary.NativeEndian.PutUint32(buf[10:], uint32(t))
	copy(buf[headerSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s message: %w", t, err)
	}
	return nil
}

// readMessage reads one framed reply
func readMessage(r io.Reader) (MessageType, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("failed to read reply header: %w", err)
	}
	if !bytes.Equal(header[:6], magic) {
		return 0, nil, fmt.Errorf("invalid reply magic %q", header[:6])
	}

	length := binary.NativeEndian.Uint32(header[6:])
	t := MessageType(binary.NativeEndian.Uint32(header[10:]))
	if length > maxPayload {
		return 0, nil, fmt.Errorf("reply payload too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("failed to read reply payload: %w", err)
	}
	return t, payload, nil
}
