package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message types understood by the control socket
const (
	TypeStatus         = "status"
	TypeStatusResponse = "status_response"
	TypeError          = "error"
)

// Frames larger than this are rejected before allocation
const maxMessageSize = 1 << 20

// StatusResponse is the daemon state as reported over the socket
type StatusResponse struct {
	Phase         string
	Projector     string
	Workspace     string
	VirtualOutput string
	Framebuffer   string
	Damage        int
	Since         time.Time
}

// NewStatusMessage creates a status query
func NewStatusMessage() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"type": TypeStatus})
}

// NewStatusResponseMessage creates a status response
func NewStatusResponseMessage(st *StatusResponse) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"type":           TypeStatusResponse,
		"phase":          st.Phase,
		"projector":      st.Projector,
		"workspace":      st.Workspace,
		"virtual_output": st.VirtualOutput,
		"framebuffer":    st.Framebuffer,
		"damage":         st.Damage,
	}
	if !st.Since.IsZero() {
		fields["since"] = st.Since.UTC().Format(time.RFC3339Nano)
	}
	return structpb.NewStruct(fields)
}

// NewErrorMessage creates an error reply
func NewErrorMessage(errMsg string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"type":  TypeError,
		"error": errMsg,
	})
}

// MessageType returns the "type" field, or "" when absent
func MessageType(msg *structpb.Struct) string {
	return msg.GetFields()["type"].GetStringValue()
}

// GetStatusResponse extracts the status from a response message
func GetStatusResponse(msg *structpb.Struct) (*StatusResponse, error) {
	if t := MessageType(msg); t != TypeStatusResponse {
		return nil, fmt.Errorf("message is not a status response: %q", t)
	}
	f := msg.GetFields()
	st := &StatusResponse{
		Phase:         f["phase"].GetStringValue(),
		Projector:     f["projector"].GetStringValue(),
		Workspace:     f["workspace"].GetStringValue(),
		VirtualOutput: f["virtual_output"].GetStringValue(),
		Framebuffer:   f["framebuffer"].GetStringValue(),
		Damage:        int(f["damage"].GetNumberValue()),
	}
	if since := f["since"].GetStringValue(); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			return nil, fmt.Errorf("invalid since timestamp: %w", err)
		}
		st.Since = t
	}
	return st, nil
}

// GetErrorResponse extracts the error text from an error message
func GetErrorResponse(msg *structpb.Struct) (string, error) {
	if t := MessageType(msg); t != TypeError {
		return "", fmt.Errorf("message is not an error: %q", t)
	}
	return msg.GetFields()["error"].GetStringValue(), nil
}

// readMessage reads one length-prefixed protobuf message
func readMessage(r io.Reader) (*structpb.Struct, error) {
	// Read message length (4 bytes, big endian)
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return msg, nil
}

// writeMessage writes one length-prefixed protobuf message
func writeMessage(w io.Writer, msg *structpb.Struct) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	length := uint32(len(data)) //nolint:gosec // bounded by maxMessageSize on the reading side
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}
