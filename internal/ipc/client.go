package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/bnema/swayproj/internal/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotRunning is returned when nothing listens on the socket
var ErrNotRunning = errors.New("swayproj is not running")

// Client queries a running daemon. Each request uses its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for path, or for the default location when
// path is empty
func NewClient(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}

	return &Client{
		socketPath: path,
		timeout:    5 * time.Second,
	}, nil
}

// Status fetches the daemon state
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	msg, err := NewStatusMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to create status message: %w", err)
	}

	response, err := c.sendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	switch t := MessageType(response); t {
	case TypeStatusResponse:
		return GetStatusResponse(response)
	case TypeError:
		text, _ := GetErrorResponse(response)
		return nil, fmt.Errorf("server error: %s", text)
	default:
		return nil, fmt.Errorf("unexpected response type: %q", t)
	}
}

func (c *Client) sendMessage(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		if isNotListening(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to swayproj: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Failed to close control connection: %v", err)
		}
	}()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	response, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response, nil
}

// isNotListening reports a missing socket file or a dead listener
func isNotListening(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
