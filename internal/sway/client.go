package sway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bnema/swayproj/internal/logger"
)

// Client is the request/response handle to the compositor topology
type Client interface {
	ListOutputs(ctx context.Context) ([]Output, error)
	RunCommand(ctx context.Context, command string) error
	Close() error
}

// Options configures Dial
type Options struct {
	SocketPath string        // empty means discover from the environment
	Timeout    time.Duration // per round trip
	Attempts   uint          // initial connection attempts
	Delay      time.Duration // delay between connection attempts
}

// Conn is a Client over a single unix socket. Requests are serialised;
// after an I/O error the socket is dropped and re-dialled on the next call.
type Conn struct {
	mu      sync.Mutex
	path    string
	timeout time.Duration
	conn    net.Conn
	closed  bool
}

var _ Client = (*Conn)(nil)

// ErrNoSocket is returned when no compositor socket can be located
var ErrNoSocket = errors.New("sway IPC socket not found (is SWAYSOCK set?)")

// Dial locates the compositor socket and connects, retrying while the
// compositor is not up yet.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	path, err := SocketPath(ctx, opts.SocketPath)
	if err != nil {
		return nil, err
	}

	c := &Conn{path: path, timeout: opts.Timeout}

	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 1
	}

	err = retry.Do(
		func() error {
			return c.connect(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(opts.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debugf("sway connect attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sway at %s: %w", path, err)
	}

	logger.Debugf("Connected to sway IPC at %s", path)
	return c, nil
}

// SocketPath resolves the IPC socket: explicit path, $SWAYSOCK, $I3SOCK,
// then `sway --get-socketpath`.
func SocketPath(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	for _, env := range []string{"SWAYSOCK", "I3SOCK"} {
		if p := strings.TrimSpace(os.Getenv(env)); p != "" {
			return p, nil
		}
	}

	out, err := exec.CommandContext(ctx, "sway", "--get-socketpath").Output()
	if err == nil {
		if p := strings.TrimSpace(string(out)); p != "" {
			return p, nil
		}
	}
	return "", ErrNoSocket
}

// Path returns the socket path in use
func (c *Conn) Path() string {
	return c.path
}

func (c *Conn) connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *Conn) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// roundTrip sends one request and waits for the reply of the same type
func (c *Conn) roundTrip(ctx context.Context, t MessageType, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, net.ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to reconnect to sway: %w", err)
		}
	}

	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.drop()
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := writeMessage(c.conn, t, payload); err != nil {
		c.drop()
		return nil, err
	}

	rt, reply, err := readMessage(c.conn)
	if err != nil {
		c.drop()
		return nil, err
	}
	if rt != t {
		// No event subscriptions on this socket, so this is a desync
		c.drop()
		return nil, fmt.Errorf("unexpected reply type %s for %s", rt, t)
	}
	return reply, nil
}

// ListOutputs returns the current outputs
func (c *Conn) ListOutputs(ctx context.Context) ([]Output, error) {
	reply, err := c.roundTrip(ctx, GetOutputs, nil)
	if err != nil {
		return nil, err
	}

	var outputs []Output
	if err := json.Unmarshal(reply, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse outputs: %w", err)
	}
	return outputs, nil
}

// RunCommand sends a command and reports whether every part of it succeeded
func (c *Conn) RunCommand(ctx context.Context, command string) error {
	reply, err := c.roundTrip(ctx, RunCommand, []byte(command))
	if err != nil {
		return err
	}

	var results []CommandResult
	if err := json.Unmarshal(reply, &results); err != nil {
		return fmt.Errorf("failed to parse command reply: %w", err)
	}
	for _, r := range results {
		if !r.Success {
			return &CommandError{Command: command, Results: results}
		}
	}
	return nil
}

// Version queries the compositor version
func (c *Conn) Version(ctx context.Context) (Version, error) {
	var v Version
	reply, err := c.roundTrip(ctx, GetVersion, nil)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(reply, &v); err != nil {
		return v, fmt.Errorf("failed to parse version: %w", err)
	}
	return v, nil
}

// Close closes the socket
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
