package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/swayproj/internal/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrAlreadyRunning is returned by Start when another daemon answers on the socket
var ErrAlreadyRunning = errors.New("another swayproj instance owns the control socket")

// Handler answers control socket queries
type Handler interface {
	HandleStatus() (*StatusResponse, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func() (*StatusResponse, error)

func (f HandlerFunc) HandleStatus() (*StatusResponse, error) { return f() }

// SocketServer serves the control socket
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    Handler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewSocketServer creates a server listening on path, or on the default
// location when path is empty
func NewSocketServer(handler Handler, path string) (*SocketServer, error) {
	if path == "" {
		var err error
		path, err = GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}

	return &SocketServer{
		socketPath: path,
		handler:    handler,
	}, nil
}

// Path returns the socket location
func (s *SocketServer) Path() string {
	return s.socketPath
}

// Start starts listening. Calling it on a running server is a no-op.
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if conn, err := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.socketPath)
	}

	// A stale socket from a crashed run blocks Listen
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Debugf("Control socket listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket file. Safe to call more than once.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	if err := s.listener.Close(); err != nil {
		logger.Debugf("Failed to close control socket listener: %v", err)
	}
	s.mu.Unlock()

	s.wg.Wait()

	if err := os.RemoveAll(s.socketPath); err != nil {
		logger.Warnf("Failed to remove control socket: %v", err)
	}
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnf("Failed to accept control connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *SocketServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Failed to close control connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		logger.Debugf("Failed to set connection deadline: %v", err)
	}

	msg, err := readMessage(conn)
	if err != nil {
		logger.Debugf("Failed to read control request: %v", err)
		return
	}

	if err := writeMessage(conn, s.handle(msg)); err != nil {
		logger.Debugf("Failed to write control response: %v", err)
	}
}

func (s *SocketServer) handle(msg *structpb.Struct) *structpb.Struct {
	switch t := MessageType(msg); t {
	case TypeStatus:
		st, err := s.handler.HandleStatus()
		if err != nil {
			return errorMessage(err.Error())
		}
		resp, err := NewStatusResponseMessage(st)
		if err != nil {
			return errorMessage(err.Error())
		}
		return resp
	default:
		return errorMessage(fmt.Sprintf("unknown message type %q", t))
	}
}

func errorMessage(text string) *structpb.Struct {
	msg, err := NewErrorMessage(text)
	if err != nil {
		// Only fails on non-UTF-8 text
		msg, _ = NewErrorMessage("internal error")
	}
	return msg
}

// GetSocketPath returns $XDG_RUNTIME_DIR/swayproj.sock, falling back to a
// per-user path under /tmp
func GetSocketPath() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "swayproj.sock"), nil
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join("/tmp", fmt.Sprintf("swayproj-%s.sock", u.Username)), nil
}
