// Package daemon exposes the protocol server on a local unix socket
// for clients that cannot attach to the process's stdio. Both
// transports share one handler, so behavior is identical.
package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/alucardeht/membank/internal/logger"
	"github.com/alucardeht/membank/internal/mcp"
)

var log = logger.ForComponent("daemon")

type Listener struct {
	socketPath   string
	server       *mcp.Server
	listener     net.Listener
	connections  map[net.Conn]bool
	connMu       sync.Mutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func NewListener(socketPath string, server *mcp.Server) *Listener {
	return &Listener{
		socketPath:  socketPath,
		server:      server,
		connections: make(map[net.Conn]bool),
		shutdown:    make(chan struct{}),
	}
}

// Start removes any stale socket, binds a fresh one and begins
// accepting connections.
func (l *Listener) Start() error {
	if err := os.Remove(l.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	listener, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.listener = listener

	if err := os.Chmod(l.socketPath, 0700); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	go l.acceptConnections()

	log.Info("socket listener started", "path", l.socketPath)
	return nil
}

func (l *Listener) acceptConnections() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.shutdown:
				return
			default:
				continue
			}
		}

		l.connMu.Lock()
		l.connections[conn] = true
		l.connMu.Unlock()

		go l.handleConnection(conn)
	}
}

// handleConnection forwards every parsed request to the shared handler.
// A decode failure drops the connection; one bad client never affects
// the others.
func (l *Listener) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		l.connMu.Lock()
		delete(l.connections, conn)
		l.connMu.Unlock()
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req mcp.Request
		if err := decoder.Decode(&req); err != nil {
			return
		}

		resp := l.server.HandleRequest(&req)
		if resp == nil {
			continue
		}

		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

// Shutdown closes the listener and every open connection and removes
// the socket file. Safe to call more than once.
func (l *Listener) Shutdown() {
	l.shutdownOnce.Do(func() {
		close(l.shutdown)

		if l.listener != nil {
			l.listener.Close()
		}

		l.connMu.Lock()
		for conn := range l.connections {
			conn.Close()
		}
		l.connMu.Unlock()

		os.Remove(l.socketPath)
	})
}

func (l *Listener) SocketPath() string {
	return l.socketPath
}
