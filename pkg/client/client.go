// Package client is the consumer side of the membank wire protocol. It
// speaks newline-delimited JSON-RPC 2.0 to a server over a spawned
// process's stdio or the project's unix socket, correlates responses by
// id and enforces per-call timeouts.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/membank/pkg/protocol"
	"github.com/alucardeht/membank/pkg/version"
)

var ErrClosed = errors.New("client closed")

const (
	// CallTimeout bounds every tools/call round trip.
	CallTimeout = 10 * time.Second
	// PingTimeout bounds liveness checks.
	PingTimeout = 2 * time.Second
)

type Client struct {
	conn *jsonrpc2.Conn
	cmd  *exec.Cmd
}

type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

func newConn(ctx context.Context, rwc io.ReadWriteCloser) *jsonrpc2.Conn {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.PlainObjectCodec{})
	return jsonrpc2.NewConn(ctx, stream, noopHandler{})
}

// Dial connects to a running server's unix socket.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{conn: newConn(ctx, conn)}, nil
}

// Spawn starts a server process and attaches to its stdio. The child's
// stderr passes through so its logs stay visible.
func Spawn(ctx context.Context, command string, args ...string) (*Client, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	rwc := &stdioReadWriteCloser{reader: stdout, writer: stdin}
	return &Client{conn: newConn(ctx, rwc), cmd: cmd}, nil
}

// NewFromStream attaches to an already-connected transport. Used by the
// CLI and by tests that run the server in-process.
func NewFromStream(ctx context.Context, rwc io.ReadWriteCloser) *Client {
	return &Client{conn: newConn(ctx, rwc)}
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context, clientName string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	params := map[string]interface{}{
		"protocolVersion": version.ProtocolVersion,
		"clientInfo": map[string]interface{}{
			"name":    clientName,
			"version": version.Version,
		},
	}

	var result map[string]interface{}
	if err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	if err := c.conn.Notify(ctx, "notifications/initialized", struct{}{}); err != nil {
		return nil, fmt.Errorf("initialized notification: %w", err)
	}

	return result, nil
}

// Ping checks liveness with a short timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	var result map[string]interface{}
	if err := c.conn.Call(ctx, "ping", struct{}{}, &result); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ListTools enumerates the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	var result struct {
		Tools []protocol.Tool `json:"tools"`
	}
	if err := c.conn.Call(ctx, "tools/list", struct{}{}, &result); err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	return result.Tools, nil
}

// Call invokes one named tool. The response envelope is unwrapped: the
// first text content block is JSON-parsed when possible, and returned
// as the raw string otherwise. A server that never answers fails the
// call once the timeout window elapses; the pending request is
// discarded with it.
func (c *Client) Call(ctx context.Context, tool string, params interface{}) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	callParams := map[string]interface{}{
		"name":      tool,
		"arguments": params,
	}

	var envelope protocol.ToolResult
	if err := c.conn.Call(ctx, "tools/call", callParams, &envelope); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("call %s: timeout after %s", tool, CallTimeout)
		}
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}

	return unwrap(envelope), nil
}

func unwrap(envelope protocol.ToolResult) interface{} {
	if len(envelope.Content) == 0 {
		return nil
	}

	text := envelope.Content[0].Text
	var parsed interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text
	}
	return parsed
}

// DisconnectNotify is closed when the transport goes away; every
// pending call is rejected at that point rather than hanging.
func (c *Client) DisconnectNotify() <-chan struct{} {
	return c.conn.DisconnectNotify()
}

// Close tears down the connection and, for spawned servers, waits for
// the child to exit.
func (c *Client) Close() error {
	err := c.conn.Close()
	if c.cmd != nil {
		c.cmd.Wait()
	}
	return err
}
