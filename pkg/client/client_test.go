package client_test

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alucardeht/membank/internal/bank"
	"github.com/alucardeht/membank/internal/cache"
	"github.com/alucardeht/membank/internal/mcp"
	"github.com/alucardeht/membank/internal/store"
	"github.com/alucardeht/membank/internal/tools"
	"github.com/alucardeht/membank/internal/tools/memorytools"
	"github.com/alucardeht/membank/pkg/client"
)

// startServer runs the wire protocol in-process over one half of a pipe
// and hands back a client attached to the other half.
func startServer(t *testing.T) *client.Client {
	t.Helper()

	st := store.New(t.TempDir())
	t.Cleanup(func() { st.Close() })

	deps := memorytools.Deps{
		Store:     st,
		Cache:     cache.New(100, time.Minute),
		Bank:      bank.NewEngine(st, "p1", t.TempDir()),
		ProjectID: "p1",
	}

	registry := tools.NewRegistry()
	for _, tool := range memorytools.GetTools(deps) {
		if err := registry.Register(tool); err != nil {
			t.Fatal(err)
		}
	}

	serverConn, clientConn := net.Pipe()
	server := mcp.NewServer(registry, "p1")
	go server.ProcessStream(serverConn, serverConn)
	t.Cleanup(func() { serverConn.Close() })

	c := client.NewFromStream(context.Background(), clientConn)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInitializeHandshake(t *testing.T) {
	c := startServer(t)

	result, err := c.Initialize(context.Background(), "client-test")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	info, ok := result["serverInfo"].(map[string]interface{})
	if !ok || info["name"] != "membank" {
		t.Errorf("serverInfo = %v", result["serverInfo"])
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
}

func TestPing(t *testing.T) {
	c := startServer(t)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestPing_TimeoutAgainstSilentServer(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close() })

	// Reads requests and never answers.
	go io.Copy(io.Discard, serverConn)

	c := client.NewFromStream(context.Background(), clientConn)
	t.Cleanup(func() { c.Close() })

	start := time.Now()
	err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("ping against a silent peer must fail")
	}
	if elapsed := time.Since(start); elapsed < client.PingTimeout {
		t.Errorf("returned after %s, before the %s window elapsed", elapsed, client.PingTimeout)
	}
}

func TestListTools(t *testing.T) {
	c := startServer(t)

	if _, err := c.Initialize(context.Background(), "client-test"); err != nil {
		t.Fatal(err)
	}

	toolList, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("tools/list: %v", err)
	}
	if len(toolList) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(toolList))
	}
	for _, tool := range toolList {
		if tool.Name == "" || tool.Description == "" || tool.InputSchema == nil {
			t.Errorf("incomplete descriptor: %+v", tool)
		}
	}
}

func TestCall_RoundTripUnwrapsEnvelope(t *testing.T) {
	c := startServer(t)

	if _, err := c.Initialize(context.Background(), "client-test"); err != nil {
		t.Fatal(err)
	}

	written, err := c.Call(context.Background(), "memory_write", map[string]interface{}{
		"key":     "auth-flow",
		"type":    "feature",
		"content": "JWT with refresh tokens.",
	})
	if err != nil {
		t.Fatalf("memory_write: %v", err)
	}

	writeResult, ok := written.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T, want parsed JSON object", written)
	}
	if writeResult["success"] != true {
		t.Errorf("write result = %v", writeResult)
	}

	read, err := c.Call(context.Background(), "memory_read", map[string]interface{}{
		"key": "auth-flow",
	})
	if err != nil {
		t.Fatalf("memory_read: %v", err)
	}
	mem, ok := read.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T, want parsed JSON object", read)
	}
	if mem["content"] != "JWT with refresh tokens." {
		t.Errorf("content = %v", mem["content"])
	}
}

func TestCall_UnknownToolSurfacesError(t *testing.T) {
	c := startServer(t)

	if _, err := c.Initialize(context.Background(), "client-test"); err != nil {
		t.Fatal(err)
	}

	_, err := c.Call(context.Background(), "memory_erase", map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "memory_erase") {
		t.Errorf("error should name the tool: %v", err)
	}
}
