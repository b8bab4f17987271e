// Package mcp frames newline-delimited JSON-RPC 2.0 over a byte stream
// and routes requests into the tool registry.
package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/alucardeht/membank/internal/tools"
	"github.com/alucardeht/membank/pkg/protocol"
)

// maxLineSize bounds one framed request; memory contents are markdown
// documents, not blobs.
const maxLineSize = 10 * 1024 * 1024

type Server struct {
	registry *tools.Registry
	handler  *Handler
}

func NewServer(registry *tools.Registry, projectID string) *Server {
	return &Server{
		registry: registry,
		handler:  NewHandler(registry, projectID),
	}
}

// HandleRequest processes one request. The returned response is nil
// for notifications, which must never be answered on the wire.
func (s *Server) HandleRequest(req *Request) *Response {
	resp := s.handler.Handle(req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

// ProcessStream reads newline-delimited requests until EOF. A line that
// fails to parse, or one exceeding the size limit, yields a parse-error
// response and processing continues with the next line.
func (s *Server) ProcessStream(reader io.Reader, writer io.Writer) error {
	buf := bufio.NewReaderSize(reader, 64*1024)
	encoder := json.NewEncoder(writer)

	parseError := func() error {
		return encoder.Encode(&Response{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &protocol.JSONRPCError{
				Code:    protocol.CodeParseError,
				Message: "Parse error",
			},
		})
	}

	for {
		line, tooLong, err := readLine(buf)

		switch {
		case tooLong:
			if encErr := parseError(); encErr != nil {
				return encErr
			}

		case len(bytes.TrimSuffix(line, []byte{'\r'})) > 0:
			line = bytes.TrimSuffix(line, []byte{'\r'})

			var req Request
			if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
				if encErr := parseError(); encErr != nil {
					return encErr
				}
			} else if resp := s.HandleRequest(&req); resp != nil {
				if encErr := encoder.Encode(resp); encErr != nil {
					return encErr
				}
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// readLine returns the next line without its newline. An oversized line
// is discarded through to its newline and reported via tooLong, so the
// stream resynchronizes instead of dying.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		line = append(line, frag...)

		if len(line) > maxLineSize {
			for err == bufio.ErrBufferFull {
				_, err = r.ReadSlice('\n')
			}
			return nil, true, err
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == nil {
			return line[:len(line)-1], false, nil
		}
		return line, false, err
	}
}

func (s *Server) Registry() *tools.Registry {
	return s.registry
}
