package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ironsheep/point-tracker-mcp/internal/imaging"
)

const (
	jsonrpcVersion  = "2.0"
	protocolVersion = "2024-11-05"
	serverName      = "point-tracker-mcp"
	serverVersion   = "0.1.0"

	// maxRequestBytes bounds a single request line.
	maxRequestBytes = 1024 * 1024
)

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Server handles MCP protocol communication
type Server struct {
	cache *imaging.ImageCache
	cfg   Config
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether req expects no response.
func (req *MCPRequest) isNotification() bool {
	return req.ID == nil && strings.HasPrefix(req.Method, "notifications/")
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance using cfg for tracking defaults.
func New(cfg Config) *Server {
	return &Server{
		cache: imaging.NewImageCache(),
		cfg:   cfg,
	}
}

// Run serves MCP requests from stdin, writing responses to stdout.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses
// to w until r is exhausted. A line that is not valid JSON gets a parse
// error response with a null id; notifications get no response.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(line)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleLine decodes and answers one request line.
func (s *Server) handleLine(line []byte) *MCPResponse {
	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		log.Printf("Failed to parse request: %v", err)
		return s.errorResponse(nil, codeParseError, "Parse error", err.Error())
	}
	if s.cfg.Debug {
		log.Printf("Request %v: %s", req.ID, req.Method)
	}

	resp := s.handleRequest(&req)
	if s.cfg.Debug && resp != nil && resp.Error != nil {
		log.Printf("Request %v failed: %s (%v)", req.ID, resp.Error.Message, resp.Error.Data)
	}
	return resp
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	if req.isNotification() {
		return nil
	}
	if req.Method == "" {
		return s.errorResponse(req.ID, codeInvalidRequest, "Invalid request", "missing method")
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

// handleInitialize responds to the initialize request. The instructions
// carry the tracking defaults callers override per tool call.
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: jsonrpcVersion,
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    serverName,
				"version": serverVersion,
			},
			"instructions": s.instructions(),
		},
	}
}

func (s *Server) instructions() string {
	return fmt.Sprintf("Sub-pixel point tracking between two images. Defaults: window %dx%d, "+
		"min_eigenvalue %g, blur_radius %g, luma %s, gradient %s. "+
		"Points that cannot be tracked report a status instead of an error.",
		s.cfg.WindowSize, s.cfg.WindowSize, s.cfg.MinEigenvalue, s.cfg.BlurRadius, s.cfg.Luma, s.cfg.Gradient)
}
