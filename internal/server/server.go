package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ironsheep/raw-alchemy/internal/config"
	"github.com/ironsheep/raw-alchemy/internal/develop"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
	"github.com/ironsheep/raw-alchemy/internal/lens"
	"github.com/ironsheep/raw-alchemy/internal/lut"
)

// ResultMethod is the notification pushed for every accepted pipeline result.
const ResultMethod = "notifications/develop/result"

// Server handles MCP protocol communication
type Server struct {
	settings config.Settings
	session  *develop.Session
	decoder  develop.Decoder
	lens     *lens.Vignetting
	luts     *lut.Cache
	logf     func(format string, args ...interface{})

	in io.Reader

	// outMu serializes responses and notifications on out.
	outMu sync.Mutex
	enc   *json.Encoder

	mu       sync.Mutex
	current  *develop.Result
	baseline *develop.Result
	original *develop.Result

	forwarded chan struct{}
	closeOnce sync.Once
}

// Options configures a Server. Zero values select stdin/stdout, the file
// decoder and built-in settings.
type Options struct {
	Settings *config.Settings
	Store    develop.ParamStore
	Decoder  develop.Decoder

	In  io.Reader
	Out io.Writer

	Logf func(format string, args ...interface{})
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
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

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server with an idle develop session.
func New(opts Options) (*Server, error) {
	settings := config.NewSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Decoder == nil {
		opts.Decoder = imaging.FileDecoder{}
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}

	luts, err := lut.NewCache(settings.LUTCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		settings:  settings,
		decoder:   opts.Decoder,
		lens:      lens.NewVignetting(settings.LensDatabase),
		luts:      luts,
		logf:      opts.Logf,
		in:        opts.In,
		enc:       json.NewEncoder(opts.Out),
		forwarded: make(chan struct{}),
	}

	initial := settings.Defaults
	s.session = develop.NewSession(develop.SessionOptions{
		Pipeline: develop.Options{
			Decoder:         opts.Decoder,
			Corrector:       s.lens,
			LUTs:            luts,
			PreviewMaxDim:   settings.PreviewMaxDim,
			IdleTimeout:     settings.IdleTimeout,
			HistogramBins:   settings.HistogramBins,
			HistogramStride: settings.HistogramStride,
			Logf:            opts.Logf,
		},
		Store:   opts.Store,
		Initial: &initial,
	})

	go s.forward()
	return s, nil
}

// Run serves requests until the input is exhausted, then closes the session.
func (s *Server) Run() error {
	defer s.Close()

	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// Close stops the session and waits for pending notifications to be written.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.session.Close()
		<-s.forwarded
	})
}

func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		s.logf("Failed to encode response: %v", err)
	}
}

// forward records accepted results and pushes them to the client.
func (s *Server) forward() {
	defer close(s.forwarded)
	for r := range s.session.Results() {
		r := r
		// A result may sit in the channel while the user moves on.
		if r.ImageID != s.session.Selected() {
			continue
		}
		s.mu.Lock()
		switch {
		case r.Err != nil:
		case r.Pipeline == develop.BaselinePipeline:
			s.baseline = &r
		case r.Kind == develop.ResultOriginal:
			s.original = &r
		default:
			s.current = &r
		}
		s.mu.Unlock()

		s.write(&MCPNotification{
			JSONRPC: "2.0",
			Method:  ResultMethod,
			Params:  newResultPayload(r),
		})
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "raw-alchemy",
				"version": "0.1.0",
			},
		},
	}
}
