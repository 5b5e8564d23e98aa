// Package rpc is a small JSON-over-TCP RPC transport: one JSON request per
// line, answered in order on the same connection. Agents that cannot speak
// HTTP call the content tools through it.
//
//	s := rpc.NewServer()
//	s.Register("Tools.Search", func(ctx context.Context, params json.RawMessage) (any, error) { ... })
//	go s.Serve(":8788")
//
//	c, _ := rpc.Dial("localhost:8788")
//	var out executor.SearchResult
//	err := c.Call(ctx, "Tools.Search", params, &out)
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/logger"
)

// HandlerFunc serves one method. Returned errors are classified into an
// error code the client maps back onto the shared sentinels.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format of a call.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format of a reply. Details carries structured error
// payloads such as glossary suggestions.
type Response struct {
	ID      string `json:"id"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error codes carried in Response.Code.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeNotFound        = "not_found"
	CodeAmbiguous       = "ambiguous"
	CodeUnavailable     = "unavailable"
	CodeUnknownMethod   = "unknown_method"
	CodeInternal        = "internal"
)

// DetailedError lets handlers attach a structured payload to an error reply.
type DetailedError interface {
	error
	Details() any
}

type Server struct {
	handlers    map[string]HandlerFunc
	callTimeout time.Duration
	listener    net.Listener
	conns       map[net.Conn]struct{}
	logger      *slog.Logger
	mu          sync.RWMutex
	wg          sync.WaitGroup
	done        chan struct{}
	stopOnce    sync.Once
}

func NewServer() *Server {
	return &Server{
		handlers:    make(map[string]HandlerFunc),
		callTimeout: 10 * time.Second,
		conns:       make(map[net.Conn]struct{}),
		logger:      slog.Default().With("component", "rpc-server"),
		done:        make(chan struct{}),
	}
}

// Register adds a handler for a "Service.Method" name.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Methods lists the registered method names.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}
	return out
}

// Serve listens on addr and blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts connections on ln until Stop is called.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				s.logger.Error("accept error", "error", err)
				continue
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	resp := Response{ID: req.ID}
	if !ok {
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		resp.Code = CodeUnknownMethod
		return resp
	}

	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(logger.WithRequestID(context.Background(), requestID), s.callTimeout)
	defer cancel()

	data, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = err.Error()
		resp.Code = CodeFor(err)
		var de DetailedError
		if errors.As(err, &de) {
			resp.Details = de.Details()
		}
		return resp
	}
	resp.Data = data
	return resp
}

// CodeFor classifies err into one of the wire error codes.
func CodeFor(err error) string {
	switch code := apperrors.Code(err); code {
	case CodeInvalidArgument, CodeNotFound, CodeAmbiguous, CodeUnavailable:
		return code
	default:
		return CodeInternal
	}
}

// Stop closes the listener and every open connection, then waits for
// in-flight calls to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
