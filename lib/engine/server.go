// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/overlay-playground/lib/codec"
)

// HandlerFunc executes one operation. payload holds the CBOR-encoded
// operation fields; decode it with codec.Unmarshal. The returned
// string becomes the Result payload, and a returned error becomes an
// Error response carrying err.Error().
type HandlerFunc func(ctx context.Context, payload codec.RawMessage) (string, error)

// readTimeout is how long the server waits for a connected client to
// send its request.
const readTimeout = 30 * time.Second

// writeTimeout is how long the server waits for a response write.
const writeTimeout = 10 * time.Second

// Server hosts engine operations on a Unix socket, one request per
// connection. Register handlers with Handle before calling Serve.
type Server struct {
	socketPath string
	handlers   map[Kind]HandlerFunc
	logger     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	activeConnections sync.WaitGroup
}

// NewServer creates a server for socketPath. A nil logger uses
// slog.Default().
func NewServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[Kind]HandlerFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers the handler for kind. Panics on a duplicate
// registration.
func (s *Server) Handle(kind Kind, handler HandlerFunc) {
	if _, exists := s.handlers[kind]; exists {
		panic(fmt.Sprintf("engine.Server: duplicate handler for kind %q", kind))
	}
	s.handlers[kind] = handler
}

// Ready is closed once the socket is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve listens on the socket until ctx is cancelled, then waits for
// in-flight handlers. A stale socket file is removed before listening
// and the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("engine listening", "path", s.socketPath, "kinds", len(s.handlers))
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, connection)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, connection net.Conn) {
	defer connection.Close()

	connection.SetReadDeadline(time.Now().Add(readTimeout))

	var request Message
	if err := codec.NewDecoder(io.LimitReader(connection, maxMessageSize)).Decode(&request); err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Debug("unreadable engine request", "error", err)
		}
		return
	}

	handler, exists := s.handlers[request.Kind]
	if !exists {
		s.write(connection, NewError(request, fmt.Sprintf("unknown operation %q", request.Kind)))
		return
	}

	started := time.Now()
	result, err := handler(ctx, request.Payload)
	if err != nil {
		s.logger.Debug("engine operation failed",
			"request_id", request.ID,
			"kind", request.Kind,
			"error", err,
		)
		s.write(connection, NewError(request, err.Error()))
		return
	}

	response, err := NewResult(request, result)
	if err != nil {
		s.write(connection, NewError(request, err.Error()))
		return
	}
	s.logger.Debug("engine operation complete",
		"request_id", request.ID,
		"kind", request.Kind,
		"result_bytes", len(result),
		"duration", time.Since(started),
	)
	s.write(connection, response)
}

func (s *Server) write(connection net.Conn, response Message) {
	connection.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(connection).Encode(response); err != nil {
		s.logger.Debug("writing engine response failed", "request_id", response.ID, "error", err)
	}
}
