// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/overlay-playground/lib/codec"
)

// dialTimeout covers only the connect phase of a call.
const dialTimeout = 5 * time.Second

// maxMessageSize bounds a single CBOR message in either direction.
// Results are whole documents, and documents are bounded by the 5 MiB
// share limit before compression, so 16 MiB leaves headroom for the
// larger of original and result.
const maxMessageSize = 16 << 20

// ErrEngineClosed is returned by Call after Close.
var ErrEngineClosed = errors.New("engine closed")

// SocketEngine calls an engine listening on a Unix socket. Each Call
// opens a connection, writes one Message, reads one Message, and
// closes the connection.
type SocketEngine struct {
	socketPath string
	closed     atomic.Bool
}

// NewSocketEngine returns an engine client for socketPath. It does not
// connect; use DialLoader to verify the socket first.
func NewSocketEngine(socketPath string) *SocketEngine {
	return &SocketEngine{socketPath: socketPath}
}

// SocketPath returns the socket this client connects to.
func (e *SocketEngine) SocketPath() string { return e.socketPath }

// Call sends request and waits for the reply. Cancelling ctx closes the
// connection, so a hung engine releases the caller immediately.
func (e *SocketEngine) Call(ctx context.Context, request Message) (Message, error) {
	if e.closed.Load() {
		return Message{}, ErrEngineClosed
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	connection, err := dialer.DialContext(ctx, "unix", e.socketPath)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, fmt.Errorf("engine call %s: %w", request.Kind, context.Cause(ctx))
		}
		return Message{}, fmt.Errorf("connecting to engine at %s: %w", e.socketPath, err)
	}
	defer connection.Close()

	stop := context.AfterFunc(ctx, func() {
		connection.Close()
	})
	defer stop()

	response, err := exchange(connection, request)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, fmt.Errorf("engine call %s: %w", request.Kind, context.Cause(ctx))
		}
		return Message{}, fmt.Errorf("engine call %s: %w", request.Kind, err)
	}
	return response, nil
}

// Close marks the client closed. There is no persistent connection to
// release.
func (e *SocketEngine) Close() error {
	e.closed.Store(true)
	return nil
}

func exchange(connection net.Conn, request Message) (Message, error) {
	if err := codec.NewEncoder(connection).Encode(request); err != nil {
		return Message{}, fmt.Errorf("writing request: %w", err)
	}

	// The server reads exactly one value; half-closing lets it see EOF
	// if it tries to read more.
	if unixConnection, ok := connection.(*net.UnixConn); ok {
		unixConnection.CloseWrite()
	}

	var response Message
	if err := codec.NewDecoder(io.LimitReader(connection, maxMessageSize)).Decode(&response); err != nil {
		return Message{}, fmt.Errorf("reading response: %w", err)
	}
	return response, nil
}
