// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bureau-foundation/overlay-playground/lib/bridge"
	"github.com/bureau-foundation/overlay-playground/lib/engine"
	"github.com/bureau-foundation/overlay-playground/lib/service"
	"github.com/bureau-foundation/overlay-playground/lib/share"
	"github.com/bureau-foundation/overlay-playground/lib/version"
)

// maxOperationBody bounds the JSON body of an engine request. Engine
// inputs are whole OpenAPI documents, so this is well above the share
// limit.
const maxOperationBody = 16 << 20

// engineResponse is the body of a successful engine call.
type engineResponse struct {
	Result string `json:"result"`
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Version version.BuildInfo `json:"version"`
	Bridge  bridge.Stats      `json:"bridge"`
	Share   shareStatus       `json:"share"`
}

type shareStatus struct {
	MaxSize int64  `json:"max_size"`
	Store   string `json:"store"`
}

// api serves the engine and status routes and mounts the share
// routes beside them.
type api struct {
	bridge    *bridge.Bridge
	share     *share.Service
	storeName string
	logger    *slog.Logger
}

// close stops the bridge, then releases the object store.
func (a *api) close() error {
	return errors.Join(a.bridge.Close(), closeStore(a.share.Store()))
}

// handler returns the complete route table wrapped in request
// logging.
func (a *api) handler() http.Handler {
	mux := http.NewServeMux()
	a.share.Register(mux)
	mux.HandleFunc("POST /api/engine/{kind}", a.handleEngine)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	return service.LogRequests(mux, a.logger)
}

func (a *api) handleEngine(w http.ResponseWriter, r *http.Request) {
	kind, err := engine.ParseKind(r.PathValue("kind"))
	if err != nil {
		service.RespondError(w, http.StatusBadRequest, "unknown_kind", err.Error(), a.logger)
		return
	}

	supersede := false
	if value := r.URL.Query().Get("supersede"); value != "" {
		supersede, err = strconv.ParseBool(value)
		if err != nil {
			service.RespondError(w, http.StatusBadRequest, "bad_request", "supersede must be a boolean", a.logger)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxOperationBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			service.RespondError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error(), a.logger)
			return
		}
		service.RespondError(w, http.StatusBadRequest, "bad_request", "reading body: "+err.Error(), a.logger)
		return
	}

	operation, err := bridge.ParseOperation(kind, body)
	if err != nil {
		service.RespondError(w, http.StatusBadRequest, "bad_request", err.Error(), a.logger)
		return
	}

	result, err := a.bridge.Do(r.Context(), operation, supersede)
	if err != nil {
		if r.Context().Err() != nil {
			// The client went away; nobody is left to answer.
			a.logger.Debug("engine caller disconnected", "kind", kind, "error", err)
			return
		}
		status, code := engineStatus(err)
		if status >= http.StatusInternalServerError {
			a.logger.Warn("engine request failed", "kind", kind, "status", status, "error", err)
		}
		service.RespondError(w, status, code, err.Error(), a.logger)
		return
	}

	service.WriteJSON(w, http.StatusOK, engineResponse{Result: result}, a.logger)
}

// engineStatus maps a bridge error to an HTTP status and error code.
func engineStatus(err error) (int, string) {
	var cancellation *bridge.CancellationError
	var initError *bridge.InitError
	var remote *engine.RemoteError
	switch {
	case errors.As(err, &cancellation):
		return http.StatusConflict, "cancelled"
	case errors.Is(err, bridge.ErrCallTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &initError):
		return http.StatusServiceUnavailable, "engine_unavailable"
	case errors.Is(err, bridge.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	case errors.As(err, &remote):
		return http.StatusBadGateway, "engine_error"
	default:
		return http.StatusBadGateway, "transport"
	}
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	service.WriteJSON(w, http.StatusOK, statusResponse{
		Version: version.Build(),
		Bridge:  a.bridge.Stats(),
		Share: shareStatus{
			MaxSize: a.share.MaxSize(),
			Store:   a.storeName,
		},
	}, a.logger)
}
