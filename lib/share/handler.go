// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"time"
)

// Register adds the share routes to mux:
//
//	POST    /api/share        store the body, answer with the locator
//	OPTIONS /api/share        CORS preflight
//	GET     /objects/{key...} serve a stored object
//
// Other methods on these paths get 405 from the mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/share", s.handleShare)
	mux.HandleFunc("OPTIONS /api/share", s.handlePreflight)
	mux.HandleFunc("GET "+ObjectsPath+"{key...}", s.handleObject)
	mux.HandleFunc("OPTIONS "+ObjectsPath+"{key...}", s.handlePreflight)
}

// Handler returns an http.Handler serving only the share routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// StatusFor maps an Ingest error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrEmptyBody), errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrKeyCollision):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) handleShare(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	receipt, err := s.Ingest(r.Context(), origin, r.Body)
	if err != nil {
		status := StatusFor(err)
		if status != http.StatusForbidden {
			s.allowOrigin(w, origin)
		}
		if status == http.StatusRequestEntityTooLarge {
			// Leave the rest of the body unread.
			w.Header().Set("Connection", "close")
		}
		http.Error(w, errorText(status, err), status)
		return
	}

	s.allowOrigin(w, origin)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Share-Key", receipt.Key)
	if err := json.NewEncoder(w).Encode(receipt.Locator); err != nil {
		s.logger.Debug("writing share response failed", "error", err)
	}
}

// errorText keeps storage details out of responses.
func errorText(status int, err error) string {
	switch status {
	case http.StatusForbidden:
		return "Unauthorized"
	case http.StatusInternalServerError:
		return "storage failure"
	default:
		return err.Error()
	}
}

func (s *Service) handleObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := ValidateKey(key); err != nil {
		http.NotFound(w, r)
		return
	}

	object, err := s.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("opening share object failed", "key", key, "error", err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	defer object.Close()

	s.allowOrigin(w, r.Header.Get("Origin"))
	header := w.Header()
	header.Set("Content-Type", "application/octet-stream")
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	header.Set("ETag", `"`+path.Base(key)+`"`)
	http.ServeContent(w, r, "", time.Time{}, object)
}

func (s *Service) handlePreflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !s.origins.Allowed(origin) {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}
	s.allowOrigin(w, origin)
	header := w.Header()
	header.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	header.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// allowOrigin echoes origin in the CORS header when it is allowed.
func (s *Service) allowOrigin(w http.ResponseWriter, origin string) {
	w.Header().Add("Vary", "Origin")
	if s.origins.Allowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
}
