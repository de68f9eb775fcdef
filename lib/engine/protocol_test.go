// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/overlay-playground/lib/codec"
)

func TestKindSuffixes(t *testing.T) {
	if got := KindCalculateOverlay.Result(); got != "CalculateOverlayResult" {
		t.Errorf("Result() = %q", got)
	}
	if got := KindGetInfo.Error(); got != "GetInfoError" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{"CalculateOverlay", KindCalculateOverlay, false},
		{"applyoverlay", KindApplyOverlay, false},
		{"GETINFO", KindGetInfo, false},
		{"QueryJSONPath", KindQueryJSONPath, false},
		{"GetInfoResult", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}

	for _, kind := range Kinds {
		if !kind.Valid() {
			t.Errorf("%q.Valid() = false", kind)
		}
	}
	if Kind("GetInfoResult").Valid() {
		t.Error("response kinds must not be valid request kinds")
	}
}

func TestInterpret(t *testing.T) {
	request, err := NewRequest("req-1", KindCalculateOverlay, map[string]string{"from": "a: 1", "to": "a: 2"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	t.Run("result", func(t *testing.T) {
		response, err := NewResult(request, "overlay: 1.0.0\n")
		if err != nil {
			t.Fatalf("NewResult: %v", err)
		}
		result, err := Interpret(request, response)
		if err != nil {
			t.Fatalf("Interpret: %v", err)
		}
		if result != "overlay: 1.0.0\n" {
			t.Errorf("result = %q", result)
		}
	})

	t.Run("remote_error", func(t *testing.T) {
		_, err := Interpret(request, NewError(request, "failed to parse source schema"))
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("error = %v, want *RemoteError", err)
		}
		if remote.Message != "failed to parse source schema" || remote.Kind != KindCalculateOverlay {
			t.Errorf("RemoteError = %+v", remote)
		}
	})

	t.Run("id_mismatch", func(t *testing.T) {
		response, _ := NewResult(request, "x")
		response.ID = "req-2"
		_, err := Interpret(request, response)
		var protocol *ProtocolError
		if !errors.As(err, &protocol) {
			t.Fatalf("error = %v, want *ProtocolError", err)
		}
	})

	t.Run("wrong_kind", func(t *testing.T) {
		response, _ := NewResult(request, "x")
		response.Kind = KindGetInfo.Result()
		_, err := Interpret(request, response)
		var protocol *ProtocolError
		if !errors.As(err, &protocol) {
			t.Fatalf("error = %v, want *ProtocolError", err)
		}
	})

	t.Run("non_string_payload", func(t *testing.T) {
		payload, _ := codec.Marshal(map[string]int{"n": 1})
		response := Message{ID: request.ID, Kind: request.Kind.Result(), Payload: payload}
		_, err := Interpret(request, response)
		var protocol *ProtocolError
		if !errors.As(err, &protocol) {
			t.Fatalf("error = %v, want *ProtocolError", err)
		}
	})
}
