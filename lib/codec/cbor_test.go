// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleMessage struct {
	ID      string `cbor:"id"`
	Kind    string `cbor:"kind"`
	Payload string `cbor:"payload,omitempty"`
}

type sampleDualMessage struct {
	Source  string `json:"source"`
	Overlay string `json:"overlay"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleMessage{ID: "01J0000000000000000000000", Kind: "GetInfo", Payload: "a: 1"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleMessage
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]any{"z": 1, "a": "two", "m": []int{3}})
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(map[string]any{"m": []int{3}, "a": "two", "z": 1})
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("map key order changed the encoding: %x != %x", first, second)
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(sampleDualMessage{Source: "s", Overlay: "o"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["source"] != "s" || decoded["overlay"] != "o" {
		t.Errorf("json tags not used as CBOR keys: %v", decoded)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	messages := []sampleMessage{
		{ID: "1", Kind: "CalculateOverlay"},
		{ID: "2", Kind: "CalculateOverlayResult", Payload: "overlay: 1.0.0"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range messages {
		var got sampleMessage
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", i, err)
		}
		if got != want {
			t.Errorf("message %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	type envelope struct {
		Kind    string     `cbor:"kind"`
		Payload RawMessage `cbor:"payload"`
	}

	inner, err := Marshal(sampleDualMessage{Source: "a: 1", Overlay: "actions: []"})
	if err != nil {
		t.Fatalf("Marshal inner: %v", err)
	}
	data, err := Marshal(envelope{Kind: "ApplyOverlay", Payload: inner})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	var payload sampleDualMessage
	if err := Unmarshal(decoded.Payload, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload.Source != "a: 1" || payload.Overlay != "actions: []" {
		t.Errorf("payload = %+v", payload)
	}
}
