// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	digest := sha256.Sum256([]byte("hello"))

	hexKey := DeriveKey(digest, DefaultKeyPrefix, KeyEncodingHex, 0)
	if hexKey != "share-urls/2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("hex key = %q", hexKey)
	}

	shortKey := DeriveKey(digest, DefaultKeyPrefix, KeyEncodingBase64, DefaultShortLength)
	if shortKey != "share-urls/LPJNul-wow4m" {
		t.Errorf("base64 key = %q", shortKey)
	}

	full := DeriveKey(digest, "", KeyEncodingBase64, 1000)
	if len(full) != 43 {
		t.Errorf("unclamped base64 key length = %d, want 43", len(full))
	}

	for _, key := range []string{hexKey, shortKey, full} {
		if err := ValidateKey(key); err != nil {
			t.Errorf("derived key %q fails validation: %v", key, err)
		}
	}
}

func TestParseKeyEncoding(t *testing.T) {
	for input, want := range map[string]KeyEncoding{
		"":       KeyEncodingHex,
		"hex":    KeyEncodingHex,
		"BASE64": KeyEncodingBase64,
	} {
		got, err := ParseKeyEncoding(input)
		if err != nil || got != want {
			t.Errorf("ParseKeyEncoding(%q) = (%q, %v), want %q", input, got, err, want)
		}
	}
	if _, err := ParseKeyEncoding("base32"); err == nil {
		t.Error("ParseKeyEncoding(base32) should fail")
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"share-urls/abc", "a", "a/b/c", "x.y_z-0"}
	invalid := []string{"", "/abs", "a//b", "a/../b", "..", "./a", "a/", `a\b`, "a b", "a/%2e%2e", strings.Repeat("é", 2)}

	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) = %v", key, err)
		}
	}
	for _, key := range invalid {
		if err := ValidateKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}
