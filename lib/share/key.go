// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyEncoding selects how the SHA-256 digest appears in a share key.
type KeyEncoding string

const (
	// KeyEncodingHex uses the full 64-character hex digest.
	KeyEncodingHex KeyEncoding = "hex"

	// KeyEncodingBase64 uses a prefix of the URL-safe base64 digest.
	// Shorter links, with a collision probability that grows with the
	// number of stored shares.
	KeyEncodingBase64 KeyEncoding = "base64"
)

// DefaultKeyPrefix namespaces share objects in the store.
const DefaultKeyPrefix = "share-urls/"

// DefaultShortLength is the base64 key length: 72 bits of digest.
const DefaultShortLength = 12

// ParseKeyEncoding accepts "hex", "base64", or "" (hex).
func ParseKeyEncoding(name string) (KeyEncoding, error) {
	switch KeyEncoding(strings.ToLower(name)) {
	case "", KeyEncodingHex:
		return KeyEncodingHex, nil
	case KeyEncodingBase64:
		return KeyEncodingBase64, nil
	default:
		return "", fmt.Errorf("unknown key encoding %q (want hex or base64)", name)
	}
}

// DeriveKey builds the storage key for a digest. shortLength applies
// to base64 only and is clamped to the encoded digest length.
func DeriveKey(digest [32]byte, prefix string, encoding KeyEncoding, shortLength int) string {
	switch encoding {
	case KeyEncodingBase64:
		encoded := base64.RawURLEncoding.EncodeToString(digest[:])
		if shortLength > 0 && shortLength < len(encoded) {
			encoded = encoded[:shortLength]
		}
		return prefix + encoded
	default:
		return prefix + hex.EncodeToString(digest[:])
	}
}

// ValidateKey checks that key is a relative, slash-separated path of
// segments drawn from letters, digits, '-', '_' and '.', with no empty,
// "." or ".." segments.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		for _, character := range segment {
			if !keyCharacter(character) {
				return fmt.Errorf("%w: %q", ErrInvalidKey, key)
			}
		}
	}
	return nil
}

func keyCharacter(character rune) bool {
	switch {
	case character >= 'a' && character <= 'z',
		character >= 'A' && character <= 'Z',
		character >= '0' && character <= '9',
		character == '-', character == '_', character == '.':
		return true
	}
	return false
}
