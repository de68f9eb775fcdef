// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/bureau-foundation/overlay-playground/lib/compress"
)

// LinkParameter is the query parameter of a share link that carries
// the locator.
const LinkParameter = "s"

// Snapshot is the shareable state of an editing session.
type Snapshot struct {
	Original string `json:"original"`
	Result   string `json:"result"`
}

// Encode renders s as JSON compressed with format.
func Encode(s Snapshot, format compress.Format) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return compress.Compress(string(data), format)
}

// Decode reads a compressed snapshot blob. The compression format is
// detected from the blob.
func Decode(r io.Reader) (Snapshot, error) {
	text, err := compress.Decompress(r)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot JSON: %w", err)
	}
	return s, nil
}

// ErrInvalidLocator is wrapped by DecodeLocator and ParamFromLink
// failures.
var ErrInvalidLocator = errors.New("invalid share locator")

// EncodeLocator encodes an object URL as a locator.
func EncodeLocator(objectURL string) string {
	return base64.StdEncoding.EncodeToString([]byte(objectURL))
}

// DecodeLocator returns the object URL inside a locator. Both the
// standard and URL-safe base64 alphabets are accepted, with or without
// padding, since links pass through tools that rewrite either.
func DecodeLocator(locator string) (string, error) {
	var decoded []byte
	var err error
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		decoded, err = encoding.DecodeString(locator)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	objectURL := string(decoded)
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidLocator, objectURL)
	}
	return objectURL, nil
}

// ShareLink returns appURL with the locator set as its "s" parameter.
func ShareLink(appURL, locator string) (string, error) {
	parsed, err := url.Parse(appURL)
	if err != nil {
		return "", fmt.Errorf("parsing app URL: %w", err)
	}
	query := parsed.Query()
	query.Set(LinkParameter, locator)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// ParamFromLink extracts the locator from a share link. A bare locator
// is returned unchanged.
func ParamFromLink(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil || parsed.Scheme == "" {
		if _, decodeErr := DecodeLocator(link); decodeErr == nil {
			return link, nil
		}
		return "", fmt.Errorf("%w: %q is neither a share link nor a locator", ErrInvalidLocator, link)
	}
	locator := parsed.Query().Get(LinkParameter)
	if locator == "" {
		return "", fmt.Errorf("%w: link has no %q parameter", ErrInvalidLocator, LinkParameter)
	}
	return locator, nil
}
