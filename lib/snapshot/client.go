// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bureau-foundation/overlay-playground/lib/compress"
	"github.com/bureau-foundation/overlay-playground/lib/netutil"
)

// HTTPError is a non-2xx response from the share server or the object
// host.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client creates and resolves share links against a playground server.
type Client struct {
	// BaseURL is the server root, e.g. "https://play.example.com".
	BaseURL string

	// Origin is sent as the Origin header on share requests and must be
	// allowed by the server. Defaults to BaseURL.
	Origin string

	// Format compresses shared snapshots. Defaults to gzip.
	Format compress.Format

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Share uploads s and returns the locator for a share link.
func (c *Client) Share(ctx context.Context, s Snapshot) (string, error) {
	format := c.Format
	if format == 0 {
		format = compress.FormatGzip
	}
	blob, err := Encode(s, format)
	if err != nil {
		return "", err
	}
	return c.ShareBlob(ctx, blob)
}

// ShareBlob uploads an already compressed blob and returns its locator.
func (c *Client) ShareBlob(ctx context.Context, blob []byte) (string, error) {
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/api/share"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(blob))
	if err != nil {
		return "", fmt.Errorf("building share request: %w", err)
	}
	origin := c.Origin
	if origin == "" {
		origin = strings.TrimRight(c.BaseURL, "/")
	}
	request.Header.Set("Origin", origin)
	request.Header.Set("Content-Type", "application/octet-stream")

	response, err := c.httpClient().Do(request)
	if err != nil {
		return "", fmt.Errorf("sharing snapshot: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode/100 != 2 {
		return "", &HTTPError{StatusCode: response.StatusCode, Body: netutil.ErrorBody(response.Body)}
	}

	var locator string
	if err := netutil.DecodeResponse(response.Body, &locator); err != nil {
		return "", fmt.Errorf("reading share response: %w", err)
	}
	if _, err := DecodeLocator(locator); err != nil {
		return "", fmt.Errorf("share response: %w", err)
	}
	return locator, nil
}

// Resolve fetches the snapshot a locator points to.
func (c *Client) Resolve(ctx context.Context, locator string) (Snapshot, error) {
	objectURL, err := DecodeLocator(locator)
	if err != nil {
		return Snapshot{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, objectURL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("building fetch request: %w", err)
	}
	response, err := c.httpClient().Do(request)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching %s: %w", objectURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode/100 != 2 {
		return Snapshot{}, &HTTPError{StatusCode: response.StatusCode, Body: netutil.ErrorBody(response.Body)}
	}

	blob, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching %s: %w", objectURL, err)
	}
	return Decode(bytes.NewReader(blob))
}
