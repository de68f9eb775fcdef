// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/overlay-playground/lib/compress"
	"github.com/bureau-foundation/overlay-playground/lib/share"
	"github.com/bureau-foundation/overlay-playground/lib/snapshot"
)

// testEnvironment captures command output in buffers.
type testEnvironment struct {
	*environment
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	terminal bool
}

func newTestEnvironment(stdin string, variables map[string]string) *testEnvironment {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	test := &testEnvironment{stdout: stdout, stderr: stderr}
	test.environment = &environment{
		stdin:  strings.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
		getenv: func(name string) string { return variables[name] },
		isTerminal: func(io.Writer) bool {
			return test.terminal
		},
	}
	return test
}

func (e *testEnvironment) execute(args ...string) error {
	previous := slog.Default()
	defer slog.SetDefault(previous)
	return root(e.environment).execute(args, e.stderr)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// startShareServer serves the share routes over a MemoryStore. Only
// requests whose origin host is 127.0.0.1 may share.
func startShareServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	service, err := share.NewService(share.Config{
		Store:         share.NewMemoryStore(),
		Origins:       share.OriginPolicy{PrimaryHost: "127.0.0.1"},
		PublicBaseURL: server.URL,
		Logger:        slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	service.Register(mux)
	return server
}

func TestShareAndResolve(t *testing.T) {
	server := startShareServer(t)
	original := writeFile(t, "original.yaml", "openapi: 3.1.0\npaths: {}\n")
	result := writeFile(t, "result.yaml", "openapi: 3.1.0\npaths:\n  /pets: {}\n")

	sharer := newTestEnvironment("", map[string]string{"PLAYGROUND_SERVER": server.URL})
	if err := sharer.execute("share", "--original", original, "--result", result,
		"--format", "zstd", "--app-url", "https://play.example.com/"); err != nil {
		t.Fatalf("share: %v (stderr %q)", err, sharer.stderr.String())
	}

	link := strings.TrimSpace(sharer.stdout.String())
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parsing link %q: %v", link, err)
	}
	if parsed.Host != "play.example.com" || parsed.Query().Get(snapshot.LinkParameter) == "" {
		t.Fatalf("share link = %q", link)
	}

	resolver := newTestEnvironment("", nil)
	if err := resolver.execute("resolve", link); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var session snapshot.Snapshot
	if err := json.Unmarshal(resolver.stdout.Bytes(), &session); err != nil {
		t.Fatalf("decoding resolve output %q: %v", resolver.stdout.String(), err)
	}
	if session.Original != "openapi: 3.1.0\npaths: {}\n" || !strings.Contains(session.Result, "/pets") {
		t.Errorf("resolved session = %+v", session)
	}

	// The bare locator resolves too, into files.
	outputDirectory := t.TempDir()
	originalOut := filepath.Join(outputDirectory, "before.yaml")
	resultOut := filepath.Join(outputDirectory, "after.yaml")
	fileResolver := newTestEnvironment("", nil)
	if err := fileResolver.execute("resolve", parsed.Query().Get(snapshot.LinkParameter),
		"--original-out", originalOut, "--result-out", resultOut); err != nil {
		t.Fatalf("resolve to files: %v", err)
	}
	written, err := os.ReadFile(resultOut)
	if err != nil {
		t.Fatal(err)
	}
	if string(written) != session.Result {
		t.Errorf("result file = %q, want %q", written, session.Result)
	}
}

func TestShareSnapshotFromStdin(t *testing.T) {
	server := startShareServer(t)

	sharer := newTestEnvironment(`{
		// Session exported from the editor.
		"original": "a: 1",
		"result": "a: 2",
	}`, nil)
	if err := sharer.execute("share", "--server", server.URL, "--snapshot", "-"); err != nil {
		t.Fatalf("share: %v", err)
	}

	locator := strings.TrimSpace(sharer.stdout.String())
	objectURL, err := snapshot.DecodeLocator(locator)
	if err != nil {
		t.Fatalf("DecodeLocator(%q): %v", locator, err)
	}
	if !strings.HasPrefix(objectURL, server.URL+share.ObjectsPath) {
		t.Errorf("object URL = %q", objectURL)
	}
}

func TestShareRejectedOrigin(t *testing.T) {
	server := startShareServer(t)

	sharer := newTestEnvironment(`{"original": "a", "result": "b"}`, nil)
	err := sharer.execute("share", "--server", server.URL, "--snapshot", "-",
		"--origin", "https://evil.example.com")

	var httpError *snapshot.HTTPError
	if !errors.As(err, &httpError) || httpError.StatusCode != http.StatusForbidden {
		t.Fatalf("share error = %v, want HTTP 403", err)
	}
	if !strings.Contains(err.Error(), "evil.example.com") {
		t.Errorf("error = %q, want it to name the rejected origin", err)
	}
}

func TestShareArgumentErrors(t *testing.T) {
	original := writeFile(t, "original.yaml", "a")
	snapshotFile := writeFile(t, "session.jsonc", `{"original": "a", "result": "b"}`)

	tests := []struct {
		name string
		args []string
	}{
		{"no_input", []string{"share"}},
		{"only_original", []string{"share", "--original", original}},
		{"mixed", []string{"share", "--snapshot", snapshotFile, "--original", original}},
		{"unknown_field", []string{"share", "--snapshot", writeFile(t, "bad.jsonc", `{"original": "a", "extra": 1}`)}},
		{"bad_format", []string{"share", "--snapshot", snapshotFile, "--format", "brotli"}},
		{"positional", []string{"share", "extra"}},
		{"unknown_flag", []string{"share", "--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvironment("", nil)
			if err := env.execute(tt.args...); err == nil {
				t.Errorf("execute(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestResolveInvalidLink(t *testing.T) {
	env := newTestEnvironment("", nil)
	err := env.execute("resolve", "https://play.example.com/?x=1")
	if !errors.Is(err, snapshot.ErrInvalidLocator) {
		t.Errorf("resolve error = %v, want ErrInvalidLocator", err)
	}
}

func TestCompressDecompress(t *testing.T) {
	input := "openapi: 3.1.0\ninfo:\n  title: Petstore\n"

	for _, format := range []string{"gzip", "zstd", "lz4"} {
		t.Run(format, func(t *testing.T) {
			compressor := newTestEnvironment(input, nil)
			if err := compressor.execute("compress", "--format", format); err != nil {
				t.Fatalf("compress: %v", err)
			}
			detected, ok := compress.DetectFormat(compressor.stdout.Bytes())
			if !ok || detected.String() != format {
				t.Fatalf("compressed output format = (%v, %v), want %s", detected, ok, format)
			}

			blob := writeFile(t, "blob", compressor.stdout.String())
			decompressor := newTestEnvironment("", nil)
			if err := decompressor.execute("decompress", blob); err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if decompressor.stdout.String() != input {
				t.Errorf("round trip = %q, want %q", decompressor.stdout.String(), input)
			}
		})
	}
}

func TestCompressRefusesTerminal(t *testing.T) {
	env := newTestEnvironment("a: 1", nil)
	env.terminal = true

	err := env.execute("compress")
	if err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("compress to terminal error = %v, want refusal", err)
	}
	if env.stdout.Len() != 0 {
		t.Errorf("wrote %d bytes to the terminal", env.stdout.Len())
	}

	forced := newTestEnvironment("a: 1", nil)
	forced.terminal = true
	if err := forced.execute("compress", "--force"); err != nil {
		t.Fatalf("compress --force: %v", err)
	}
	if forced.stdout.Len() == 0 {
		t.Error("compress --force wrote nothing")
	}

	outputPath := filepath.Join(t.TempDir(), "blob.gz")
	toFile := newTestEnvironment("a: 1", nil)
	toFile.terminal = true
	if err := toFile.execute("compress", "-o", outputPath); err != nil {
		t.Fatalf("compress -o: %v", err)
	}
	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := compress.DetectFormat(data); !ok {
		t.Error("output file is not a recognizable blob")
	}
}

func TestDecompressMalformed(t *testing.T) {
	env := newTestEnvironment("not compressed", nil)
	err := env.execute("decompress")

	var compressError *compress.Error
	if !errors.As(err, &compressError) {
		t.Fatalf("decompress error = %v, want *compress.Error", err)
	}
	if env.stdout.Len() != 0 {
		t.Errorf("decompress wrote %d bytes for malformed input", env.stdout.Len())
	}
}

func TestCommandDispatch(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		env := newTestEnvironment("", nil)
		if err := env.execute("--help"); err != nil {
			t.Fatalf("--help: %v", err)
		}
		for _, name := range []string{"share", "resolve", "compress", "decompress"} {
			if !strings.Contains(env.stderr.String(), name) {
				t.Errorf("help output missing %q", name)
			}
		}
	})

	t.Run("subcommand_help", func(t *testing.T) {
		env := newTestEnvironment("", nil)
		if err := env.execute("share", "-h"); err != nil {
			t.Fatalf("share -h: %v", err)
		}
		if !strings.Contains(env.stderr.String(), "--app-url") {
			t.Errorf("share help missing flags: %q", env.stderr.String())
		}
	})

	t.Run("no_subcommand", func(t *testing.T) {
		env := newTestEnvironment("", nil)
		if err := env.execute(); !errors.Is(err, errUsage) {
			t.Errorf("execute() = %v, want errUsage", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		env := newTestEnvironment("", nil)
		err := env.execute("publish")
		if err == nil || !strings.Contains(err.Error(), `unknown command "publish"`) {
			t.Errorf("execute(publish) = %v", err)
		}
	})
}
