// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies the compression container of a snapshot blob.
// The format is recognizable from the first bytes of the stream, so
// it is never stored out of band.
type Format uint8

const (
	// FormatGzip is RFC 1952 gzip (deflate). This is the default and
	// the format browsers produce with CompressionStream("gzip"), so
	// share blobs written by the web front end decode unchanged.
	FormatGzip Format = 1

	// FormatZstd is a zstd frame at the default level. Roughly twice
	// the ratio of gzip on large YAML documents.
	FormatZstd Format = 2

	// FormatLZ4 is an LZ4 frame. Fastest to produce and decode, worst
	// ratio of the three.
	FormatLZ4 Format = 3
)

// MaxDecompressedSize bounds the output of a single decompression.
// A 5 MiB share blob of highly repetitive YAML inflates well past
// 5 MiB, but nothing legitimate comes near 64 MiB.
const MaxDecompressedSize = 64 << 20

// Magic byte prefixes for each format.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// String returns the format's name as used in config files and flags.
func (format Format) String() string {
	switch format {
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", format)
	}
}

// ParseFormat parses a format name. The empty string selects gzip.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "gzip":
		return FormatGzip, nil
	case "zstd":
		return FormatZstd, nil
	case "lz4":
		return FormatLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression format: %q", name)
	}
}

// Error is returned for every compression or decompression failure:
// unknown formats, malformed or truncated input, and oversized
// output. No partial output accompanies an Error.
type Error struct {
	// Op is "compress" or "decompress".
	Op string

	// Format is the format in use, or zero when the input format
	// could not be determined.
	Format Format

	Err error
}

func (e *Error) Error() string {
	if e.Format == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnrecognizedFormat is wrapped by Error when the input does not
// start with the magic bytes of any supported format.
var ErrUnrecognizedFormat = errors.New("unrecognized compression format")

// ErrTooLarge is wrapped by Error when decompressed output exceeds
// MaxDecompressedSize.
var ErrTooLarge = errors.New("decompressed data exceeds size limit")

// DetectFormat reports the format whose magic bytes prefix the given
// data. At least four bytes are needed to distinguish every format;
// gzip is recognized from two.
func DetectFormat(prefix []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(prefix, gzipMagic):
		return FormatGzip, true
	case bytes.HasPrefix(prefix, zstdMagic):
		return FormatZstd, true
	case bytes.HasPrefix(prefix, lz4Magic):
		return FormatLZ4, true
	default:
		return 0, false
	}
}

// NewWriter returns a streaming compressor writing to w. Data may be
// written in any number of chunks; Close must be called to flush the
// trailer. Close does not close w.
func NewWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case FormatGzip:
		return gzip.NewWriter(w), nil

	case FormatZstd:
		encoder, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithZeroFrames(true),
		)
		if err != nil {
			return nil, &Error{Op: "compress", Format: format, Err: err}
		}
		return encoder, nil

	case FormatLZ4:
		// The frame header is written on the first Write. Force it so
		// that empty input still produces a recognizable frame.
		writer := lz4.NewWriter(w)
		if err := writer.Apply(lz4.ChecksumOption(true)); err != nil {
			return nil, &Error{Op: "compress", Format: format, Err: err}
		}
		if _, err := writer.Write(nil); err != nil {
			return nil, &Error{Op: "compress", Format: format, Err: err}
		}
		return writer, nil

	default:
		return nil, &Error{Op: "compress", Format: format, Err: fmt.Errorf("unsupported format %d", format)}
	}
}

// Compress compresses text into a complete blob of the given format.
func Compress(text string, format Format) ([]byte, error) {
	var buffer bytes.Buffer
	if err := CompressStream(&buffer, strings.NewReader(text), format); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// CompressStream copies r through a compressor into w without holding
// the whole input in memory.
func CompressStream(w io.Writer, r io.Reader, format Format) error {
	writer, err := NewWriter(w, format)
	if err != nil {
		return err
	}
	if _, err := io.Copy(writer, r); err != nil {
		writer.Close()
		return &Error{Op: "compress", Format: format, Err: err}
	}
	if err := writer.Close(); err != nil {
		return &Error{Op: "compress", Format: format, Err: err}
	}
	return nil
}

// NewReader sniffs the format of r and returns a streaming
// decompressor for it. Read errors from the returned reader are
// *Error values. The caller must Close the reader; Close does not
// close r.
func NewReader(r io.Reader) (io.ReadCloser, Format, error) {
	buffered := bufio.NewReader(r)
	prefix, err := buffered.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, &Error{Op: "decompress", Err: err}
	}
	format, ok := DetectFormat(prefix)
	if !ok {
		return nil, 0, &Error{Op: "decompress", Err: ErrUnrecognizedFormat}
	}

	var decompressor io.ReadCloser
	switch format {
	case FormatGzip:
		gzipReader, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, format, &Error{Op: "decompress", Format: format, Err: err}
		}
		decompressor = gzipReader

	case FormatZstd:
		decoder, err := zstd.NewReader(buffered, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, format, &Error{Op: "decompress", Format: format, Err: err}
		}
		decompressor = zstdReadCloser{decoder}

	case FormatLZ4:
		decompressor = newLZ4ReadCloser(buffered)
	}

	return &errorReader{ReadCloser: decompressor, format: format}, format, nil
}

// Decompress reads the whole compressed stream and returns the text
// it encodes. Malformed or truncated input yields an *Error and no
// text.
func Decompress(r io.Reader) (string, error) {
	reader, format, err := NewReader(r)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, MaxDecompressedSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxDecompressedSize {
		return "", &Error{Op: "decompress", Format: format, Err: ErrTooLarge}
	}
	return string(data), nil
}

// errorReader converts decompressor read failures into *Error.
type errorReader struct {
	io.ReadCloser
	format Format
}

func (r *errorReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &Error{Op: "decompress", Format: r.format, Err: err}
	}
	return n, err
}

// zstdReadCloser adapts *zstd.Decoder, whose Close has no error
// result, to io.ReadCloser.
type zstdReadCloser struct {
	decoder *zstd.Decoder
}

func (z zstdReadCloser) Read(p []byte) (int, error) { return z.decoder.Read(p) }

func (z zstdReadCloser) Close() error {
	z.decoder.Close()
	return nil
}
