// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"
)

const (
	lz4FrameMagic     = 0x184D2204
	lz4SkippableMagic = 0x184D2A50 // low nibble varies
	lz4SkippableMask  = 0xFFFFFFF0

	lz4FlagDictID          = 1 << 0
	lz4FlagContentChecksum = 1 << 2
	lz4FlagContentSize     = 1 << 3
	lz4FlagBlockChecksum   = 1 << 4

	lz4BlockSizeMask = 0x7FFFFFFF
)

type frameState uint8

const (
	stateMagic frameState = iota
	stateDescriptor
	stateSkippableSize
	stateBlockSize
	stateSkip
	stateDone
)

var errBadLZ4Magic = errors.New("lz4: bad frame magic")

// frameTracker walks the LZ4 frame structure of the bytes read
// through it. It never changes the data.
type frameTracker struct {
	source io.Reader

	state frameState
	// header collects the fixed-size field being read.
	header [8]byte
	have   int
	need   int
	// skip counts bytes still to pass over in stateSkip before
	// moving to afterSkip.
	skip      int64
	afterSkip frameState

	flags byte
	err   error
}

func newFrameTracker(source io.Reader) *frameTracker {
	return &frameTracker{source: source, state: stateMagic, need: 4}
}

func (f *frameTracker) Read(p []byte) (int, error) {
	n, err := f.source.Read(p)
	f.scan(p[:n])
	return n, err
}

// complete reports whether the bytes seen so far end on a frame
// boundary.
func (f *frameTracker) complete() bool {
	return f.err == nil && f.state == stateDone
}

func (f *frameTracker) scan(data []byte) {
	for len(data) > 0 && f.err == nil {
		switch f.state {
		case stateDone:
			f.state, f.have, f.need = stateMagic, 0, 4

		case stateSkip:
			step := int64(len(data))
			if step > f.skip {
				step = f.skip
			}
			f.skip -= step
			data = data[step:]
			if f.skip == 0 {
				f.enter(f.afterSkip)
			}

		default:
			copied := copy(f.header[f.have:f.need], data)
			f.have += copied
			data = data[copied:]
			if f.have == f.need {
				f.field()
			}
		}
	}
}

// enter starts the given state, reading its fixed-size field from the
// beginning.
func (f *frameTracker) enter(state frameState) {
	f.state, f.have = state, 0
	switch state {
	case stateMagic, stateSkippableSize, stateBlockSize:
		f.need = 4
	case stateDescriptor:
		f.need = 2
	}
}

func (f *frameTracker) skipThen(count int64, next frameState) {
	if count == 0 {
		f.enter(next)
		return
	}
	f.state, f.skip, f.afterSkip = stateSkip, count, next
}

// field handles a fully read fixed-size field.
func (f *frameTracker) field() {
	switch f.state {
	case stateMagic:
		magic := binary.LittleEndian.Uint32(f.header[:4])
		switch {
		case magic == lz4FrameMagic:
			f.enter(stateDescriptor)
		case magic&lz4SkippableMask == lz4SkippableMagic:
			f.enter(stateSkippableSize)
		default:
			f.err = errBadLZ4Magic
		}

	case stateDescriptor:
		f.flags = f.header[0]
		// Header checksum byte plus the optional fields.
		rest := int64(1)
		if f.flags&lz4FlagContentSize != 0 {
			rest += 8
		}
		if f.flags&lz4FlagDictID != 0 {
			rest += 4
		}
		f.skipThen(rest, stateBlockSize)

	case stateSkippableSize:
		f.skipThen(int64(binary.LittleEndian.Uint32(f.header[:4])), stateDone)

	case stateBlockSize:
		size := int64(binary.LittleEndian.Uint32(f.header[:4]) & lz4BlockSizeMask)
		if size == 0 {
			var checksum int64
			if f.flags&lz4FlagContentChecksum != 0 {
				checksum = 4
			}
			f.skipThen(checksum, stateDone)
			return
		}
		if f.flags&lz4FlagBlockChecksum != 0 {
			size += 4
		}
		f.skipThen(size, stateBlockSize)
	}
}

// lz4ReadCloser decodes LZ4 frames and fails with io.ErrUnexpectedEOF
// when the input stops inside a frame. lz4.Reader alone reports a
// clean io.EOF when the source ends between header fields or before
// the end mark.
type lz4ReadCloser struct {
	reader  *lz4.Reader
	tracker *frameTracker
}

func newLZ4ReadCloser(source io.Reader) *lz4ReadCloser {
	tracker := newFrameTracker(source)
	reader := lz4.NewReader(tracker)
	// The tracker is not safe for concurrent use; block reads must stay
	// on the caller's goroutine.
	_ = reader.Apply(lz4.ConcurrencyOption(1))
	return &lz4ReadCloser{reader: reader, tracker: tracker}
}

func (l *lz4ReadCloser) Read(p []byte) (int, error) {
	n, err := l.reader.Read(p)
	if errors.Is(err, io.EOF) && !l.tracker.complete() {
		if l.tracker.err != nil {
			return n, l.tracker.err
		}
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func (l *lz4ReadCloser) Close() error { return nil }
