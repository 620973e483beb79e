// Package container locates and re-frames the compressed map payload embedded
// in a Civilization VI save file.
//
// A .Civ6Save file is an opaque binary container. The map payload is the zlib
// stream following the last "MOD_TITLE" entry in the file: it begins at the
// next 0x78 0x9C zlib header and runs through the last deflate sync-flush
// marker (00 00 FF FF) anywhere in the file. The game interleaves the
// compressed bytes with a 4-byte little-endian length field after every
// 64 KiB; those fields are redundant for a full in-memory inflate pass and
// are stripped on decode.
package container

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrMarkerNotFound indicates a required boundary marker is absent from
	// the container.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrMalformedStream indicates the compressed span is empty, truncated,
	// or not a valid deflate stream.
	ErrMalformedStream = errors.New("malformed compressed stream")
)

var (
	// anchorMarker precedes the compressed map payload. The last occurrence
	// is the one that matters; earlier ones belong to other sections.
	anchorMarker = []byte("MOD_TITLE")

	// zlibStart is the zlib header for default compression settings.
	zlibStart = []byte{0x78, 0x9C}

	// syncFlush is the deflate sync-flush marker (empty stored block).
	syncFlush = []byte{0x00, 0x00, 0xFF, 0xFF}
)

// span is a half-open byte range [Start, End) within a container.
type span struct {
	Start int
	End   int
}

func (s span) Len() int {
	return s.End - s.Start
}

// findSpan resolves the boundaries of the framed compressed stream.
//
// The start is the first zlib header at or after the last anchor marker. The
// end is the last sync-flush marker in the entire file, not just after the
// anchor; saves observed so far never carry a later flush marker outside the
// map payload, so the two rules agree in practice.
func findSpan(save []byte) (span, error) {
	anchor := bytes.LastIndex(save, anchorMarker)
	if anchor < 0 {
		return span{}, fmt.Errorf("%w: %q", ErrMarkerNotFound, anchorMarker)
	}

	start := bytes.Index(save[anchor:], zlibStart)
	if start < 0 {
		return span{}, fmt.Errorf("%w: zlib header after anchor", ErrMarkerNotFound)
	}
	start += anchor

	end := bytes.LastIndex(save, syncFlush)
	if end < 0 {
		return span{}, fmt.Errorf("%w: sync-flush marker", ErrMarkerNotFound)
	}
	end += len(syncFlush)

	if end <= start {
		return span{}, fmt.Errorf("%w: compressed span is empty", ErrMalformedStream)
	}
	return span{Start: start, End: end}, nil
}
