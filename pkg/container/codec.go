package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// chunkSize is the framing interval: the game writes the compressed stream
// in 64 KiB chunks, each but the first preceded by a 4-byte length field.
const chunkSize = 64 * 1024

// lengthFieldSize is the byte size of the per-chunk length prefix.
const lengthFieldSize = 4

// Decode extracts and inflates the map payload of a save file.
//
// It is a pure function of its input: the returned blob is freshly allocated
// and the container is never modified.
func Decode(save []byte) ([]byte, error) {
	s, err := findSpan(save)
	if err != nil {
		return nil, err
	}
	return inflate(dechunk(save[s.Start:s.End]))
}

// Encode deflates blob, re-applies the chunk framing, and splices the result
// into a copy of save in place of the existing compressed span. The blob may
// have any length; everything outside the span is preserved byte-for-byte.
//
// The deflate settings are fixed, so encoding the same blob twice yields the
// same bytes. They need not match whatever settings produced the original
// span, so Encode of an unmodified blob is valid but not necessarily
// byte-identical to the input save.
func Encode(save, blob []byte) ([]byte, error) {
	s, err := findSpan(save)
	if err != nil {
		return nil, err
	}

	stream, err := deflate(blob)
	if err != nil {
		return nil, err
	}
	framed := enchunk(stream)

	out := make([]byte, 0, len(save)-s.Len()+len(framed))
	out = append(out, save[:s.Start]...)
	out = append(out, framed...)
	out = append(out, save[s.End:]...)
	return out, nil
}

// Modify decodes the map payload, applies transform, and encodes the result
// into a new save. This is the extension point for all payload edits; pass an
// identity transform to re-encode a save unchanged.
func Modify(save []byte, transform func(blob []byte) ([]byte, error)) ([]byte, error) {
	blob, err := Decode(save)
	if err != nil {
		return nil, err
	}
	blob, err = transform(blob)
	if err != nil {
		return nil, err
	}
	return Encode(save, blob)
}

// dechunk strips the interleaved length fields: 64 KiB of payload, then 4
// bytes of prefix for the next chunk, repeated. The final chunk is whatever
// remains. The length values themselves are redundant and ignored.
func dechunk(framed []byte) []byte {
	stream := make([]byte, 0, len(framed))
	for pos := 0; pos < len(framed); pos += chunkSize + lengthFieldSize {
		n := min(chunkSize, len(framed)-pos)
		stream = append(stream, framed[pos:pos+n]...)
	}
	return stream
}

// enchunk re-applies the framing Decode strips: the first chunk is written
// bare, every subsequent chunk is preceded by its own length as a little-
// endian uint32. A stream of exactly one chunk has no length fields at all.
func enchunk(stream []byte) []byte {
	if len(stream) <= chunkSize {
		return stream
	}

	framed := make([]byte, 0, len(stream)+lengthFieldSize*(len(stream)/chunkSize))
	framed = append(framed, stream[:chunkSize]...)
	for pos := chunkSize; pos < len(stream); pos += chunkSize {
		n := min(chunkSize, len(stream)-pos)
		var prefix [lengthFieldSize]byte
		binary.LittleEndian.PutUint32(prefix[:], uint32(n))
		framed = append(framed, prefix[:]...)
		framed = append(framed, stream[pos:pos+n]...)
	}
	return framed
}

// inflate decompresses a zlib stream that was sync-flushed rather than
// closed: there is no final block and no Adler-32 trailer, so the raw flate
// reader is used past the 2-byte zlib header and an unexpected EOF after the
// flush point is normal termination.
func inflate(stream []byte) ([]byte, error) {
	if len(stream) <= len(zlibStart) {
		return nil, fmt.Errorf("%w: %d byte stream", ErrMalformedStream, len(stream))
	}

	fr := flate.NewReader(bytes.NewReader(stream[len(zlibStart):]))
	defer fr.Close()

	blob, err := io.ReadAll(fr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: inflate: %v", ErrMalformedStream, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: inflate produced no data", ErrMalformedStream)
	}
	return blob, nil
}

// deflate compresses blob as a zlib stream terminated by a sync flush,
// matching the producer. Flush rather than Close: Close would append a final
// block and checksum that the framing does not carry.
func deflate(blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate init: %w", err)
	}
	if _, err := zw.Write(blob); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Flush(); err != nil {
		return nil, fmt.Errorf("deflate flush: %w", err)
	}
	return buf.Bytes(), nil
}
