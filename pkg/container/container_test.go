package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

// template returns a minimal save carrying valid boundary markers around a
// placeholder span, including decoy markers earlier in the file that the
// boundary resolution must skip over.
func template() []byte {
	var b bytes.Buffer
	b.WriteString("CIV6 LEADING SECTIONS ")
	b.WriteString("MOD_TITLE")    // decoy anchor
	b.Write([]byte{0x78, 0x9C})   // decoy zlib header
	b.WriteString(" MORE JUNK ")
	b.WriteString("MOD_TITLE") // real anchor: last occurrence
	b.Write([]byte{0x01, 0x00})
	b.Write([]byte{0x78, 0x9C})
	b.WriteString("placeholder")
	b.Write([]byte{0x00, 0x00, 0xFF, 0xFF})
	b.WriteString("TRAILING SECTIONS")
	return b.Bytes()
}

func buildSave(t testing.TB, blob []byte) []byte {
	t.Helper()
	save, err := Encode(template(), blob)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return save
}

func randomBlob(n int) []byte {
	blob := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(blob)
	return blob
}

func TestRoundTrip(t *testing.T) {
	t.Run("Small", func(t *testing.T) {
		blob := []byte("the quick brown fox jumps over the lazy dog")
		decoded, err := Decode(buildSave(t, blob))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(decoded, blob) {
			t.Errorf("blob mismatch: got %d bytes, want %d", len(decoded), len(blob))
		}
	})

	t.Run("MultiChunk", func(t *testing.T) {
		// Incompressible data forces the deflated stream well past one
		// 64 KiB chunk.
		blob := randomBlob(200_000)
		decoded, err := Decode(buildSave(t, blob))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(decoded, blob) {
			t.Error("blob mismatch after multi-chunk round trip")
		}
	})

	t.Run("OutsideSpanPreserved", func(t *testing.T) {
		save := buildSave(t, []byte("payload"))
		if !bytes.HasPrefix(save, []byte("CIV6 LEADING SECTIONS ")) {
			t.Error("leading bytes not preserved")
		}
		if !bytes.HasSuffix(save, []byte("TRAILING SECTIONS")) {
			t.Error("trailing bytes not preserved")
		}
	})
}

func TestEncodeDeterminism(t *testing.T) {
	blob := randomBlob(10_000)
	a, err := Encode(template(), blob)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode(template(), blob)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding the same blob twice produced different bytes")
	}
}

func TestModify(t *testing.T) {
	identity := func(blob []byte) ([]byte, error) { return blob, nil }

	t.Run("Identity", func(t *testing.T) {
		blob := []byte("unchanging payload")
		save := buildSave(t, blob)

		once, err := Modify(save, identity)
		if err != nil {
			t.Fatalf("modify: %v", err)
		}
		twice, err := Modify(once, identity)
		if err != nil {
			t.Fatalf("modify again: %v", err)
		}

		for i, s := range [][]byte{once, twice} {
			decoded, err := Decode(s)
			if err != nil {
				t.Fatalf("decode pass %d: %v", i, err)
			}
			if !bytes.Equal(decoded, blob) {
				t.Errorf("pass %d: payload changed", i)
			}
		}
	})

	t.Run("Transform", func(t *testing.T) {
		save := buildSave(t, []byte("aaaa"))
		out, err := Modify(save, func(blob []byte) ([]byte, error) {
			return bytes.Repeat([]byte("b"), 99), nil
		})
		if err != nil {
			t.Fatalf("modify: %v", err)
		}
		decoded, err := Decode(out)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(decoded, bytes.Repeat([]byte("b"), 99)) {
			t.Error("transformed payload not round-tripped")
		}
	})

	t.Run("TransformError", func(t *testing.T) {
		save := buildSave(t, []byte("aaaa"))
		wantErr := errors.New("boom")
		if _, err := Modify(save, func([]byte) ([]byte, error) { return nil, wantErr }); !errors.Is(err, wantErr) {
			t.Errorf("transform error not propagated: %v", err)
		}
	})
}

func TestChunkFraming(t *testing.T) {
	t.Run("ShortStream", func(t *testing.T) {
		stream := []byte("short")
		framed := enchunk(stream)
		if !bytes.Equal(framed, stream) {
			t.Error("short stream should be a single bare chunk")
		}
		if !bytes.Equal(dechunk(framed), stream) {
			t.Error("dechunk mismatch")
		}
	})

	t.Run("ExactChunk", func(t *testing.T) {
		stream := randomBlob(chunkSize)
		framed := enchunk(stream)
		if len(framed) != chunkSize {
			t.Errorf("exact 64 KiB stream must stay unprefixed: got %d bytes", len(framed))
		}
		if !bytes.Equal(dechunk(framed), stream) {
			t.Error("dechunk mismatch")
		}
	})

	t.Run("ChunkPlusTen", func(t *testing.T) {
		stream := randomBlob(chunkSize + 10)
		framed := enchunk(stream)
		if len(framed) != chunkSize+lengthFieldSize+10 {
			t.Fatalf("framed length: got %d, want %d", len(framed), chunkSize+lengthFieldSize+10)
		}
		if got := binary.LittleEndian.Uint32(framed[chunkSize:]); got != 10 {
			t.Errorf("length prefix: got %d, want 10", got)
		}
		if !bytes.Equal(dechunk(framed), stream) {
			t.Error("dechunk mismatch")
		}
	})

	t.Run("ThreeChunks", func(t *testing.T) {
		stream := randomBlob(2*chunkSize + 5)
		framed := enchunk(stream)
		if len(framed) != len(stream)+2*lengthFieldSize {
			t.Fatalf("framed length: got %d, want %d", len(framed), len(stream)+2*lengthFieldSize)
		}
		if got := binary.LittleEndian.Uint32(framed[chunkSize:]); got != chunkSize {
			t.Errorf("first prefix: got %d, want %d", got, chunkSize)
		}
		if got := binary.LittleEndian.Uint32(framed[2*chunkSize+lengthFieldSize:]); got != 5 {
			t.Errorf("second prefix: got %d, want 5", got)
		}
		if !bytes.Equal(dechunk(framed), stream) {
			t.Error("dechunk mismatch")
		}
	})
}

func TestDecodeErrors(t *testing.T) {
	t.Run("NoAnchor", func(t *testing.T) {
		save := append([]byte("no anchor here "), 0x78, 0x9C, 0x00, 0x00, 0xFF, 0xFF)
		if _, err := Decode(save); !errors.Is(err, ErrMarkerNotFound) {
			t.Errorf("got %v, want ErrMarkerNotFound", err)
		}
	})

	t.Run("NoZlibHeader", func(t *testing.T) {
		save := []byte{0x00, 0x00, 0xFF, 0xFF}
		save = append(save, []byte("MOD_TITLE no stream follows")...)
		if _, err := Decode(save); !errors.Is(err, ErrMarkerNotFound) {
			t.Errorf("got %v, want ErrMarkerNotFound", err)
		}
	})

	t.Run("NoSyncFlush", func(t *testing.T) {
		save := append([]byte("MOD_TITLE"), 0x78, 0x9C, 0x01, 0x02, 0x03)
		if _, err := Decode(save); !errors.Is(err, ErrMarkerNotFound) {
			t.Errorf("got %v, want ErrMarkerNotFound", err)
		}
	})

	t.Run("EmptySpan", func(t *testing.T) {
		// The only sync-flush marker sits before the stream start.
		save := []byte{0x00, 0x00, 0xFF, 0xFF}
		save = append(save, []byte("MOD_TITLE")...)
		save = append(save, 0x78, 0x9C)
		if _, err := Decode(save); !errors.Is(err, ErrMalformedStream) {
			t.Errorf("got %v, want ErrMalformedStream", err)
		}
	})

	t.Run("CorruptStream", func(t *testing.T) {
		save := append([]byte("MOD_TITLE"), 0x78, 0x9C)
		save = append(save, bytes.Repeat([]byte{0xFF}, 32)...)
		save = append(save, 0x00, 0x00, 0xFF, 0xFF)
		if _, err := Decode(save); !errors.Is(err, ErrMalformedStream) {
			t.Errorf("got %v, want ErrMalformedStream", err)
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		// A span holding nothing but the flush marker inflates to zero
		// bytes, which is not a usable payload.
		save := append([]byte("MOD_TITLE"), 0x78, 0x9C, 0x00, 0x00, 0xFF, 0xFF)
		if _, err := Decode(save); !errors.Is(err, ErrMalformedStream) {
			t.Errorf("got %v, want ErrMalformedStream", err)
		}
	})
}
