// Package tilemap decodes and rewrites the tile record table inside a
// decompressed Civilization VI map payload.
//
// The table holds one record per map hex in row-major order starting at the
// top-left tile. Each record is a fixed 55-byte header followed by up to
// three optional trailing buffers whose presence is declared by flag bytes
// in the header. Unknown header regions are retained verbatim so a decoded
// record re-encodes bit-for-bit.
package tilemap

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed byte size of a tile record header.
const HeaderSize = 55

// Header is the fixed leading portion of a tile record. All multi-byte
// fields are little-endian. Named fields are the ones confirmed by mutating
// saves and observing the result in-game; the rest are kept as raw bytes.
type Header struct {
	Terrain     uint32   // +0x00: terrain type hash
	Feature     uint32   // +0x04: feature hash, 0xFFFFFFFF when absent
	Continent   uint32   // +0x08: continent identifier
	Unk1        [12]byte // +0x0C: unknown
	Resource    uint32   // +0x18: resource hash
	Improvement uint32   // +0x1C: improvement hash
	Unk2        [8]byte  // +0x20: unknown
	Appeal      int16    // +0x28: tile appeal
	River       uint8    // +0x2A: river adjacency bitmap, one bit per hex edge
	Cliff       uint8    // +0x2B: cliff adjacency bitmap
	Unk3        [4]byte  // +0x2C: unknown
	Flags1      uint8    // +0x30
	Flags2      uint8    // +0x31: bit 6 gates the 17-byte trailing buffer
	Flags3      uint8    // +0x32
	Flags4      uint8    // +0x33: bits 0-1 gate the 24- and 44-byte buffers
	Flags5      uint8    // +0x34
	Unk4        [2]byte  // +0x35: unknown
}

// Trailing buffer sizes and the flag bits that declare them.
const (
	bufferASize = 24
	bufferBSize = 20
	bufferCSize = 44
	bufferDSize = 17

	// bufferAFlagOffset is the byte within buffer A whose bit 0 declares
	// buffer B.
	bufferAFlagOffset = 20

	flagBufferA = 0x01 // Header.Flags4
	flagBufferC = 0x02 // Header.Flags4
	flagBufferD = 0x40 // Header.Flags2
)

// Tile is one decoded tile record: the fixed header plus whichever trailing
// buffers its flag bytes declare. Absent buffers are nil; present ones alias
// the source blob and have the exact sizes documented above.
type Tile struct {
	Header  Header
	BufferA []byte // present when Flags4 bit 0 is set
	BufferB []byte // present when buffer A byte 20 bit 0 is set
	BufferC []byte // present when Flags4 bit 1 is set
	BufferD []byte // present when Flags2 bit 6 is set

	offset int
	length int
}

// Offset returns the record's absolute byte offset within the blob it was
// decoded from.
func (t *Tile) Offset() int {
	return t.offset
}

// Len returns the record's total byte length, header plus trailing buffers.
func (t *Tile) Len() int {
	return t.length
}

// MarshalBinary re-encodes the record: the header followed by whichever
// buffers are attached, in their on-disk order.
func (t *Tile) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, t.length))
	if err := binary.Write(buf, binary.LittleEndian, t.Header); err != nil {
		return nil, fmt.Errorf("write tile header: %w", err)
	}
	buf.Write(t.BufferA)
	buf.Write(t.BufferB)
	buf.Write(t.BufferC)
	buf.Write(t.BufferD)
	return buf.Bytes(), nil
}

// decodeTile reads one record starting at offset. Buffer slices alias blob.
func decodeTile(blob []byte, offset int) (Tile, error) {
	if offset+HeaderSize > len(blob) {
		return Tile{}, fmt.Errorf("tile header at %#x: record extends past end of data", offset)
	}

	t := Tile{offset: offset}
	r := bytes.NewReader(blob[offset : offset+HeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &t.Header); err != nil {
		return Tile{}, fmt.Errorf("read tile header at %#x: %w", offset, err)
	}

	pos := offset + HeaderSize
	grab := func(n int) ([]byte, error) {
		if pos+n > len(blob) {
			return nil, fmt.Errorf("tile buffer at %#x: record extends past end of data", pos)
		}
		b := blob[pos : pos+n]
		pos += n
		return b, nil
	}

	var err error
	if t.Header.Flags4&flagBufferA != 0 {
		if t.BufferA, err = grab(bufferASize); err != nil {
			return Tile{}, err
		}
		if t.BufferA[bufferAFlagOffset]&0x01 != 0 {
			if t.BufferB, err = grab(bufferBSize); err != nil {
				return Tile{}, err
			}
		}
	}
	if t.Header.Flags4&flagBufferC != 0 {
		if t.BufferC, err = grab(bufferCSize); err != nil {
			return Tile{}, err
		}
	}
	if t.Header.Flags2&flagBufferD != 0 {
		if t.BufferD, err = grab(bufferDSize); err != nil {
			return Tile{}, err
		}
	}

	t.length = pos - offset
	return t, nil
}
