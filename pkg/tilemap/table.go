package tilemap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrMarkerNotFound indicates the blob contains no tile table marker.
	ErrMarkerNotFound = errors.New("tile table marker not found")

	// ErrUnsupportedMapSize indicates the tile count is not one of the
	// known map sizes, so no grid geometry can be derived.
	ErrUnsupportedMapSize = errors.New("unsupported map size")

	// ErrRecordLengthMismatch indicates a mutator returned a record of a
	// different length than its input. Records cannot grow or shrink in
	// place.
	ErrRecordLengthMismatch = errors.New("record length mismatch")
)

// tableMarker precedes the tile table: the three little-endian 32-bit words
// 14, 15, 6. The 32-bit tile count follows immediately after.
var tableMarker = []byte{
	0x0E, 0x00, 0x00, 0x00,
	0x0F, 0x00, 0x00, 0x00,
	0x06, 0x00, 0x00, 0x00,
}

const (
	countOffset = 12 // tile count, relative to the marker
	bodyOffset  = 16 // first record, relative to the marker
)

// MapSize is the grid geometry for a map.
type MapSize struct {
	Name   string
	Width  int
	Height int
}

// mapSizes keys grid geometry by total tile count. These are the six stock
// map sizes; modded maps with other dimensions are not recognized.
var mapSizes = map[uint32]MapSize{
	1144: {Name: "Duel", Width: 44, Height: 26},
	2280: {Name: "Tiny", Width: 60, Height: 38},
	3404: {Name: "Small", Width: 74, Height: 46},
	4536: {Name: "Standard", Width: 84, Height: 54},
	5760: {Name: "Large", Width: 96, Height: 60},
	6996: {Name: "Huge", Width: 106, Height: 66},
}

// SizeFor returns the grid geometry for a tile count.
func SizeFor(count uint32) (MapSize, error) {
	size, ok := mapSizes[count]
	if !ok {
		return MapSize{}, fmt.Errorf("%w: %d tiles", ErrUnsupportedMapSize, count)
	}
	return size, nil
}

// Locate finds the tile table within the blob and returns the absolute byte
// offset of its first record and the tile count.
func Locate(blob []byte) (offset int, count uint32, err error) {
	i := bytes.Index(blob, tableMarker)
	if i < 0 {
		return 0, 0, ErrMarkerNotFound
	}
	if i+bodyOffset > len(blob) {
		return 0, 0, fmt.Errorf("tile count at %#x: extends past end of data", i+countOffset)
	}
	count = binary.LittleEndian.Uint32(blob[i+countOffset:])
	return i + bodyOffset, count, nil
}

// Scanner iterates the tile table in record order: a single forward pass,
// one decode per tile, no state retained between tiles. Create a fresh
// Scanner to iterate again.
type Scanner struct {
	blob  []byte
	size  MapSize
	count uint32
	pos   int
	index int
	tile  Tile
	err   error
}

// NewScanner locates the tile table in blob and prepares an iteration over
// its records.
func NewScanner(blob []byte) (*Scanner, error) {
	offset, count, err := Locate(blob)
	if err != nil {
		return nil, err
	}
	size, err := SizeFor(count)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		blob:  blob,
		size:  size,
		count: count,
		pos:   offset,
		index: -1,
	}, nil
}

// Scan advances to the next tile record. It returns false when all records
// have been produced or decoding fails; check Err afterwards.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.index+1 >= int(s.count) {
		return false
	}
	t, err := decodeTile(s.blob, s.pos)
	if err != nil {
		s.err = fmt.Errorf("tile %d: %w", s.index+1, err)
		return false
	}
	s.index++
	s.pos += t.length
	s.tile = t
	return true
}

// Tile returns the current record. Valid until the next call to Scan.
func (s *Scanner) Tile() *Tile {
	return &s.tile
}

// Index returns the current record's position in the table, starting at 0.
func (s *Scanner) Index() int {
	return s.index
}

// X returns the current tile's column on the map grid.
func (s *Scanner) X() int {
	return s.index % s.size.Width
}

// Y returns the current tile's row on the map grid, counted from the top.
func (s *Scanner) Y() int {
	return s.index / s.size.Width
}

// Err returns the first decode error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Count returns the total number of tiles in the table.
func (s *Scanner) Count() int {
	return int(s.count)
}

// Size returns the map's grid geometry.
func (s *Scanner) Size() MapSize {
	return s.size
}

// DecodeAll decodes the entire tile table into a slice.
func DecodeAll(blob []byte) ([]Tile, error) {
	s, err := NewScanner(blob)
	if err != nil {
		return nil, err
	}
	tiles := make([]Tile, 0, s.Count())
	for s.Scan() {
		tiles = append(tiles, *s.Tile())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return tiles, nil
}

// Mutate applies fn to every tile record in table order and writes the
// result back into blob at the record's original offset. raw is the record's
// current bytes; the returned replacement must be exactly the same length,
// otherwise Mutate fails with ErrRecordLengthMismatch and blob is left
// partially rewritten.
//
// Record boundaries are computed from the flag bytes before fn runs. A
// replacement that changes which trailing buffers the flags declare will
// desynchronize every following record offset; Mutate does not detect that.
func Mutate(blob []byte, fn func(t *Tile, raw []byte) ([]byte, error)) error {
	s, err := NewScanner(blob)
	if err != nil {
		return err
	}
	for s.Scan() {
		t := s.Tile()
		raw := blob[t.offset : t.offset+t.length]
		repl, err := fn(t, raw)
		if err != nil {
			return fmt.Errorf("tile %d: %w", s.Index(), err)
		}
		if len(repl) != len(raw) {
			return fmt.Errorf("tile %d: %w: got %d bytes, want %d",
				s.Index(), ErrRecordLengthMismatch, len(repl), len(raw))
		}
		copy(raw, repl)
	}
	return s.Err()
}
