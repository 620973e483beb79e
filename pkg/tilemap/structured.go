package tilemap

import "encoding/hex"

// Descriptor is a read-only projection of one tile for inspection and
// export: named header fields, grid coordinates derived from the record
// index, and trailing buffers rendered as hex strings (empty when absent).
type Descriptor struct {
	Index int
	X     int
	Y     int

	Terrain     uint32
	Feature     uint32
	Continent   uint32
	Resource    uint32
	Improvement uint32
	Appeal      int16
	River       uint8
	Cliff       uint8
	Flags       [5]uint8

	BufferA string
	BufferB string
	BufferC string
	BufferD string
}

// ToStructured decodes the entire tile table into descriptors. The blob is
// not modified.
func ToStructured(blob []byte) ([]Descriptor, error) {
	s, err := NewScanner(blob)
	if err != nil {
		return nil, err
	}

	out := make([]Descriptor, 0, s.Count())
	for s.Scan() {
		t := s.Tile()
		h := t.Header
		out = append(out, Descriptor{
			Index:       s.Index(),
			X:           s.X(),
			Y:           s.Y(),
			Terrain:     h.Terrain,
			Feature:     h.Feature,
			Continent:   h.Continent,
			Resource:    h.Resource,
			Improvement: h.Improvement,
			Appeal:      h.Appeal,
			River:       h.River,
			Cliff:       h.Cliff,
			Flags:       [5]uint8{h.Flags1, h.Flags2, h.Flags3, h.Flags4, h.Flags5},
			BufferA:     hex.EncodeToString(t.BufferA),
			BufferB:     hex.EncodeToString(t.BufferB),
			BufferC:     hex.EncodeToString(t.BufferC),
			BufferD:     hex.EncodeToString(t.BufferD),
		})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
