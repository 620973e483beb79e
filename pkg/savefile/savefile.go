// Package savefile is the high-level surface over the container and tilemap
// codecs: whole-file modification, structured tile export, and file helpers.
package savefile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/civ6SaveTools/pkg/container"
	"github.com/goopsie/civ6SaveTools/pkg/tilemap"
)

// Extension is the save filename extension the game expects.
const Extension = ".Civ6Save"

// NormalizeName ensures a save filename carries the game's extension.
// An existing extension that matches case-insensitively is canonicalized;
// anything else is kept and the extension appended.
func NormalizeName(name string) string {
	if ext := filepath.Ext(name); strings.EqualFold(ext, Extension) {
		return name[:len(name)-len(ext)] + Extension
	}
	return name + Extension
}

// Modify decodes the embedded map payload of save, applies transform, and
// returns a new save with the result spliced in. The input is not modified.
func Modify(save []byte, transform func(blob []byte) ([]byte, error)) ([]byte, error) {
	return container.Modify(save, transform)
}

// MutateTiles rewrites every tile record of the embedded map through fn and
// returns the new save. fn follows the tilemap.Mutate contract: the
// replacement record must have the same length as the original.
func MutateTiles(save []byte, fn func(t *tilemap.Tile, raw []byte) ([]byte, error)) ([]byte, error) {
	return container.Modify(save, func(blob []byte) ([]byte, error) {
		if err := tilemap.Mutate(blob, fn); err != nil {
			return nil, err
		}
		return blob, nil
	})
}

// Tiles decodes the map payload of save and returns its structured tile
// table.
func Tiles(save []byte) ([]tilemap.Descriptor, error) {
	blob, err := container.Decode(save)
	if err != nil {
		return nil, err
	}
	return tilemap.ToStructured(blob)
}

// ReadTiles reads a save file and returns its structured tile table.
func ReadTiles(path string) ([]tilemap.Descriptor, error) {
	save, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	tiles, err := Tiles(save)
	if err != nil {
		return nil, fmt.Errorf("parse save %s: %w", filepath.Base(path), err)
	}
	return tiles, nil
}

// ModifyFile reads a save, applies transform to its map payload, and writes
// the result to outPath (normalized to the save extension). The input file
// is never touched; on any error nothing is written.
func ModifyFile(inPath, outPath string, transform func(blob []byte) ([]byte, error)) error {
	save, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read save: %w", err)
	}

	out, err := Modify(save, transform)
	if err != nil {
		return fmt.Errorf("modify save %s: %w", filepath.Base(inPath), err)
	}

	if err := os.WriteFile(NormalizeName(outPath), out, 0644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// tsvColumns is the header row of the tile export.
var tsvColumns = []string{
	"index", "x", "y",
	"terrain", "feature", "continent", "resource", "improvement",
	"appeal", "river", "cliff",
	"flags1", "flags2", "flags3", "flags4", "flags5",
	"bufferA", "bufferB", "bufferC", "bufferD",
}

// WriteTSV renders the tile table as tab-separated text, one row per tile,
// with a leading header row. Hash fields are written as decimal, bitmaps and
// flag bytes as hex.
func WriteTSV(w io.Writer, tiles []tilemap.Descriptor) error {
	if _, err := fmt.Fprintln(w, strings.Join(tsvColumns, "\t")); err != nil {
		return err
	}
	for _, t := range tiles {
		_, err := fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%02x\t%02x\t%02x\t%02x\t%02x\t%02x\t%02x\t%s\t%s\t%s\t%s\n",
			t.Index, t.X, t.Y,
			t.Terrain, t.Feature, t.Continent, t.Resource, t.Improvement,
			t.Appeal, t.River, t.Cliff,
			t.Flags[0], t.Flags[1], t.Flags[2], t.Flags[3], t.Flags[4],
			t.BufferA, t.BufferB, t.BufferC, t.BufferD)
		if err != nil {
			return err
		}
	}
	return nil
}
