// Package tile provides the physical flow cell topology: tile coordinates,
// observed tile ranges, tile numeration schemes, and the tile tree built by
// the discovery pass.
package tile

import (
	"cmp"
	"fmt"
)

// Coordinate identifies one tile of one lane of one flow cell.
// It is a comparable value and is used directly as a map key.
type Coordinate struct {
	FlowCell string `json:"flow_cell" yaml:"flow_cell"`
	Lane     int    `json:"lane" yaml:"lane"`
	Tile     int    `json:"tile" yaml:"tile"`
}

// NewCoordinate creates a Coordinate.
func NewCoordinate(flowCell string, lane, tile int) Coordinate {
	return Coordinate{FlowCell: flowCell, Lane: lane, Tile: tile}
}

// WithTile returns a copy of the coordinate pointing at another tile of the same lane.
func (c Coordinate) WithTile(tile int) Coordinate {
	c.Tile = tile
	return c
}

// String returns "flowcell:lane:tile".
func (c Coordinate) String() string {
	return fmt.Sprintf("%s:%d:%d", c.FlowCell, c.Lane, c.Tile)
}

// Compare orders coordinates by flow cell, then lane, then tile.
func (c Coordinate) Compare(other Coordinate) int {
	if r := cmp.Compare(c.FlowCell, other.FlowCell); r != 0 {
		return r
	}
	if r := cmp.Compare(c.Lane, other.Lane); r != 0 {
		return r
	}
	return cmp.Compare(c.Tile, other.Tile)
}

// SequenceCoordinate is the position a single read was imaged at.
type SequenceCoordinate struct {
	Coordinate
	X int
	Y int
}

// NewSequenceCoordinate creates a SequenceCoordinate.
func NewSequenceCoordinate(coord Coordinate, x, y int) SequenceCoordinate {
	return SequenceCoordinate{Coordinate: coord, X: x, Y: y}
}

// TileCoordinate returns the tile coordinate the read belongs to.
func (s SequenceCoordinate) TileCoordinate() Coordinate {
	return s.Coordinate
}
