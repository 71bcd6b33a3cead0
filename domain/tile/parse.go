package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedIdentifier indicates a read identifier that carries no tile position.
var ErrMalformedIdentifier = errors.New("malformed read identifier")

// Identifier is the tile position and filter flag decoded from a read name.
type Identifier struct {
	Position SequenceCoordinate
	Filtered bool
}

// ParseIdentifier decodes the tile position encoded in a read name.
//
// Two layouts are accepted:
//
//	@instrument:run:flowcell:lane:tile:x:y read:filtered:control:index
//	@instrument:lane:tile:x:y#index/read
//
// The legacy layout carries no flow cell, so the instrument name stands in for it.
func ParseIdentifier(id string) (Identifier, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(id, "@"), ">")
	comment := ""
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name, comment = name[:i], strings.TrimSpace(name[i+1:])
	}

	fields := strings.Split(name, ":")
	switch {
	case len(fields) >= 7:
		pos, err := position(fields[2], fields[3], fields[4], fields[5], fields[6])
		if err != nil {
			return Identifier{}, fmt.Errorf("%w: %q: %w", ErrMalformedIdentifier, id, err)
		}
		return Identifier{Position: pos, Filtered: filteredFlag(comment)}, nil
	case len(fields) == 5:
		y := fields[4]
		if i := strings.IndexAny(y, "#/"); i >= 0 {
			y = y[:i]
		}
		pos, err := position(fields[0], fields[1], fields[2], fields[3], y)
		if err != nil {
			return Identifier{}, fmt.Errorf("%w: %q: %w", ErrMalformedIdentifier, id, err)
		}
		return Identifier{Position: pos}, nil
	default:
		return Identifier{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, id)
	}
}

func position(flowCell, lane, tile, x, y string) (SequenceCoordinate, error) {
	if flowCell == "" {
		return SequenceCoordinate{}, errors.New("empty flow cell")
	}
	values := [4]int{}
	for i, s := range []string{lane, tile, x, y} {
		v, err := strconv.Atoi(s)
		if err != nil {
			return SequenceCoordinate{}, err
		}
		if v < 0 {
			return SequenceCoordinate{}, fmt.Errorf("negative field %d", v)
		}
		values[i] = v
	}
	return NewSequenceCoordinate(NewCoordinate(flowCell, values[0], values[1]), values[2], values[3]), nil
}

func filteredFlag(comment string) bool {
	parts := strings.Split(comment, ":")
	return len(parts) >= 2 && parts[1] == "Y"
}
