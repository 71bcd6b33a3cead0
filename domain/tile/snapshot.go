package tile

// TileEntry is one tile and its observed range.
type TileEntry struct {
	Coordinate Coordinate `json:"coordinate"`
	Range      Range      `json:"range"`
}

// TreeSnapshot is the serializable form of a frozen Tree.
// Tiles are listed in coordinate order.
type TreeSnapshot struct {
	Tiles         []TileEntry `json:"tiles"`
	FirstLane     *Coordinate `json:"first_lane,omitempty"`
	MinQuality    byte        `json:"min_quality"`
	MaxReadLength int         `json:"max_read_length"`
	Records       int64       `json:"records"`
}

// Snapshot captures the tree.
func (t *Tree) Snapshot() TreeSnapshot {
	s := TreeSnapshot{
		MinQuality:    t.minQuality,
		MaxReadLength: t.maxReadLength,
		Records:       t.records,
	}
	if t.firstLane != nil {
		first := *t.firstLane
		s.FirstLane = &first
	}
	for _, c := range t.Coordinates() {
		r, _ := t.Range(c)
		s.Tiles = append(s.Tiles, TileEntry{Coordinate: c, Range: r})
	}
	return s
}

// TreeFromSnapshot rebuilds a frozen tree.
func TreeFromSnapshot(s TreeSnapshot) *Tree {
	t := NewTree()
	for _, e := range s.Tiles {
		fc, ok := t.flowCells[e.Coordinate.FlowCell]
		if !ok {
			fc = &flowCell{lanes: make(map[int]*lane)}
			t.flowCells[e.Coordinate.FlowCell] = fc
		}
		ln, ok := fc.lanes[e.Coordinate.Lane]
		if !ok {
			ln = &lane{tiles: make(map[int]Range)}
			fc.lanes[e.Coordinate.Lane] = ln
		}
		ln.tiles[e.Coordinate.Tile] = e.Range
	}
	if s.FirstLane != nil {
		first := *s.FirstLane
		t.firstLane = &first
	}
	t.minQuality = s.MinQuality
	t.maxReadLength = s.MaxReadLength
	t.records = s.Records
	t.Freeze()
	return t
}

// Equal reports whether two trees hold the same topology, ranges and statistics.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	a, b := t.Snapshot(), other.Snapshot()
	if len(a.Tiles) != len(b.Tiles) {
		return false
	}
	for i := range a.Tiles {
		if a.Tiles[i] != b.Tiles[i] {
			return false
		}
	}
	if (a.FirstLane == nil) != (b.FirstLane == nil) {
		return false
	}
	if a.FirstLane != nil && *a.FirstLane != *b.FirstLane {
		return false
	}
	return a.MinQuality == b.MinQuality && a.MaxReadLength == b.MaxReadLength && a.Records == b.Records
}
