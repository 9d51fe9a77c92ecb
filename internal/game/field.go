package game

import (
	"fmt"
	"strings"
)

// Upgrade is a powerup kind a cell can hold and a player can eat.
type Upgrade uint8

const (
	UpgradeSpeed Upgrade = iota
	UpgradePower
	UpgradeBombs
)

func (u Upgrade) String() string {
	switch u {
	case UpgradeSpeed:
		return "speed"
	case UpgradePower:
		return "power"
	case UpgradeBombs:
		return "bombs"
	}
	return "unknown"
}

// CellKind is the terrain/occupancy variant of a cell. A cell is in exactly
// one kind at any instant; bomb and powerup payloads live in the variant
// fields of Cell.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellBomb
	CellFire
	CellTombstone
	CellUpgrade
	CellTeleport
	CellStartPoint
	CellWall
	CellWood
	CellWoodBurning
)

// Cell is one grid square. Owner, Power, Expire and Upgrade are only
// meaningful for the kinds that carry them.
type Cell struct {
	Kind    CellKind
	Owner   PlayerID // bomb, fire, tombstone
	Power   int      // bomb
	Expire  Tick     // bomb, fire, burning wood
	Upgrade Upgrade  // upgrade
}

// Walkable reports whether a player may enter the cell at all. Bombs and
// tombstones are conditionally walkable; the chance roll happens in the
// walking rules, not here.
func (c Cell) Walkable() bool {
	switch c.Kind {
	case CellWall, CellWood, CellWoodBurning:
		return false
	default:
		return true
	}
}

// Rune returns the single-character encoding used by the string-grid
// fixtures.
func (c Cell) Rune() rune {
	switch c.Kind {
	case CellEmpty:
		return '_'
	case CellBomb:
		return 'B'
	case CellFire:
		return 'F'
	case CellTombstone:
		return 'D'
	case CellUpgrade:
		switch c.Upgrade {
		case UpgradeSpeed:
			return 's'
		case UpgradePower:
			return 'p'
		default:
			return 'b'
		}
	case CellTeleport:
		return 'T'
	case CellStartPoint:
		return 'O'
	case CellWall:
		return '#'
	case CellWood:
		return '+'
	default:
		return 'W'
	}
}

func cellFromRune(r rune) (Cell, error) {
	// Timed cells parsed from fixtures expire on the next field update.
	switch r {
	case '_':
		return Cell{Kind: CellEmpty}, nil
	case 'B':
		return Cell{Kind: CellBomb, Power: 3}, nil
	case 'F':
		return Cell{Kind: CellFire}, nil
	case 'D':
		return Cell{Kind: CellTombstone}, nil
	case 's':
		return Cell{Kind: CellUpgrade, Upgrade: UpgradeSpeed}, nil
	case 'p':
		return Cell{Kind: CellUpgrade, Upgrade: UpgradePower}, nil
	case 'b':
		return Cell{Kind: CellUpgrade, Upgrade: UpgradeBombs}, nil
	case 'T':
		return Cell{Kind: CellTeleport}, nil
	case 'O':
		return Cell{Kind: CellStartPoint}, nil
	case '#':
		return Cell{Kind: CellWall}, nil
	case '+':
		return Cell{Kind: CellWood}, nil
	case 'W':
		return Cell{Kind: CellWoodBurning}, nil
	}
	return Cell{}, fmt.Errorf("invalid cell character %q", r)
}

// Field is the 2-D grid of cells. Cells are stored row-major; reads outside
// the bounds resolve to Wall so walking and explosion code never needs a
// border check.
type Field struct {
	Width  int
	Height int
	Cells  []Cell
}

var wall = Cell{Kind: CellWall}

// NewField generates the standard mirrored layout: start points in the
// corners, empty cells next to them, indestructible walls on odd/odd
// coordinates and wood everywhere else.
func NewField(width, height int) Field {
	cells := make([]Cell, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			mx, my := x, y
			if mx >= width/2 {
				mx = width - mx - 1
			}
			if my >= height/2 {
				my = height - my - 1
			}
			switch {
			case mx == 0 && my == 0:
				cells = append(cells, Cell{Kind: CellStartPoint})
			case mx+my == 1:
				cells = append(cells, Cell{Kind: CellEmpty})
			case mx%2 == 1 && my%2 == 1:
				cells = append(cells, Cell{Kind: CellWall})
			default:
				cells = append(cells, Cell{Kind: CellWood})
			}
		}
	}
	return Field{Width: width, Height: height, Cells: cells}
}

// InBounds reports whether the cell lies inside the field.
func (f *Field) InBounds(c CellPosition) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < f.Width && c.Y < f.Height
}

// At returns the cell at the position, or Wall if the position is outside
// the field.
func (f *Field) At(c CellPosition) Cell {
	if !f.InBounds(c) {
		return wall
	}
	return f.Cells[c.Y*f.Width+c.X]
}

// Set overwrites the cell at the position. Writes outside the field are
// ignored; callers bound their coordinates before mutating.
func (f *Field) Set(c CellPosition, cell Cell) {
	if !f.InBounds(c) {
		return
	}
	f.Cells[c.Y*f.Width+c.X] = cell
}

// Clone returns an independent copy of the field.
func (f *Field) Clone() Field {
	cells := make([]Cell, len(f.Cells))
	copy(cells, f.Cells)
	return Field{Width: f.Width, Height: f.Height, Cells: cells}
}

// StartPositions lists the start point cells in scan order.
func (f *Field) StartPositions() []CellPosition {
	var starts []CellPosition
	for x := 0; x < f.Width; x++ {
		for y := 0; y < f.Height; y++ {
			if f.At(CellPosition{x, y}).Kind == CellStartPoint {
				starts = append(starts, CellPosition{x, y})
			}
		}
	}
	return starts
}

// ExplosionArea returns the cells an explosion of the given power at origin
// would cover, in propagation order (origin first, then each axis direction
// outward), stopping per direction at the first cell that absorbs the blast.
// It is a read-only query; actual explosions run through the simulation so
// chained bombs and drops take effect.
func (f *Field) ExplosionArea(origin CellPosition, power int) []CellPosition {
	area := []CellPosition{origin}
	for _, d := range [4]Direction{West, East, South, North} {
		for i := 1; i <= power; i++ {
			pos := origin.Add(d, i)
			if !f.InBounds(pos) {
				break
			}
			area = append(area, pos)
			if blocksBlast(f.At(pos)) {
				break
			}
		}
	}
	return area
}

// blocksBlast reports whether the cell absorbs an explosion instead of
// letting it pass through.
func blocksBlast(c Cell) bool {
	switch c.Kind {
	case CellWall, CellWood, CellWoodBurning, CellStartPoint:
		return true
	default:
		return false
	}
}

// StringGrid renders the field as one character per cell, rows separated by
// newlines. The inverse of ParseField.
func (f *Field) StringGrid() string {
	var b strings.Builder
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			b.WriteRune(f.At(CellPosition{x, y}).Rune())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseField builds a field from a string grid. Leading/trailing whitespace
// per line is trimmed, empty lines are skipped, all rows must have equal
// length.
func ParseField(grid string) (Field, error) {
	var rows []string
	for _, line := range strings.Split(grid, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	if len(rows) == 0 {
		return Field{}, fmt.Errorf("field grid has no rows")
	}
	width := len(rows[0])
	cells := make([]Cell, 0, width*len(rows))
	for y, row := range rows {
		if len(row) != width {
			return Field{}, fmt.Errorf("field grid row %d has length %d, want %d", y, len(row), width)
		}
		for x, r := range row {
			cell, err := cellFromRune(r)
			if err != nil {
				return Field{}, fmt.Errorf("cell %d/%d: %w", x, y, err)
			}
			cells = append(cells, cell)
		}
	}
	return Field{Width: width, Height: len(rows), Cells: cells}, nil
}
