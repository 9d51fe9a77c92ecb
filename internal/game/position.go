package game

import "time"

// TicksPerSecond is the fixed simulation rate on both server and client.
const TicksPerSecond = 60

// TickDuration is the wall-clock length of one simulation step.
const TickDuration = time.Second / TicksPerSecond

// Tick counts simulation steps since game start. It is the only notion of
// time inside the simulation.
type Tick uint32

// TicksFromMS converts a millisecond duration from Settings into ticks,
// rounding to nearest and never returning zero for a non-zero input.
func TicksFromMS(ms int) Tick {
	if ms <= 0 {
		return 0
	}
	t := (ms*TicksPerSecond + 499) / 1000
	if t < 1 {
		t = 1
	}
	return Tick(t)
}

// PlayerID identifies a player within one game. IDs are assigned densely
// from zero in join order and double as the slice index into
// GameState.Players.
type PlayerID int

// Direction is one of the four axis directions a player can walk or face.
type Direction uint8

const (
	North Direction = iota
	West
	South
	East
)

// Left returns the direction rotated 90 degrees counter-clockwise.
func (d Direction) Left() Direction {
	switch d {
	case North:
		return West
	case West:
		return South
	case South:
		return East
	default:
		return North
	}
}

// Right returns the direction rotated 90 degrees clockwise.
func (d Direction) Right() Direction {
	switch d {
	case North:
		return East
	case West:
		return North
	case South:
		return West
	default:
		return South
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case West:
		return "west"
	case South:
		return "south"
	case East:
		return "east"
	}
	return "unknown"
}

// CellPosition addresses a single grid cell. Coordinates may be negative or
// exceed the field bounds; Field.At resolves those to Wall.
type CellPosition struct {
	X int
	Y int
}

// Add moves the position distance cells into direction. Negative distances
// move backwards.
func (c CellPosition) Add(d Direction, distance int) CellPosition {
	switch d {
	case North:
		return CellPosition{c.X, c.Y - distance}
	case West:
		return CellPosition{c.X - distance, c.Y}
	case South:
		return CellPosition{c.X, c.Y + distance}
	default:
		return CellPosition{c.X + distance, c.Y}
	}
}

// PositionAccuracy is the number of sub-cell steps a player position is
// tracked in per cell.
const PositionAccuracy = 100

// Position is a player's continuous location in 1/100 cell units.
type Position struct {
	X int
	Y int
}

// Add moves the position distance sub-cell units into direction.
func (p Position) Add(d Direction, distance int) Position {
	switch d {
	case North:
		return Position{p.X, p.Y - distance}
	case West:
		return Position{p.X - distance, p.Y}
	case South:
		return Position{p.X, p.Y + distance}
	default:
		return Position{p.X + distance, p.Y}
	}
}

// Cell returns the grid cell containing this position.
func (p Position) Cell() CellPosition {
	return CellPosition{p.X / PositionAccuracy, p.Y / PositionAccuracy}
}

// CenterOf returns the position at the middle of the given cell.
func CenterOf(c CellPosition) Position {
	return Position{
		X: c.X*PositionAccuracy + PositionAccuracy/2,
		Y: c.Y*PositionAccuracy + PositionAccuracy/2,
	}
}

// DistanceToBorder reports how many sub-cell units remain until the edge of
// the current cell in the given direction.
func (p Position) DistanceToBorder(d Direction) int {
	switch d {
	case North:
		return p.Y % PositionAccuracy
	case South:
		return PositionAccuracy - p.Y%PositionAccuracy
	case West:
		return p.X % PositionAccuracy
	default:
		return PositionAccuracy - p.X%PositionAccuracy
	}
}

// tickHash is the simulation's only randomness source: a tiny integer mix of
// the current tick and two coordinates. It is bit-identical on every host,
// which keeps chance-based rules (bomb walking, wood drops, teleports)
// deterministic across the whole session.
func tickHash(tick Tick, r1, r2 int) uint32 {
	x := uint32(42)
	for _, v := range [3]uint32{uint32(tick), uint32(int32(r1)), uint32(int32(r2))} {
		for i := 0; i < 4; i++ {
			x = (x + (v>>(8*i))&0xff) * 31
		}
	}
	return x
}
