package game

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// Action is a player's current intent: optionally walking in a direction,
// optionally placing bombs, or neither (standing). Direction is meaningful
// only while Walking is set; use the constructors so equal intents compare
// equal.
type Action struct {
	Walking   bool
	Direction Direction
	Placing   bool
}

// Idle returns the standing-still action.
func Idle() Action { return Action{} }

// Walk returns the action of walking in the given direction.
func Walk(d Direction) Action { return Action{Walking: true, Direction: d} }

// Place returns the action of standing still while placing bombs.
func Place() Action { return Action{Placing: true} }

// WalkPlace returns the action of walking while placing bombs.
func WalkPlace(d Direction) Action {
	return Action{Walking: true, Direction: d, Placing: true}
}

func (a Action) String() string {
	switch {
	case a.Walking && a.Placing:
		return "walking " + a.Direction.String() + " placing"
	case a.Walking:
		return "walking " + a.Direction.String()
	case a.Placing:
		return "placing"
	default:
		return "standing"
	}
}

// PlayerState is one player's full simulation state: identity, continuous
// position, upgrade levels and current action.
type PlayerState struct {
	Name string
	ID   PlayerID

	// Start is the re/spawn position.
	Start Position

	Position Position

	Deaths int
	Kills  int

	// Upgrade levels. Power is blast radius, Speed feeds WalkDistance,
	// Bombs is the concurrent bomb cap.
	Power int
	Speed int
	Bombs int

	// BombsPlaced counts bombs currently on the field owned by this
	// player. Incremented on placement, decremented when one explodes.
	BombsPlaced int

	Action Action
}

// GameState is the complete variable state of one game: the unit that is
// cloned for prediction rollback. It contains no maps, pointers to shared
// data, or other sources of iteration nondeterminism; Clone is a cheap flat
// copy.
type GameState struct {
	Tick     Tick
	Field    Field
	Players  []PlayerState
	Settings Settings
}

// NewGameState builds the initial state for the given players. Player IDs
// are the slice indices; start positions come from the generated field in
// scan order.
func NewGameState(settings Settings, names []string) (*GameState, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	field := NewField(settings.Width, settings.Height)
	starts := field.StartPositions()
	if len(names) > len(starts) {
		return nil, fmt.Errorf("game: %d players but field has %d start points", len(names), len(starts))
	}
	players := make([]PlayerState, len(names))
	for i, name := range names {
		start := CenterOf(starts[i])
		players[i] = PlayerState{
			Name:     name,
			ID:       PlayerID(i),
			Start:    start,
			Position: start,
			Power:    1,
			Speed:    1,
			Bombs:    1,
		}
	}
	return &GameState{Field: field, Players: players, Settings: settings}, nil
}

// Clone returns an independent deep copy.
func (g *GameState) Clone() *GameState {
	players := make([]PlayerState, len(g.Players))
	copy(players, g.Players)
	return &GameState{
		Tick:     g.Tick,
		Field:    g.Field.Clone(),
		Players:  players,
		Settings: g.Settings,
	}
}

// SetPlayerAction records the player's current action and reports whether it
// differs from the previous one. Unknown player IDs are a no-op. This is the
// sole input path into the simulation; the event log records exactly the
// calls that returned true.
func (g *GameState) SetPlayerAction(id PlayerID, action Action) bool {
	if int(id) < 0 || int(id) >= len(g.Players) {
		return false
	}
	ps := &g.Players[id]
	if ps.Action == action {
		return false
	}
	ps.Action = action
	return true
}

// Advance runs exactly one simulation tick. The phase order is fixed:
//
//  1. field update — bombs whose fuse ends now explode and propagate, fire
//     and burning wood expire,
//  2. player actions in ascending player-id order (the tie-break for
//     conflicting simultaneous actions),
//  3. the tick counter increments.
//
// Advance is pure over its receiver: identical states produce identical
// successor states on every host.
func (g *GameState) Advance() {
	g.updateField()
	for id := range g.Players {
		g.updatePlayer(PlayerID(id))
	}
	g.Tick++
}

// Checksum is an order-sensitive digest of the whole state, used to detect
// desync between server and clients.
func (g *GameState) Checksum() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	put := func(v int) {
		binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
		h.Write(buf[:])
	}
	put(int(g.Tick))
	put(g.Field.Width)
	put(g.Field.Height)
	for _, c := range g.Field.Cells {
		put(int(c.Kind))
		put(int(c.Owner))
		put(c.Power)
		put(int(c.Expire))
		put(int(c.Upgrade))
	}
	for i := range g.Players {
		p := &g.Players[i]
		h.Write([]byte(p.Name))
		put(int(p.ID))
		put(p.Start.X)
		put(p.Start.Y)
		put(p.Position.X)
		put(p.Position.Y)
		put(p.Deaths)
		put(p.Kills)
		put(p.Power)
		put(p.Speed)
		put(p.Bombs)
		put(p.BombsPlaced)
		var a int
		if p.Action.Walking {
			a = 1 + int(p.Action.Direction)
		}
		if p.Action.Placing {
			a |= 8
		}
		put(a)
	}
	return h.Sum64()
}

func (g *GameState) updatePlayer(id PlayerID) {
	action := g.Players[id].Action
	if action.Placing {
		g.placeBomb(id)
	}
	if action.Walking {
		g.walk(id)
	}
}

func (g *GameState) walk(id PlayerID) {
	ps := &g.Players[id]
	dir := ps.Action.Direction

	// Speed is cells/100/s; convert to sub-cell units per tick.
	distance := g.Settings.WalkDistance(ps.Speed) * PositionAccuracy / TicksPerSecond / 100

	ahead := ps.Position.Cell().Add(dir, 1)
	if !g.Field.At(ahead).Walkable() {
		// Stop a fifth of a cell short of the wall.
		toWall := ps.Position.DistanceToBorder(dir) - PositionAccuracy/5
		if toWall < distance {
			distance = toWall
		}
	}
	if distance > 0 {
		g.walkOnCell(id, ps.Position.Add(dir, distance))
	}
}

func (g *GameState) walkOnCell(id PlayerID, newPos Position) {
	ps := &g.Players[id]
	cellPos := newPos.Cell()
	c := g.Field.At(cellPos)

	switch c.Kind {
	case CellStartPoint, CellEmpty:
		ps.Position = newPos

	case CellBomb:
		// Stepping onto a bomb randomly succeeds or not, rolled each tick.
		if int(tickHash(g.Tick, newPos.X, newPos.Y)%100) < g.Settings.BombWalkingChance {
			ps.Position = newPos
		}

	case CellTombstone:
		if int(tickHash(g.Tick, newPos.X, newPos.Y)%100) < g.Settings.TombstoneWalkingChance {
			ps.Position = newPos
		}

	case CellFire:
		// Walking into fire counts as a kill by the fire's owner.
		g.kill(id, c.Owner)
		g.Field.Set(cellPos, Cell{Kind: CellTombstone, Owner: id})

	case CellUpgrade:
		ps.Position = newPos
		g.eat(ps, c.Upgrade)
		g.Field.Set(cellPos, Cell{Kind: CellEmpty})

	case CellTeleport:
		targets := g.teleportsExcept(cellPos)
		if len(targets) == 0 {
			// An unconnected teleport cannot be entered.
			return
		}
		to := targets[int(tickHash(g.Tick, newPos.X, newPos.Y))%len(targets)]
		ps.Position = CenterOf(to)
		// Both ends burn out after use.
		g.Field.Set(cellPos, Cell{Kind: CellEmpty})
		g.Field.Set(to, Cell{Kind: CellEmpty})

	case CellWall, CellWood, CellWoodBurning:
		// No walking through walls.
	}
}

func (g *GameState) placeBomb(id PlayerID) {
	ps := &g.Players[id]

	// Can not have more bombs on the field than the bomb upgrade level.
	if ps.BombsPlaced >= ps.Bombs {
		return
	}

	pos := ps.Position
	if ps.Action.Walking {
		// The bomb lands slightly behind a walking player.
		pos = pos.Add(ps.Action.Direction, -g.Settings.BombOffset)
	}
	cellPos := pos.Cell()
	if !g.Field.InBounds(cellPos) {
		return
	}

	c := g.Field.At(cellPos)
	// Placing onto an upgrade eats it first; the bomb's power is set after
	// eating.
	if c.Kind == CellUpgrade {
		g.eat(ps, c.Upgrade)
		c = Cell{Kind: CellEmpty}
		g.Field.Set(cellPos, c)
	}

	// Bombs go on empty cells only; anything else makes placing a no-op.
	if c.Kind != CellEmpty {
		return
	}
	ps.BombsPlaced++
	g.Field.Set(cellPos, Cell{
		Kind:   CellBomb,
		Owner:  id,
		Power:  ps.Power,
		Expire: g.Tick + g.Settings.BombFuse(),
	})
}

func (g *GameState) eat(ps *PlayerState, u Upgrade) {
	switch u {
	case UpgradeSpeed:
		ps.Speed++
	case UpgradePower:
		ps.Power++
	case UpgradeBombs:
		ps.Bombs++
	}
}

// kill resolves a player's death: upgrades are halved (never below one), the
// player respawns at its start position standing still, and the killer is
// credited unless it was a suicide. Death never halts the simulation for
// anyone.
func (g *GameState) kill(victim, killer PlayerID) {
	ps := &g.Players[victim]
	ps.Power = halved(ps.Power)
	ps.Speed = halved(ps.Speed)
	ps.Bombs = halved(ps.Bombs)
	ps.Position = ps.Start
	ps.Action = Idle()
	ps.Deaths++
	if killer != victim && int(killer) >= 0 && int(killer) < len(g.Players) {
		g.Players[killer].Kills++
	}
}

func halved(v int) int {
	if v <= 2 {
		return 1
	}
	return v / 2
}

// updateField expires timed cells in a fixed scan order: columns outer, rows
// inner. Bombs whose fuse ends this tick explode, fire clears, burned-down
// wood rolls on the drop table.
func (g *GameState) updateField() {
	for x := 0; x < g.Field.Width; x++ {
		for y := 0; y < g.Field.Height; y++ {
			pos := CellPosition{x, y}
			c := g.Field.At(pos)
			switch c.Kind {
			case CellBomb:
				if c.Expire == g.Tick {
					g.setOnFire(pos, c.Owner, true)
				}
			case CellFire:
				if c.Expire == g.Tick {
					g.Field.Set(pos, Cell{Kind: CellEmpty})
				}
			case CellWoodBurning:
				if c.Expire == g.Tick {
					g.Field.Set(pos, g.Settings.Ratios.Roll(tickHash(g.Tick, x, y)))
				}
			}
		}
	}
}

// setOnFire puts the cell at pos on fire on behalf of owner and recursively
// propagates the blast. It returns whether the blast continues past this
// cell. considerTeleport guards the teleport tunneling so a tunneled blast
// does not tunnel again.
func (g *GameState) setOnFire(pos CellPosition, owner PlayerID, considerTeleport bool) bool {
	c := g.Field.At(pos)

	explodes := false
	power := 0
	credit := owner

	switch c.Kind {
	case CellFire, CellEmpty, CellTombstone:
		explodes = true

	case CellBomb:
		// Chained bomb: it explodes now and its own owner takes the
		// credit for the secondary blast.
		g.Players[c.Owner].BombsPlaced--
		explodes = true
		power = c.Power
		credit = c.Owner

	case CellUpgrade:
		explodes = true
		power = g.Settings.UpgradeExplosionPower

	case CellTeleport:
		explodes = true
		power = g.Settings.UpgradeExplosionPower
		if considerTeleport {
			others := g.teleportsExcept(pos)
			if len(others) == 0 {
				// A lone teleport absorbs the blast.
				explodes = false
			} else {
				other := others[int(tickHash(g.Tick, pos.X, pos.Y))%len(others)]
				g.setOnFire(other, owner, false)
			}
		}

	case CellStartPoint, CellWoodBurning, CellWall:
		return false

	case CellWood:
		// Wood absorbs the blast and burns down on its own timer. It keeps
		// blocking until then, so overlapping blasts this tick all see it.
		g.Field.Set(pos, Cell{Kind: CellWoodBurning, Expire: g.Tick + g.Settings.WoodBurnTime()})
		return false
	}

	if !explodes {
		return false
	}

	g.Field.Set(pos, Cell{Kind: CellFire, Owner: credit, Expire: g.Tick + g.Settings.FireBurnTime()})

	// Anyone standing on the cell dies.
	for i := range g.Players {
		if g.Players[i].Position.Cell() == pos {
			id := g.Players[i].ID
			g.kill(id, credit)
			g.Field.Set(pos, Cell{Kind: CellTombstone, Owner: id})
		}
	}

	if power > 0 {
		for _, d := range [4]Direction{West, East, South, North} {
			for i := 1; i <= power; i++ {
				next := pos.Add(d, i)
				if !g.Field.InBounds(next) {
					break
				}
				if !g.setOnFire(next, credit, true) {
					break
				}
			}
		}
	}
	return true
}

// teleportsExcept lists all teleport cells other than pos in scan order.
func (g *GameState) teleportsExcept(pos CellPosition) []CellPosition {
	var targets []CellPosition
	for x := 0; x < g.Field.Width; x++ {
		for y := 0; y < g.Field.Height; y++ {
			p := CellPosition{x, y}
			if p != pos && g.Field.At(p).Kind == CellTeleport {
				targets = append(targets, p)
			}
		}
	}
	return targets
}
