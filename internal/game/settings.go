package game

import "fmt"

// Ratios are the relative odds of what burned-down wood turns into.
type Ratios struct {
	Power    int `yaml:"power"`
	Speed    int `yaml:"speed"`
	Bombs    int `yaml:"bombs"`
	Teleport int `yaml:"teleport"`
	Wall     int `yaml:"wall"`
	Wood     int `yaml:"wood"`
	Clear    int `yaml:"clear"`
}

// DefaultRatios returns the stock drop table.
func DefaultRatios() Ratios {
	return Ratios{
		Power:    8,
		Speed:    9,
		Bombs:    7,
		Teleport: 2,
		Wall:     0,
		Wood:     1,
		Clear:    20,
	}
}

// Sum returns the total weight of the table.
func (r Ratios) Sum() int {
	return r.Power + r.Speed + r.Bombs + r.Teleport + r.Wall + r.Wood + r.Clear
}

// Roll maps a hash value onto the weighted table and returns the cell that
// the burned wood becomes.
func (r Ratios) Roll(random uint32) Cell {
	n := int(random % uint32(r.Sum()))

	if n < r.Power {
		return Cell{Kind: CellUpgrade, Upgrade: UpgradePower}
	}
	n -= r.Power
	if n < r.Speed {
		return Cell{Kind: CellUpgrade, Upgrade: UpgradeSpeed}
	}
	n -= r.Speed
	if n < r.Bombs {
		return Cell{Kind: CellUpgrade, Upgrade: UpgradeBombs}
	}
	n -= r.Bombs
	if n < r.Teleport {
		return Cell{Kind: CellTeleport}
	}
	n -= r.Teleport
	if n < r.Wood {
		return Cell{Kind: CellWood}
	}
	n -= r.Wood
	if n < r.Wall {
		return Cell{Kind: CellWall}
	}
	return Cell{Kind: CellEmpty}
}

// Settings is the immutable per-game configuration. The host fixes it when
// the game starts; it is never mutated mid-game.
type Settings struct {
	// GameName labels the lobby in server listings.
	GameName string `yaml:"game_name"`

	// Width and Height are the field dimensions in cells.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Players is the number of players the field is generated for.
	Players int `yaml:"players"`

	// BombFuseMS is the time between placing a bomb and its explosion.
	BombFuseMS int `yaml:"bomb_fuse_ms"`

	// SpeedBase is the walking speed in cells/100/s before upgrades.
	SpeedBase int `yaml:"speed_base"`

	// SpeedMultiplier is the speed gain per speed upgrade in cells/100/s.
	SpeedMultiplier int `yaml:"speed_multiplier"`

	// BombWalkingChance is the per-tick percentage that stepping onto a
	// bomb cell succeeds.
	BombWalkingChance int `yaml:"bomb_walking_chance"`

	// TombstoneWalkingChance is the per-tick percentage that stepping onto
	// a tombstone succeeds.
	TombstoneWalkingChance int `yaml:"tombstone_walking_chance"`

	// UpgradeExplosionPower is the blast power of an exploding upgrade or
	// teleport cell.
	UpgradeExplosionPower int `yaml:"upgrade_explosion_power"`

	// WoodBurnMS is how long wood burns before it turns into a drop.
	WoodBurnMS int `yaml:"wood_burn_ms"`

	// FireBurnMS is how long fire stays on a cell.
	FireBurnMS int `yaml:"fire_burn_ms"`

	// BombOffset is how far behind a walking player the bomb lands, in
	// 1/100 cells.
	BombOffset int `yaml:"bomb_offset"`

	// Ratios is the wood drop table.
	Ratios Ratios `yaml:"ratios"`
}

// DefaultSettings returns the stock game configuration.
func DefaultSettings() Settings {
	return Settings{
		GameName:               "A Game of Bomberhans",
		Width:                  17,
		Height:                 13,
		Players:                4,
		BombFuseMS:             4267,
		SpeedBase:              100,
		SpeedMultiplier:        50,
		BombWalkingChance:      80,
		TombstoneWalkingChance: 40,
		UpgradeExplosionPower:  1,
		WoodBurnMS:             1200,
		FireBurnMS:             400,
		BombOffset:             49,
		Ratios:                 DefaultRatios(),
	}
}

// Validate checks every tunable against its legal range.
func (s Settings) Validate() error {
	checks := []struct {
		name     string
		val      int
		min, max int
	}{
		{"width", s.Width, 5, 25},
		{"height", s.Height, 5, 25},
		{"players", s.Players, 1, 4},
		{"bomb_fuse_ms", s.BombFuseMS, 100, 10_000},
		{"speed_base", s.SpeedBase, 10, 500},
		{"speed_multiplier", s.SpeedMultiplier, 0, 200},
		{"bomb_walking_chance", s.BombWalkingChance, 0, 100},
		{"tombstone_walking_chance", s.TombstoneWalkingChance, 0, 100},
		{"upgrade_explosion_power", s.UpgradeExplosionPower, 0, 15},
		{"wood_burn_ms", s.WoodBurnMS, 0, 10_000},
		{"fire_burn_ms", s.FireBurnMS, 0, 10_000},
		{"bomb_offset", s.BombOffset, 0, 100},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return fmt.Errorf("settings: %s %d outside [%d, %d]", c.name, c.val, c.min, c.max)
		}
	}
	if s.Ratios.Sum() <= 0 {
		return fmt.Errorf("settings: ratios sum to %d, need > 0", s.Ratios.Sum())
	}
	return nil
}

// WalkDistance returns the walking speed of a player with the given speed
// upgrade level, in cells/100/s.
func (s Settings) WalkDistance(speedLevel int) int {
	return s.SpeedBase + speedLevel*s.SpeedMultiplier
}

// BombFuse returns the bomb fuse in ticks.
func (s Settings) BombFuse() Tick { return TicksFromMS(s.BombFuseMS) }

// WoodBurnTime returns the wood burn duration in ticks.
func (s Settings) WoodBurnTime() Tick { return TicksFromMS(s.WoodBurnMS) }

// FireBurnTime returns the fire duration in ticks.
func (s Settings) FireBurnTime() Tick { return TicksFromMS(s.FireBurnMS) }
