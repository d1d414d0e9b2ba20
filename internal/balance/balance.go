// Package balance holds the static configuration data spec.md §1 calls
// "configuration data the core consumes": RR_PETAL_DATA, RR_MOB_DATA, and
// maze/biome templates. These are data tables, not game logic; the loader
// follows the teacher's config-from-file convention generalized from env
// vars (internal/config/config.go) to structured files, using
// github.com/BurntSushi/toml for the embedded static game-balance tables.
package balance

import (
	_ "embed"
	"math/rand"
	"sort"

	"github.com/BurntSushi/toml"

	"fight-club/internal/ecs"
)

//go:embed petals.toml
var defaultPetalsToml []byte

//go:embed mobs.toml
var defaultMobsToml []byte

// PetalStats is one petal id/rarity combination's balance row.
type PetalStats struct {
	Name           string  `toml:"name"`
	CooldownTicks  int     `toml:"cooldown_ticks"`
	Damage         float64 `toml:"damage"`
	HealAmount     float64 `toml:"heal_amount"`
	Radius         float64 `toml:"radius"`
	RarityScale    float64 `toml:"rarity_scale"`
}

// MobStats is one mob id's balance row (rarity-independent base stats,
// scaled by rarity multipliers at spawn time).
type MobStats struct {
	Name            string  `toml:"name"`
	BaseHP          float64 `toml:"base_hp"`
	BaseDamage      float64 `toml:"base_damage"`
	AggroRange      float64 `toml:"aggro_range"`
	DifficultyWeight float64 `toml:"difficulty_weight"`
	IsBoss          bool    `toml:"is_boss"`
	DropPetal       int `toml:"drop_petal"` // ecs.PetalID dropped on death
}

// petalFile/mobFile mirror the embedded TOML shape.
type petalFile struct {
	Petals map[string]PetalStats `toml:"petal"`
}

type mobFile struct {
	Mobs map[string]MobStats `toml:"mob"`
}

// Tables holds the decoded balance data plus the per-rarity scalar curve
// used to derive concrete stats from a base row.
type Tables struct {
	Petals map[ecs.PetalID]PetalStats
	Mobs   map[ecs.MobID]MobStats

	// RarityMultiplier[r] scales HP/damage/weight for rarity r.
	RarityMultiplier [ecs.RarityCount]float64

	// BiomeMobOrder is the fixed iteration order used by PickMobID so the
	// default (non-zone) distribution is deterministic given an rng stream.
	BiomeMobOrder []ecs.MobID
}

// Load decodes the embedded default tables. A production deployment may
// instead read operator-supplied TOML from disk using the same shape.
func Load() (*Tables, error) {
	var pf petalFile
	if _, err := toml.Decode(string(defaultPetalsToml), &pf); err != nil {
		return nil, err
	}
	var mf mobFile
	if _, err := toml.Decode(string(defaultMobsToml), &mf); err != nil {
		return nil, err
	}

	t := &Tables{
		Petals: make(map[ecs.PetalID]PetalStats, len(pf.Petals)),
		Mobs:   make(map[ecs.MobID]MobStats, len(mf.Mobs)),
	}

	for idStr, stats := range pf.Petals {
		t.Petals[ecs.PetalID(idIndex(idStr))] = stats
	}
	for idStr, stats := range mf.Mobs {
		id := ecs.MobID(idIndex(idStr))
		t.Mobs[id] = stats
		t.BiomeMobOrder = append(t.BiomeMobOrder, id)
	}
	sort.Slice(t.BiomeMobOrder, func(i, j int) bool { return t.BiomeMobOrder[i] < t.BiomeMobOrder[j] })

	// Exponential rarity curve: 1.35^rarity, matching the spec's general
	// pattern of compounding per-rarity multipliers (e.g. 0.56^rarity for
	// web slow, 1.2^x for spawn pacing).
	mult := 1.0
	for r := ecs.Rarity(0); r < ecs.RarityCount; r++ {
		t.RarityMultiplier[r] = mult
		mult *= 1.35
	}

	return t, nil
}

// idIndex maps a TOML table key like "id_3" to its numeric suffix.
func idIndex(key string) int {
	start := len(key)
	for start > 0 && key[start-1] >= '0' && key[start-1] <= '9' {
		start--
	}
	if start == len(key) {
		return 0
	}
	n := 0
	for i := start; i < len(key); i++ {
		n = n*10 + int(key[i]-'0')
	}
	return n
}

// PickMobID implements maze.BiomeTable: rolls a mob id from the biome's
// fixed distribution, honoring a zone override by name when provided.
func (t *Tables) PickMobID(rng *rand.Rand, zoneOverride string) ecs.MobID {
	if zoneOverride != "" {
		for _, id := range t.BiomeMobOrder {
			if t.Mobs[id].Name == zoneOverride {
				return id
			}
		}
	}
	if len(t.BiomeMobOrder) == 0 {
		return 0
	}
	return t.BiomeMobOrder[rng.Intn(len(t.BiomeMobOrder))]
}

// PickRarity rolls a rarity from a rolling cumulative table seeded by
// difficulty: higher difficulty shifts probability mass toward higher
// rarities (spec §4.3 step 4).
func (t *Tables) PickRarity(rng *rand.Rand, difficulty float64) ecs.Rarity {
	weights := make([]float64, ecs.RarityCount)
	total := 0.0
	for r := ecs.Rarity(0); r < ecs.RarityCount; r++ {
		// Base weight decays fast with rarity; difficulty linearly boosts
		// the chance of reaching higher tiers.
		w := 1.0 / (float64(r) + 1)
		w *= 1 + difficulty*float64(r)*0.1
		weights[r] = w
		total += w
	}

	roll := rng.Float64() * total
	acc := 0.0
	for r := ecs.Rarity(0); r < ecs.RarityCount; r++ {
		acc += weights[r]
		if roll <= acc {
			return r
		}
	}
	return ecs.RarityCount - 1
}

// DropFor returns the petal id a mob drops on death.
func (t *Tables) DropFor(id ecs.MobID) ecs.PetalID {
	return ecs.PetalID(t.Mobs[id].DropPetal)
}

// DifficultyWeight returns the spawn-budget weight of a mob id/rarity pair.
func (t *Tables) DifficultyWeight(id ecs.MobID, rarity ecs.Rarity) float64 {
	stats, ok := t.Mobs[id]
	if !ok {
		return 1
	}
	return stats.DifficultyWeight * t.RarityMultiplier[rarity]
}

// SpawnBase returns the base spawn-pace constant. Fixed per the design
// target; a future biome-specific override would read this from the mob
// file instead.
func (t *Tables) SpawnBase() float64 { return 20.0 }
