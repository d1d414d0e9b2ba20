// Package craft implements inventory crafting and the pseudo-random
// distribution (PRD) success model of spec.md §4.7/§8: five petals of one
// rarity combine into one petal of the next rarity, with each attempt's
// success probability growing linearly with consecutive failures so the
// long-run success rate converges to a nominal value. There is no teacher
// analogue for a gacha-style probability model; the per-id registry and
// result-aggregation style is grounded on internal/game/weapons.go's
// id-keyed lookup table, generalized from static stats to a stateful
// per-(id,rarity) failure streak.
package craft

import (
	"fight-club/internal/ecs"
)

// RecipeSize is how many petals of one rarity combine into the next rarity.
const RecipeSize = 5

// CraftXPGains is the per-petal-id XP awarded for each successful craft,
// indexed by PetalID.
var CraftXPGains = map[ecs.PetalID]float64{
	0: 1.0, 1: 1.5, 2: 1.2, 3: 1.3, 4: 2.0, 5: 2.2,
	6: 2.5, 7: 1.8, 8: 1.1, 9: 1.4, 10: 2.0, 11: 2.6, 12: 2.8, 13: 3.0,
}

// nominalRates is the target long-run craft success rate per rarity tier
// (index = source rarity being upgraded away from), decaying as rarity
// climbs.
var nominalRates = [ecs.RarityCount]float64{
	0.50, 0.45, 0.40, 0.35, 0.30, 0.25, 0.22, 0.19,
	0.16, 0.14, 0.12, 0.10, 0.08, 0.06, 0.04, 0.02,
}

// prdBaseCache memoizes prd_base per rarity since it is a pure function of
// the nominal rate table and never changes at runtime.
var prdBaseCache [ecs.RarityCount]float64

func init() {
	for r := range nominalRates {
		prdBaseCache[r] = prdBase(nominalRates[r])
	}
}

// prdBase solves for the per-attempt linear coefficient C such that a PRD
// process with p(n) = min(1, n*C) has mean attempts-to-success 1/nominal.
// Solved numerically via bisection since no closed form exists for an
// arbitrary cap at 1 (spec §8 testable property 6).
func prdBase(nominal float64) float64 {
	if nominal <= 0 {
		return 0
	}
	if nominal >= 1 {
		return 1
	}
	target := 1 / nominal

	lo, hi := 1e-6, 1.0
	for iter := 0; iter < 60; iter++ {
		mid := (lo + hi) / 2
		if meanAttempts(mid) > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// meanAttempts computes E[attempts to first success] for p(n) = min(1, n*c)
// by summing the survival function until it becomes negligible.
func meanAttempts(c float64) float64 {
	survival := 1.0
	mean := 0.0
	for n := 1; n <= 100000; n++ {
		p := float64(n) * c
		if p > 1 {
			p = 1
		}
		mean += survival
		survival *= 1 - p
		if survival < 1e-12 {
			break
		}
	}
	return mean + survival // tail beyond the loop contributes ~survival more
}

// Streak tracks consecutive-failure counters per (id, rarity), the
// persisted craft-failure PRD state the account sidecar's persist message
// carries (spec §6).
type Streak struct {
	counts map[ecs.PetalID]map[ecs.Rarity]int
}

// NewStreak creates an empty failure-streak tracker.
func NewStreak() *Streak {
	return &Streak{counts: make(map[ecs.PetalID]map[ecs.Rarity]int)}
}

func (s *Streak) get(id ecs.PetalID, rarity ecs.Rarity) int {
	if byRarity, ok := s.counts[id]; ok {
		return byRarity[rarity]
	}
	return 0
}

func (s *Streak) set(id ecs.PetalID, rarity ecs.Rarity, n int) {
	byRarity, ok := s.counts[id]
	if !ok {
		byRarity = make(map[ecs.Rarity]int)
		s.counts[id] = byRarity
	}
	byRarity[rarity] = n
}

// RNG abstracts the uniform random source so tests can inject a
// deterministic stream.
type RNG interface{ Float64() float64 }

// Result is one craft(id, rarity, count) call's outcome.
type Result struct {
	Successes int
	Fails     int
	Attempts  int // attempts consumed that neither succeeded nor failed (N/A here, kept for wire symmetry)
	XP        float64
}

// Attempt runs one craft batch: count/RecipeSize attempts are made, each
// resolved by the PRD streak for (id, rarity). id==basic (PetalID 0) always
// succeeds, per spec §8 scenario S2.
func (s *Streak) Attempt(rng RNG, id ecs.PetalID, rarity ecs.Rarity, count int) Result {
	batches := count / RecipeSize
	result := Result{}

	for i := 0; i < batches; i++ {
		if id == 0 {
			result.Successes++
			result.XP += CraftXPGains[id]
			continue
		}

		n := s.get(id, rarity) + 1
		p := float64(n) * prdBaseCache[rarity]
		if p > 1 {
			p = 1
		}

		if rng.Float64() < p {
			result.Successes++
			result.XP += CraftXPGains[id]
			s.set(id, rarity, 0)
		} else {
			result.Fails++
			s.set(id, rarity, n)
		}
	}

	return result
}
