package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical tables.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Stage Constants ===

// Draw stages partition the randomness consumed for one individual.
// Lifespan draws (layer one) and career draws (layer two) come from
// disjoint streams so that a change to the career model never perturbs
// the population's birth and death years.
const (
	// StageLifespan covers birth-year assignment and the mortality walk.
	StageLifespan = "lifespan"

	// StageCareer covers job-type assignment, state transitions, and
	// income draws, in that fixed order.
	StageCareer = "career"
)

// SubsystemForecast returns the subsystem name for forecast draw k.
// Each posterior draw regenerates under its own isolated stream family.
func SubsystemForecast(draw int) string {
	return fmt.Sprintf("forecast_%d", draw)
}

// === PartitionedRNG ===

// knuthMultiplier spreads consecutive individual IDs across seed space.
const knuthMultiplier = 2654435761

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem and per individual.
//
// Derivation formula:
//   - subsystem stream:  masterSeed XOR fnv1a64(subsystemName)
//   - individual stream: subsystemSeed * knuthMultiplier + individualID
//
// Individual streams make generation order-free: individual 7 draws the
// same lifespan and career whether the population holds ten individuals
// or a million, and regardless of how work is sharded across goroutines.
//
// Thread-safety: ForSubsystem is NOT thread-safe. ForIndividual returns
// a fresh uncached stream and may be called from multiple goroutines as
// long as each goroutine uses only the streams it created.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same subsystem name always returns the same *rand.Rand
// instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// ForIndividual returns a fresh RNG for one individual's draws within
// the given stage. Streams are never cached: callers own the returned
// instance for the duration of that individual's generation.
func (p *PartitionedRNG) ForIndividual(stage string, id int64) *rand.Rand {
	return rand.New(rand.NewSource(IndividualSeed(p.key, stage, id)))
}

// IndividualSeed derives the stream seed for (key, stage, individual).
// Exposed so that tests can verify stream isolation directly.
func IndividualSeed(key SimulationKey, stage string, id int64) int64 {
	subsystemSeed := int64(key) ^ fnv1a64(stage)
	return subsystemSeed*knuthMultiplier + id
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
