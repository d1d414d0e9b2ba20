package ecs

// Component struct definitions mirroring spec.md §3 Data Model. Field names
// use Go casing of the spec's attribute names; nullable entity references use
// the zero Entity{} (Null) rather than pointers, since the cyclic references
// in the source (flower<->petal<->nest<->mob-pet) are re-expressed as
// generation-tagged handles resolved through the World on every access
// (spec §9 design notes).

// Team identifies which side an entity fights for.
type Team int

const (
	TeamPlayers Team = iota
	TeamMobs
)

// Physical holds position, motion, and arena placement.
type Physical struct {
	X, Y                   float64
	VX, VY                 float64
	AX, AY                 float64 // acceleration
	Radius                 float64
	Angle                  float64
	AngularVelocity        float64
	Friction               float64
	Mass                   float64
	ArenaID                int
	StunTicks              int
	KnockbackScale         float64
	DeletionAnimationPhase float64

	OnTitleScreen  bool
	Bubbling       bool
	BubblingToDeath bool
}

// Health holds HP, damage, and per-squad damage crediting.
type Health struct {
	HP, MaxHP          float64
	Damage             float64 // outgoing contact damage
	DamageReduction    float64 // flat
	DamageReductionPct float64 // multiplicative ratio
	LastDamagedTick    uint64
	SquadDamage        [4]float64
	GraduallyHealed    float64
	AnimationPhase     float64
}

// Relations holds team/ownership links.
type Relations struct {
	Team      Team
	Owner     Entity // nullable
	RootOwner Entity // cached transitive owner; resolves to a PlayerInfo entity
	Nest      Entity // optional
}

// MobID enumerates mob species.
type MobID int

// Rarity is one of 16 tiers scaling stats and drop tables.
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUnusual
	RarityRare
	RaritySuper
	RarityEpic
	RarityLegendary
	RarityMythic
	RarityUltra
	RaritySuperUltra
	RarityUnique
	RaritySupreme
	RarityExotic
	RarityFlawless
	RarityEventful
	RarityShiny
	RarityRegal
	RarityCount // sentinel: number of rarity tiers (16)
)

// Mob holds the mob-specific fields.
type Mob struct {
	ID             MobID
	Rarity         Rarity
	PlayerSpawned  bool
	NoDrop         bool
	AIZone         *Zone // nil for arena-wide spawns
	TicksUntilDespawn int
}

// Zone is a rectangular region of the maze with an override spawn function
// name (resolved by the maze package's zone registry).
type Zone struct {
	MinX, MinY, MaxX, MaxY float64
	SpawnFuncName          string
}

// PetalID enumerates petal species.
type PetalID int

// Petal holds the petal-specific fields.
type Petal struct {
	ID           PetalID
	Rarity       Rarity
	Detached     bool
	EffectDelay  int
	SpinDir      float64 // +1 or -1
	BindTarget   Entity  // for seeds, azalea's heal target
	BindOffsetX  float64
	BindOffsetY  float64
	Slot         int // back-pointer: index into owning PlayerInfo.Slots, -1 if none
	AggroCount   int // for meat
	DespawnTicks int // for slot-less projectile petals (e.g. peas siblings); 0 means not time-limited
}

// Input bitmask bits for the attack/defend signals carried by
// PlayerInfo.InputBitmask (spec §4.5 step 3's "input bit 0"/"input bit 1").
// This port's movement directions already claim bits 0-3 (see
// server.InputUp/Down/Left/Right), so attack/defend ride bits 4 and 5 of
// the same mask instead.
const (
	InputAttack uint32 = 1 << 4
	InputDefend uint32 = 1 << 5
)

// FaceFlags is a bitmask of flower face customizations.
type FaceFlags uint8

// Flower holds the player-avatar-specific fields.
type Flower struct {
	Level      int
	Dead       bool
	Face       FaceFlags
	CrestCount int
	ThirdEyeCount int
}

// Drop holds ground-item fields.
type Drop struct {
	ID               PetalID
	Rarity           Rarity
	TicksUntilDespawn int
	PickableBySquad  uint8 // bitmask, bit i = squad slot i may pick up
}

const MaxSlots = 8

// Slot is one equipment slot: up to count[rarity] live petal entities.
type Slot struct {
	ID           PetalID
	Rarity       Rarity
	Petals       []Entity // live petal entities bound to this slot
	CooldownTicks int
}

// Modifiers are the aggregate petal-derived stat bonuses recomputed each
// tick's modifiers pass (spec §4.5 step 1).
type Modifiers struct {
	PickupRadius    float64
	PetalExtension  float64
	ReloadSpeed     float64
	FOVMinimum      float64
	DamageReductionRatio float64
	RotationRate    float64
	HealOverTime    float64
}

// PlayerInfo holds the per-client in-arena state.
type PlayerInfo struct {
	ClientID      string // owning client handle
	SquadID       string
	SquadPosition int
	SlotCount     int
	Slots         [MaxSlots]Slot
	SecondarySlots [MaxSlots]Slot

	CameraX, CameraY       float64
	CameraTargetX, CameraTargetY float64
	CameraFOV, CameraTargetFOV   float64

	InputBitmask uint32
	ArenaID      int

	RotationCounter float64
	SpectateTarget  Entity

	EntitiesInView map[Entity]bool

	Modifiers Modifiers
}

// AIType classifies mob temperament.
type AIType int

const (
	AIPassive AIType = iota
	AINeutral
	AIAggro
)

// AIState is the mob behavior state machine's current state.
type AIState int

const (
	AIIdle AIState = iota
	AIWander
	AIChase
	AIAttack
	AIReturn
	AIBounce
)

// AI holds the per-mob behavior state machine fields.
type AI struct {
	Type            AIType
	State           AIState
	Target          Entity
	TicksUntilNext  int
	AggroRange      float64
}

// Arena holds per-arena/biome state, including the maze grid and spatial
// index (populated by the maze/spatial packages, referenced here by pointer
// since exactly one Arena owns them for its lifetime).
type Arena struct {
	BiomeID           int
	GridDimension     int
	GridSize          float64
	MobCount          int
	PlayerEntered     bool
	FirstSquadToEnter string
	PVP               bool
	RespawnX, RespawnY float64
}

// Nest holds nest-specific fields (global rotation shared across all nests
// of a given rarity in an arena).
type Nest struct {
	Rarity        Rarity
	GlobalRotation float64
	RotationCount int
	RotationPos   int
}

// Web holds a deployed web's slow-field fields.
type Web struct {
	Radius            float64
	TicksUntilDespawn int
}

// Centipede links parent/child segments of a centipede mob chain.
type Centipede struct {
	ParentNode Entity
	ChildNode  Entity
}
