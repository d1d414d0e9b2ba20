// Package server wires every subsystem into the fixed per-tick pipeline of
// spec.md §5: collision-detection -> AI -> drops -> petal-behavior ->
// collision-resolution -> web -> velocity -> centipede -> health -> camera
// -> spawn -> delete-sweep. The single-threaded cooperative loop pinned to a
// fixed tick duration, with a ticker goroutine and a background-only
// connection for blocking I/O, is grounded on internal/game/engine.go's
// Engine.Start/Stop/tick.
package server

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/text/width"
	"golang.org/x/time/rate"

	"fight-club/internal/account"
	"fight-club/internal/ai"
	"fight-club/internal/balance"
	"fight-club/internal/collision"
	"fight-club/internal/combat"
	"fight-club/internal/craft"
	"fight-club/internal/ecs"
	"fight-club/internal/maze"
	"fight-club/internal/observability"
	"fight-club/internal/petal"
	"fight-club/internal/session"
	"fight-club/internal/spatial"
	"fight-club/internal/squad"
	"fight-club/internal/systems"
	"fight-club/internal/wire"
)

// TickDuration is the fixed cooperative-loop period (spec §5: "40 ms
// ticks").
const TickDuration = 40 * time.Millisecond

// WorldSize is the side length, in world units, of the single square arena
// both the maze grid and spatial index cover.
const WorldSize = 8192.0

// Server owns every piece of authoritative game state and the fixed tick
// pipeline driving it. Exactly one goroutine (the ticker loop) ever mutates
// World; the account sidecar and session read-loops only enqueue work for
// the next tick (spec §5: "no other task mutates it").
type Server struct {
	World *ecs.World
	Tables *balance.Tables
	Maze  *maze.Grid
	Index *spatial.Grid

	aiSys      *ai.System
	petalSys   *petal.System
	collideSys *collision.System
	combatSys  *combat.System
	spawner    *maze.Spawner

	Squads *squad.Manager
	Hub    *session.Hub
	Sidecar *account.Client

	streaks     map[string]*craft.Streak
	craftLimits map[string]*rate.Limiter
	views       map[string]*session.ViewState
	ready      map[string]bool
	exposeCode map[string]bool
	blocked    map[string]map[string]bool
	rng        *rand.Rand

	mu        sync.Mutex
	running   bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	tickCount uint64
}

// New wires every subsystem around a fresh World. biomeID selects which
// maze/balance template the arena uses.
func New(tables *balance.Tables, biomeID int) *Server {
	world := ecs.NewWorld()
	dimension := 32
	cellSize := WorldSize / float64(dimension)
	mazeGrid := maze.NewGrid(dimension, cellSize, biomeID)
	index := spatial.New(WorldSize, WorldSize, spatial.DefaultCellSize)
	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))

	s := &Server{
		World:   world,
		Tables:  tables,
		Maze:    mazeGrid,
		Index:   index,
		Squads:  squad.NewManager(),
		Hub:     session.NewHub(),
		streaks:     make(map[string]*craft.Streak),
		craftLimits: make(map[string]*rate.Limiter),
		views:       make(map[string]*session.ViewState),
		ready:      make(map[string]bool),
		exposeCode: make(map[string]bool),
		blocked:    make(map[string]map[string]bool),
		rng:        rng,
		stopChan:   make(chan struct{}),
	}

	s.aiSys = ai.NewSystem(world, index, rng)
	s.collideSys = collision.NewSystem(world, index, mazeGrid)
	s.combatSys = combat.NewSystem(world, s.publishDrop)
	s.petalSys = petal.NewSystem(world, tables, s.combatSys, rng)
	s.spawner = maze.NewSpawner(mazeGrid, world, index, tables, rng)
	s.spawner.OnSpawn = func(e ecs.Entity) {
		if phys := world.Physical.Get(e); phys != nil {
			s.aiSys.SetAnchor(e, phys.X, phys.Y)
		}
	}

	world.SetMobFreeHook(func(e ecs.Entity, m *ecs.Mob) {
		s.aiSys.DropAnchor(e)
	})

	return s
}

// Start begins the fixed-tick loop in its own goroutine. Mirrors
// Engine.Start's running-flag guard and ticker-driven select loop.
func (s *Server) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.ticker = time.NewTicker(TickDuration)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.tick()
			case <-s.stopChan:
				return
			}
		}
	}()

	log.Printf("rysteria: server loop started at %v/tick", TickDuration)
}

// Stop halts the tick loop.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopChan)
	log.Println("rysteria: server loop stopped")
}

// tick runs exactly one iteration of the fixed pipeline (spec §5 ordering
// guarantee). No step blocks on socket I/O; inbound commands were already
// queued by the session package's background read loops.
func (s *Server) tick() {
	start := time.Now()
	s.tickCount++
	deltaTime := TickDuration.Seconds()

	s.drainInbound()

	s.collideSys.RebuildIndex()
	s.collideSys.DetectPetalVsEnemy(func(petalEntity, target ecs.Entity) {
		dmg := s.petalDamage(petalEntity)
		s.combatSys.ApplyDamage(petalEntity, target, dmg, s.tickCount)
	})
	s.collideSys.DetectMobVsFlower(func(mobEntity, flowerEntity ecs.Entity) {
		dmg := s.mobDamage(mobEntity)
		s.combatSys.ApplyDamage(mobEntity, flowerEntity, dmg, s.tickCount)
	})

	s.aiSys.Tick(deltaTime, func(attacker, target ecs.Entity) {
		dmg := s.mobDamage(attacker)
		s.combatSys.ApplyDamage(attacker, target, dmg, s.tickCount)
	})

	s.processDrops()

	s.petalSys.Tick(deltaTime, s.tickCount)

	s.collideSys.ResolveSameTeamPush()
	s.collideSys.ResolveWalls()

	s.collideSys.ApplyWebSlow(func(e ecs.Entity) ecs.Rarity {
		if petalComp := s.World.Petal.Get(e); petalComp != nil {
			return petalComp.Rarity
		}
		return ecs.RarityCommon
	})

	systems.Integrate(s.World, deltaTime)
	systems.UpdateCentipedes(s.World)

	systems.TickStun(s.World)
	s.combatSys.ApplyRegen(deltaTime)

	systems.UpdateCameras(s.World)

	s.spawner.Tick(deltaTime, s.collectFlowerViews(), s.forEachNonPlayerMob)

	s.World.Sweep()

	s.sweepSessions()
	s.dispatchSnapshots()

	observability.RecordTick(time.Since(start))
	observability.UpdateEntitiesAlive(s.World.Table.LiveCount())
	observability.UpdateConnectedClients(s.Hub.Sessions.Count())
}

// petalDamage resolves a live petal entity's balance-table damage value,
// scaled by its rarity multiplier.
func (s *Server) petalDamage(petalEntity ecs.Entity) float64 {
	petalComp := s.World.Petal.Get(petalEntity)
	if petalComp == nil {
		return 0
	}
	stats, ok := s.Tables.Petals[petalComp.ID]
	if !ok {
		return 0
	}
	return stats.Damage * s.Tables.RarityMultiplier[petalComp.Rarity]
}

// mobDamage resolves a live mob entity's balance-table damage value, scaled
// by its rarity multiplier.
func (s *Server) mobDamage(mobEntity ecs.Entity) float64 {
	mob := s.World.Mob.Get(mobEntity)
	if mob == nil {
		return 0
	}
	stats, ok := s.Tables.Mobs[mob.ID]
	if !ok {
		return 0
	}
	return stats.BaseDamage * s.Tables.RarityMultiplier[mob.Rarity]
}

// publishDrop spawns a ground-item Drop entity for one squad slot's share of
// a mob's loot, the combat package's DropFunc callback (spec §4.7).
func (s *Server) publishDrop(mob ecs.Entity, squadSlot int, mobID ecs.MobID, rarity ecs.Rarity) {
	mobPhys := s.World.Physical.Get(mob)
	if mobPhys == nil {
		return
	}
	entity, err := s.World.Alloc()
	if err != nil {
		return
	}
	phys, _ := s.World.Physical.Add(entity)
	phys.X, phys.Y = mobPhys.X, mobPhys.Y
	phys.Radius = 16

	drop, _ := s.World.Drop.Add(entity)
	drop.ID = s.Tables.DropFor(mobID)
	drop.Rarity = rarity
	drop.TicksUntilDespawn = 25 * 30
	drop.PickableBySquad = 1 << uint(squadSlot)
}

// processDrops lets any player within pickup radius of a ground item whose
// squad slot bit is set collect it (spec §4.5/§4.6 pickup rule).
func (s *Server) processDrops() {
	var collected []ecs.Entity
	s.World.Drop.ForEach(func(dropEntity ecs.Entity, drop *ecs.Drop) {
		dropPhys := s.World.Physical.Get(dropEntity)
		if dropPhys == nil {
			return
		}
		if drop.TicksUntilDespawn > 0 {
			drop.TicksUntilDespawn--
		} else {
			collected = append(collected, dropEntity)
			return
		}

		s.Index.QueryRadius(dropPhys.X, dropPhys.Y, 256, func(other ecs.Entity, ox, oy float64) {
			info := s.World.PlayerInfo.Get(other)
			if info == nil {
				return
			}
			if drop.PickableBySquad != 0 && info.SquadPosition >= 0 &&
				drop.PickableBySquad&(1<<uint(info.SquadPosition)) == 0 {
				return
			}
			otherPhys := s.World.Physical.Get(other)
			if otherPhys == nil {
				return
			}
			radius := info.Modifiers.PickupRadius
			if radius <= 0 {
				radius = 60
			}
			dx, dy := dropPhys.X-otherPhys.X, dropPhys.Y-otherPhys.Y
			if dx*dx+dy*dy <= radius*radius {
				s.equipDrop(info, drop)
				collected = append(collected, dropEntity)
			}
		})
	})
	for _, e := range collected {
		s.World.RequestDeletion(e)
	}
}

// equipDrop adds a picked-up petal into the first empty or matching slot.
func (s *Server) equipDrop(info *ecs.PlayerInfo, drop *ecs.Drop) {
	for i := range info.Slots {
		slot := &info.Slots[i]
		if len(slot.Petals) == 0 {
			slot.ID = drop.ID
			slot.Rarity = drop.Rarity
			return
		}
		if slot.ID == drop.ID && slot.Rarity == drop.Rarity {
			return
		}
	}
}

// collectFlowerViews gathers the minimal per-flower proximity data the
// spawner pass needs, skipping bubbling (invisible) flowers per spec §4.3.
func (s *Server) collectFlowerViews() []maze.FlowerView {
	var views []maze.FlowerView
	s.World.Flower.ForEach(func(e ecs.Entity, f *ecs.Flower) {
		if f.Dead {
			return
		}
		phys := s.World.Physical.Get(e)
		if phys == nil || phys.Bubbling {
			return
		}
		views = append(views, maze.FlowerView{X: phys.X, Y: phys.Y, Level: f.Level})
	})
	return views
}

func (s *Server) forEachNonPlayerMob(visit func(ecs.Entity, *ecs.Mob, *ecs.Physical)) {
	s.World.Mob.ForEach(func(e ecs.Entity, m *ecs.Mob) {
		phys := s.World.Physical.Get(e)
		if phys == nil {
			return
		}
		visit(e, m, phys)
	})
}

// MaxNicknameRunes is the 16-character nickname field width (spec §4.7).
const MaxNicknameRunes = 16

// normalizeNickname folds fullwidth/halfwidth rune variants to their
// canonical width (fullwidth to narrow, halfwidth to wide) before clamping to the wire format's fixed 16-rune nickname field,
// so a name that looks like 16 characters client-side can't smuggle extra
// display width past the clamp.
func normalizeNickname(alias string) string {
	folded := width.Fold.String(alias)
	runes := []rune(folded)
	if len(runes) > MaxNicknameRunes {
		runes = runes[:MaxNicknameRunes]
	}
	return string(runes)
}

// HandleAliasSet applies a sidecar-pushed display-name assignment (spec
// §4.10 inbound alias_set message).
func (s *Server) HandleAliasSet(payload account.AliasSetPayload) {
	alias := normalizeNickname(payload.Alias)
	s.Hub.Sessions.ForEach(func(connID string, c *session.Client) {
		if c.UUID == payload.ClientID {
			c.Alias = alias
		}
	})
}

// HandleInitialBlob currently only logs receipt; a client's persisted
// inventory is re-applied through HeaderPetalSwitch commands the client
// itself re-issues once it decodes the blob, so there is nothing further
// for the tick loop to mutate here.
func (s *Server) HandleInitialBlob(payload account.InitialBlobPayload) {
	log.Printf("rysteria: received initial blob for %s (%d bytes)", payload.ClientID, len(payload.Blob))
}

// HandleForceKick disconnects a client the sidecar says logged in
// elsewhere (spec §4.10 inbound force_kick message).
func (s *Server) HandleForceKick(payload account.ForceKickPayload) {
	s.Hub.Sessions.ForEach(func(connID string, c *session.Client) {
		if c.UUID == payload.ClientID {
			c.RequestKick(payload.Reason)
		}
	})
}

// drainInbound applies every command queued since the previous tick, in
// arrival order (spec §5 ordering guarantee).
func (s *Server) drainInbound() {
	for {
		select {
		case cmd := <-s.Hub.Inbound:
			s.applyCommand(cmd)
		default:
			return
		}
	}
}

// sweepSessions reaps expired grace-window disconnects and AFK clients,
// freeing their PlayerInfo and squad membership (spec §5 cancellation).
func (s *Server) sweepSessions() {
	now := time.Now()
	for _, c := range s.Hub.Sessions.SweepExpiredGrace(now) {
		s.freeClient(c)
	}

	s.Hub.Sessions.ForEach(func(connID string, c *session.Client) {
		if c.IsAFK(now) {
			c.SendClientbound(session.HeaderSquadFail, []byte{byte(session.SquadFailAFK)})
			c.RequestKick("afk")
		}
		if pending, reason := c.PendingKick(); pending {
			session.LogKick(c.UUID, reason)
			s.freeClient(c)
		}
	})
}

// freeClient deletes a client's PlayerInfo entity and removes it from its
// squad (spec §5: grace expiry triggers Flower deletion and squad leave).
func (s *Server) freeClient(c *session.Client) {
	if !c.PlayerInfo.IsNull() {
		s.World.RequestDeletion(c.PlayerInfo)
	}
	s.Squads.Leave(c.UUID)
	delete(s.streaks, c.UUID)
	delete(s.craftLimits, c.UUID)
	delete(s.views, c.UUID)
}

// dispatchSnapshots recomputes each connected client's view and writes its
// per-tick update frame.
func (s *Server) dispatchSnapshots() {
	s.Hub.Sessions.ForEach(func(connID string, c *session.Client) {
		if c.PlayerInfo.IsNull() {
			return
		}
		info := s.World.PlayerInfo.Get(c.PlayerInfo)
		if info == nil {
			return
		}

		view, ok := s.views[connID]
		if !ok {
			view = session.NewViewState()
			s.views[connID] = view
		}
		view.RecomputeView(s.World, info.CameraX, info.CameraY, info.CameraFOV)

		w := wire.NewWriter(1024)
		session.WriteDeltaSnapshot(w, s.World, view)
		c.SendClientbound(session.HeaderUpdate, w.Bytes())

		s.Hub.FlushQueue(c)
	})
}
