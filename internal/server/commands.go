package server

import (
	"math"

	"golang.org/x/time/rate"

	"fight-club/internal/account"
	"fight-club/internal/craft"
	"fight-club/internal/ecs"
	"fight-club/internal/observability"
	"fight-club/internal/session"
	"fight-club/internal/wire"
)

// craftRateLimit bounds craft attempts per client, separate from the
// connection's general inbound packet rate (spec's crafting-PRD stream
// deserves its own ceiling since one packet can request many attempts).
const craftRateLimit = 5
const craftBurst = 10

// Input bitmask bits decoded from HeaderInput packets (spec §4.7's
// client->server movement bitmask).
const (
	InputUp uint32 = 1 << iota
	InputDown
	InputLeft
	InputRight
)

// SpawnHP is a flower's starting and max HP before any level-based scaling.
const SpawnHP = 100.0

// Sandbox mirrors the source's compile-time SANDBOX flag (spec §6, §9 design
// notes): when true, squad_kick refuses to remove a dev session; outside
// SANDBOX it does not. The asymmetry is copied literally rather than
// "fixed," per the design note. There is no dev-cheat allowlist in either
// mode: applyDevCheat honors every session whose handshake set the dev flag.
// Set once at startup from config, not actually recompiled per build the
// way the source's preprocessor flag was.
var Sandbox = false

// applyCommand dispatches one decoded serverbound packet against live state,
// in the arrival order drainInbound already established. Per spec §7,
// systems never throw: an invalid command is dropped, not an error.
func (s *Server) applyCommand(cmd session.Command) {
	c := s.clientByConnID(cmd.ConnID)
	if c == nil {
		return
	}

	switch cmd.Header {
	case session.HeaderInput:
		s.applyInput(c, cmd)
	case session.HeaderPetalSwitch:
		s.applyPetalSwitch(c, cmd)
	case session.HeaderSquadJoin:
		s.applySquadJoin(c, cmd)
	case session.HeaderSquadReady:
		s.ready[c.UUID] = cmd.Bool1
	case session.HeaderSquadUpdate:
		// Secondary-slot toggle; slot selection is purely client-local state
		// echoed back through the next snapshot, nothing to mutate here.
	case session.HeaderPrivateUpdate:
		s.applyPrivateUpdate(c, cmd)
	case session.HeaderExposeCodeUpdate:
		s.exposeCode[c.UUID] = cmd.Bool1
	case session.HeaderSquadKick:
		s.applySquadKick(c, cmd)
	case session.HeaderSquadTransferOwnership:
		s.Squads.TransferOwnership(c.UUID, cmd.TargetClientID)
	case session.HeaderPetalsCraft:
		s.applyCraft(c, cmd)
	case session.HeaderChat:
		s.applyChat(c, cmd)
	case session.HeaderChatBlock:
		s.applyChatBlock(c, cmd)
	case session.HeaderDevCheat:
		s.applyDevCheat(c, cmd)
	}
}

func (s *Server) isDev(uuid string) bool {
	found := false
	s.Hub.Sessions.ForEach(func(id string, c *session.Client) {
		if c.UUID == uuid && c.Dev {
			found = true
		}
	})
	return found
}

func (s *Server) clientByConnID(connID string) *session.Client {
	var found *session.Client
	s.Hub.Sessions.ForEach(func(id string, c *session.Client) {
		if id == connID {
			found = c
		}
	})
	return found
}

// ensurePlayerEntity lazily spawns a client's PlayerInfo/Physical/Health/
// Flower/Relations bundle on its first input packet (spec has no explicit
// "spawn" packet; entry into the arena is implicit in the first movement
// input).
func (s *Server) ensurePlayerEntity(c *session.Client) bool {
	if !c.PlayerInfo.IsNull() && s.World.Alive(c.PlayerInfo) {
		return true
	}

	entity, err := s.World.Alloc()
	if err != nil {
		return false
	}

	phys, _ := s.World.Physical.Add(entity)
	phys.X, phys.Y = s.Maze.CellSize*float64(s.Maze.Dimension)/2, s.Maze.CellSize*float64(s.Maze.Dimension)/2
	phys.Radius = 24
	phys.Friction = 0.85
	phys.Mass = 1

	health, _ := s.World.Health.Add(entity)
	health.HP, health.MaxHP = SpawnHP, SpawnHP

	flower, _ := s.World.Flower.Add(entity)
	flower.Level = 1

	rel, _ := s.World.Relations.Add(entity)
	rel.Team = ecs.TeamPlayers
	rel.RootOwner = entity

	info, _ := s.World.PlayerInfo.Add(entity)
	info.ClientID = c.UUID
	info.SquadPosition = -1
	info.CameraFOV = 2048

	c.PlayerInfo = entity

	if sq := s.Squads.Get(c.UUID); sq != nil {
		info.SquadID = sq.ID
		info.SquadPosition = s.Squads.PositionOf(c.UUID)
	}

	if s.Sidecar != nil {
		s.Sidecar.LoginReady(account.LoginReadyPayload{ClientID: c.UUID})
	}

	return true
}

func (s *Server) applyInput(c *session.Client, cmd session.Command) {
	if !s.ensurePlayerEntity(c) {
		return
	}
	c.MarkInput(uint64(cmd.Bitmask))

	info := s.World.PlayerInfo.Get(c.PlayerInfo)
	phys := s.World.Physical.Get(c.PlayerInfo)
	if info == nil || phys == nil {
		return
	}
	info.InputBitmask = cmd.Bitmask

	const accel = 0.8
	if cmd.Bitmask&InputUp != 0 {
		phys.AY -= accel
	}
	if cmd.Bitmask&InputDown != 0 {
		phys.AY += accel
	}
	if cmd.Bitmask&InputLeft != 0 {
		phys.AX -= accel
	}
	if cmd.Bitmask&InputRight != 0 {
		phys.AX += accel
	}
}

// applyPrivateUpdate steers the flower's facing angle toward the client's
// reported aim position (petal orbit rotates around this facing, spec §4.5).
func (s *Server) applyPrivateUpdate(c *session.Client, cmd session.Command) {
	if c.PlayerInfo.IsNull() {
		return
	}
	phys := s.World.Physical.Get(c.PlayerInfo)
	if phys == nil {
		return
	}
	dx, dy := cmd.PrivateX-phys.X, cmd.PrivateY-phys.Y
	if dx != 0 || dy != 0 {
		phys.Angle = math.Atan2(dy, dx)
	}
}

// applyPetalSwitch retires any live petal entities currently bound to the
// target slot and spawns one fresh live petal entity for the requested
// id/rarity (spec §4.5, §3 Slot).
func (s *Server) applyPetalSwitch(c *session.Client, cmd session.Command) {
	if c.PlayerInfo.IsNull() || cmd.Slot < 0 || cmd.Slot >= ecs.MaxSlots {
		return
	}
	info := s.World.PlayerInfo.Get(c.PlayerInfo)
	if info == nil {
		return
	}
	slot := &info.Slots[cmd.Slot]
	if slot.ID == cmd.PetalID && slot.Rarity == cmd.Rarity {
		return
	}

	for _, petalEntity := range slot.Petals {
		s.World.RequestDeletion(petalEntity)
	}
	slot.Petals = slot.Petals[:0]
	slot.ID = cmd.PetalID
	slot.Rarity = cmd.Rarity
	slot.CooldownTicks = 0

	entity, err := s.World.Alloc()
	if err != nil {
		return
	}
	s.World.Physical.Add(entity)
	rel, _ := s.World.Relations.Add(entity)
	rel.Team = ecs.TeamPlayers
	rel.Owner = c.PlayerInfo
	rel.RootOwner = c.PlayerInfo

	petalComp, _ := s.World.Petal.Add(entity)
	petalComp.ID = cmd.PetalID
	petalComp.Rarity = cmd.Rarity
	petalComp.Slot = cmd.Slot
	petalComp.SpinDir = 1

	slot.Petals = append(slot.Petals, entity)
}

func (s *Server) applySquadJoin(c *session.Client, cmd session.Command) {
	sq, position, err := s.Squads.JoinByCode(c.UUID, cmd.Code)
	if err != nil {
		c.SendClientbound(session.HeaderSquadFail, []byte{byte(session.SquadFailInvalid)})
		return
	}
	if info := s.World.PlayerInfo.Get(c.PlayerInfo); info != nil {
		info.SquadID = sq.ID
		info.SquadPosition = position
	}
}

// applySquadKick runs a kick vote. In SANDBOX builds, a vote against a dev
// session is refused outright rather than counted; outside SANDBOX it is
// not (spec §9 design notes: copied literally, not "fixed").
func (s *Server) applySquadKick(c *session.Client, cmd session.Command) {
	if Sandbox && s.isDev(cmd.TargetClientID) {
		return
	}

	kicked, err := s.Squads.VoteKick(c.UUID, cmd.TargetClientID)
	if err != nil || !kicked {
		return
	}
	s.Hub.Sessions.ForEach(func(id string, target *session.Client) {
		if target.UUID == cmd.TargetClientID {
			target.SendClientbound(session.HeaderSquadLeave, []byte{byte(session.SquadFailKicked)})
			if info := s.World.PlayerInfo.Get(target.PlayerInfo); info != nil {
				info.SquadID = ""
				info.SquadPosition = -1
			}
		}
	})
}

// applyCraft runs a craft batch against the client's per-(id,rarity) PRD
// streak and mirrors the result to the account sidecar (spec §4.7, §6).
func (s *Server) applyCraft(c *session.Client, cmd session.Command) {
	limiter, ok := s.craftLimits[c.UUID]
	if !ok {
		limiter = rate.NewLimiter(craftRateLimit, craftBurst)
		s.craftLimits[c.UUID] = limiter
	}
	if !limiter.Allow() {
		observability.RecordPacketDropped("rate_limit")
		return
	}

	streak, ok := s.streaks[c.UUID]
	if !ok {
		streak = craft.NewStreak()
		s.streaks[c.UUID] = streak
	}

	result := streak.Attempt(s.rng, cmd.PetalID, cmd.Rarity, cmd.Count)

	c.SendClientbound(session.HeaderCraftResult, encodeCraftResult(result))

	if s.Sidecar != nil {
		s.Sidecar.CraftResult(account.CraftResultPayload{
			ClientID: c.UUID,
			PetalID:  int(cmd.PetalID),
			Success:  result.Successes > 0,
		})
	}
}

// encodeCraftResult serializes a craft batch's outcome for the
// clientbound craft_result packet.
func encodeCraftResult(result craft.Result) []byte {
	w := wire.NewWriter(24)
	w.Varuint(uint64(result.Successes))
	w.Varuint(uint64(result.Fails))
	w.Varuint(uint64(result.Attempts))
	w.Float32(float32(result.XP))
	return w.Bytes()
}

func (s *Server) applyChat(c *session.Client, cmd session.Command) {
	sq := s.Squads.Get(c.UUID)
	if sq == nil {
		return
	}
	s.Hub.Sessions.ForEach(func(id string, target *session.Client) {
		if target.UUID == c.UUID {
			return
		}
		if s.blocked[target.UUID][c.UUID] {
			return
		}
		for _, member := range sq.Members {
			if member == target.UUID {
				target.SendClientbound(session.HeaderSquadDump, []byte(cmd.Text))
				return
			}
		}
	})
}

func (s *Server) applyChatBlock(c *session.Client, cmd session.Command) {
	if s.blocked[c.UUID] == nil {
		s.blocked[c.UUID] = make(map[string]bool)
	}
	s.blocked[c.UUID][cmd.TargetClientID] = cmd.Bool1
}

// applyDevCheat runs a dev-only cheat command, honored only for sessions
// whose handshake carried the dev flag (spec §6: SANDBOX further relaxes the
// allowlist gating this, not modeled here since there is no persisted
// uuid allowlist to relax).
func (s *Server) applyDevCheat(c *session.Client, cmd session.Command) {
	if !c.Dev {
		return
	}
	switch cmd.CheatName {
	case "heal":
		if health := s.World.Health.Get(c.PlayerInfo); health != nil {
			health.HP = health.MaxHP
		}
	case "kill":
		if health := s.World.Health.Get(c.PlayerInfo); health != nil {
			health.HP = 0
		}
	}
}
