// Package squad implements the 4-member room model of spec.md §4.9:
// ownership, join-by-code, and majority kick votes. The mutex-guarded
// manager keyed by id, with a member set and a leader/owner field, is
// grounded directly on internal/game/team.go's TeamManager/Team; join-by-code
// and kick-vote quorum are new per the spec and built in the same style
// (lock, validate, mutate, unlock).
package squad

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// MaxMembers is the hard cap on squad size (spec §4.9).
const MaxMembers = 4

// KickVoteWindow bounds how long a kick vote stays open before expiring.
const KickVoteWindow = 30 * time.Second

// codeAlphabet avoids visually ambiguous characters (0/O, 1/I) for
// join codes read aloud or typed by players.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Squad is one up-to-4-player room.
type Squad struct {
	ID        string
	Code      string
	OwnerID   string
	Members   []string // client ids, in join order; Members[0] need not be owner after a kick
	CreatedAt time.Time

	// kickVotes maps the target client id to the set of voters.
	kickVotes map[string]map[string]time.Time
}

// Manager owns every live squad, indexed by id and by join code.
type Manager struct {
	mu       sync.RWMutex
	byID     map[string]*Squad
	byCode   map[string]*Squad
	memberOf map[string]*Squad // client id -> squad
}

// NewManager creates an empty squad manager.
func NewManager() *Manager {
	return &Manager{
		byID:     make(map[string]*Squad),
		byCode:   make(map[string]*Squad),
		memberOf: make(map[string]*Squad),
	}
}

// Create makes a new squad owned by ownerID, generating a unique join code.
func (m *Manager) Create(ownerID string) (*Squad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, already := m.memberOf[ownerID]; already {
		return nil, fmt.Errorf("squad: already in a squad")
	}

	code, err := m.newCodeLocked()
	if err != nil {
		return nil, err
	}

	sq := &Squad{
		ID:        fmt.Sprintf("squad_%s_%d", ownerID, time.Now().UnixNano()),
		Code:      code,
		OwnerID:   ownerID,
		Members:   []string{ownerID},
		CreatedAt: time.Now(),
		kickVotes: make(map[string]map[string]time.Time),
	}

	m.byID[sq.ID] = sq
	m.byCode[sq.Code] = sq
	m.memberOf[ownerID] = sq
	return sq, nil
}

func (m *Manager) newCodeLocked() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		buf := make([]byte, 5)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := make([]byte, len(buf))
		for i, b := range buf {
			code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
		}
		candidate := string(code)
		if _, taken := m.byCode[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("squad: could not allocate a unique join code")
}

// JoinByCode adds clientID to the squad identified by code.
func (m *Manager) JoinByCode(clientID, code string) (*Squad, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, already := m.memberOf[clientID]; already {
		return nil, 0, fmt.Errorf("squad: already in a squad")
	}

	sq, ok := m.byCode[code]
	if !ok {
		return nil, 0, fmt.Errorf("squad: invalid code")
	}
	if len(sq.Members) >= MaxMembers {
		return nil, 0, fmt.Errorf("squad: full")
	}

	position := len(sq.Members)
	sq.Members = append(sq.Members, clientID)
	m.memberOf[clientID] = sq
	return sq, position, nil
}

// PositionOf returns clientID's slot index within its squad, or -1 if it is
// not a squad member.
func (m *Manager) PositionOf(clientID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sq, ok := m.memberOf[clientID]
	if !ok {
		return -1
	}
	for i, member := range sq.Members {
		if member == clientID {
			return i
		}
	}
	return -1
}

// Leave removes clientID from its squad, disbanding it if empty and
// transferring ownership to the next member if the owner left (mirrors
// TeamManager.LeaveTeam's disband-or-transfer rule).
func (m *Manager) Leave(clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sq, ok := m.memberOf[clientID]
	if !ok {
		return fmt.Errorf("squad: not in a squad")
	}
	m.removeMemberLocked(sq, clientID)

	if len(sq.Members) == 0 {
		delete(m.byID, sq.ID)
		delete(m.byCode, sq.Code)
		return nil
	}
	if sq.OwnerID == clientID {
		sq.OwnerID = sq.Members[0]
	}
	return nil
}

func (m *Manager) removeMemberLocked(sq *Squad, clientID string) {
	for i, member := range sq.Members {
		if member == clientID {
			sq.Members = append(sq.Members[:i], sq.Members[i+1:]...)
			break
		}
	}
	delete(m.memberOf, clientID)
	delete(sq.kickVotes, clientID)
	for _, voters := range sq.kickVotes {
		delete(voters, clientID)
	}
}

// VoteKick registers voterID's vote to remove targetID. A kick executes once
// a strict majority of the squad's OTHER members (excluding the target) have
// voted within the window (spec §4.9).
func (m *Manager) VoteKick(voterID, targetID string) (kicked bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sq, ok := m.memberOf[voterID]
	if !ok {
		return false, fmt.Errorf("squad: voter not in a squad")
	}
	if m.memberOf[targetID] != sq {
		return false, fmt.Errorf("squad: target not in voter's squad")
	}
	if voterID == targetID {
		return false, fmt.Errorf("squad: cannot vote to kick yourself")
	}

	now := time.Now()
	votes, ok := sq.kickVotes[targetID]
	if !ok {
		votes = make(map[string]time.Time)
		sq.kickVotes[targetID] = votes
	}
	for id, castAt := range votes {
		if now.Sub(castAt) > KickVoteWindow {
			delete(votes, id)
		}
	}
	votes[voterID] = now

	others := len(sq.Members) - 1
	needed := others/2 + 1
	if len(votes) < needed {
		return false, nil
	}

	m.removeMemberLocked(sq, targetID)
	if sq.OwnerID == targetID && len(sq.Members) > 0 {
		sq.OwnerID = sq.Members[0]
	}
	delete(sq.kickVotes, targetID)
	return true, nil
}

// TransferOwnership reassigns a squad's owner from currentOwnerID to
// newOwnerID, both already members, failing if currentOwnerID is not
// actually the owner (spec §4.9 ownership transfer).
func (m *Manager) TransferOwnership(currentOwnerID, newOwnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sq, ok := m.memberOf[currentOwnerID]
	if !ok || sq.OwnerID != currentOwnerID {
		return fmt.Errorf("squad: not the owner")
	}
	if m.memberOf[newOwnerID] != sq {
		return fmt.Errorf("squad: target not a member")
	}
	sq.OwnerID = newOwnerID
	return nil
}

// Get returns the squad a client belongs to, or nil.
func (m *Manager) Get(clientID string) *Squad {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memberOf[clientID]
}
