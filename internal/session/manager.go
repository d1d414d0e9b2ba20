package session

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"fight-club/internal/ecs"
	"fight-club/internal/wire"
)

// inboundRateLimit bounds how many serverbound packets one connection may
// submit per second before readLoop starts dropping them (spec §7: a
// flooding client degrades gracefully rather than starving the tick loop).
const inboundRateLimit = 60
const inboundBurst = 120

// Client is one connected player's session state: its socket, rolling
// encryption state, outgoing queue, and the bookkeeping needed for
// reconnect-resume and AFK detection.
type Client struct {
	conn    *websocket.Conn
	keys    rollingState
	limiter *rate.Limiter

	UUID       string
	Dev        bool
	Alias      string // display name pushed by the account sidecar's alias_set message
	PlayerInfo ecs.Entity // nullable; adopted on reconnect-resume

	queueMu sync.Mutex
	queue   [][]byte

	LastInputAt   time.Time
	LastInputHash uint64 // cheap fingerprint of the last input packet's fields

	disconnectedAt time.Time
	disconnected   bool

	pendingKick   bool
	kickReason    string
}

// NewClient wires a fresh Client around an upgraded WebSocket connection and
// a freshly rolled pair of session keys.
func NewClient(conn *websocket.Conn, clientbound, serverbound uint64, quickVerify byte) *Client {
	return &Client{
		conn:        conn,
		keys:        rollingState{clientbound: clientbound, serverbound: serverbound, quickVerify: quickVerify},
		limiter:     rate.NewLimiter(inboundRateLimit, inboundBurst),
		LastInputAt: time.Now(),
	}
}

// AllowInbound reports whether another serverbound packet may be accepted
// this instant, consuming one token from the per-connection rate limiter.
func (c *Client) AllowInbound() bool { return c.limiter.Allow() }

// Enqueue appends an already-encoded, already-encrypted frame to the
// client's outgoing queue. Returns false if the queue is over
// MaxQueuedMessages, signaling the caller to force-kick (spec §5
// backpressure rule).
func (c *Client) Enqueue(frame []byte) (ok bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) >= MaxQueuedMessages {
		return false
	}
	c.queue = append(c.queue, frame)
	return true
}

// DrainQueue removes and returns every currently queued frame, the
// WS-writable callback's job per spec §5 ("writes from the game loop
// append, the WS-writable callback drains").
func (c *Client) DrainQueue() [][]byte {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	drained := c.queue
	c.queue = nil
	return drained
}

// QueueLen reports the current backlog size.
func (c *Client) QueueLen() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}

// SendClientbound encrypts body with the clientbound keystream, prefixes
// the header byte, queues the frame, and advances the rolling key (spec
// §4.7: "after each send the key is hashed"). If the queue is already at
// MaxQueuedMessages the frame is dropped and a kick is requested.
func (c *Client) SendClientbound(header ClientboundHeader, body []byte) bool {
	frame := make([]byte, 1+len(body))
	frame[0] = byte(header)
	copy(frame[1:], body)

	wire.NewKeystream(c.keys.clientbound).XOR(frame[1:])
	c.keys.advanceOutbound()

	if !c.Enqueue(frame) {
		c.RequestKick("outgoing queue full")
		return false
	}
	return true
}

// DecryptServerbound reverses the serverbound keystream over a received
// frame's body in place, then advances the serverbound key twice (every
// received packet hashes the key twice, spec §4.7) so both ends stay in
// sync even across ticks where the client sends nothing.
func (c *Client) DecryptServerbound(body []byte) {
	wire.NewKeystream(c.keys.serverbound).XOR(body)
	c.keys.advanceInboundTwice()
}

// CheckQuickVerification advances the session's expected quick-verification
// byte and reports whether it matches the value the client prefixed on this
// packet (spec §4.7: mismatch kills the session).
func (c *Client) CheckQuickVerification(received byte) bool {
	return c.keys.advanceQuickVerify() == received
}

// MarkInput records that a fresh input packet arrived, resetting the AFK
// timer whenever the input actually differs from the last one (spec §5:
// "10 real minutes of zero input delta").
func (c *Client) MarkInput(fingerprint uint64) {
	if fingerprint != c.LastInputHash {
		c.LastInputAt = time.Now()
	}
	c.LastInputHash = fingerprint
}

// IsAFK reports whether the client has exceeded AFKTimeout with no input
// change.
func (c *Client) IsAFK(now time.Time) bool {
	return now.Sub(c.LastInputAt) >= AFKTimeout
}

// MarkDisconnected starts the grace window clock; PlayerInfo is preserved
// until Manager.SweepExpiredGrace reaps it.
func (c *Client) MarkDisconnected() {
	c.disconnected = true
	c.disconnectedAt = time.Now()
}

// GraceExpired reports whether a disconnected client's grace window has
// elapsed.
func (c *Client) GraceExpired(now time.Time) bool {
	return c.disconnected && now.Sub(c.disconnectedAt) >= GraceWindow
}

// RequestKick sets the pending_kick flag the spec calls the single channel
// by which background tasks (and, here, any detection logic) signal the
// tick loop to close a session.
func (c *Client) RequestKick(reason string) {
	c.pendingKick = true
	c.kickReason = reason
}

// PendingKick reports whether a kick has been requested and, if so, its
// reason.
func (c *Client) PendingKick() (bool, string) { return c.pendingKick, c.kickReason }

// Manager owns every connected (and grace-window-pending) client.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client // keyed by a manager-assigned connection id
	byUUID  map[string]*Client // keyed by account uuid, for reconnect-resume
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		byUUID:  make(map[string]*Client),
	}
}

// Register adds a newly handshaken client under connID, adopting any
// grace-window session with the same uuid if present (reconnect-resume,
// spec §5).
func (m *Manager) Register(connID string, c *Client) (resumed *Client, didResume bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byUUID[c.UUID]; ok && existing.disconnected {
		existing.disconnected = false
		existing.conn = c.conn
		existing.keys = c.keys
		existing.LastInputAt = time.Now()
		m.clients[connID] = existing
		m.byUUID[c.UUID] = existing
		return existing, true
	}

	m.clients[connID] = c
	if c.UUID != "" {
		m.byUUID[c.UUID] = c
	}
	return c, false
}

// Unregister marks connID's client disconnected (starting its grace window)
// rather than deleting it outright, so a reconnect can resume it.
func (m *Manager) Unregister(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[connID]
	if !ok {
		return
	}
	c.MarkDisconnected()
	delete(m.clients, connID)
}

// SweepExpiredGrace returns every client whose grace window has elapsed and
// removes them from byUUID, so the caller can free their PlayerInfo and
// leave their squad (spec §5).
func (m *Manager) SweepExpiredGrace(now time.Time) []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*Client
	for uuid, c := range m.byUUID {
		if c.GraceExpired(now) {
			expired = append(expired, c)
			delete(m.byUUID, uuid)
		}
	}
	return expired
}

// ForEach visits every currently connected (non-grace-window) client.
func (m *Manager) ForEach(visit func(connID string, c *Client)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.clients {
		visit(id, c)
	}
}

// Count returns the number of currently connected clients.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// NewSessionKeys rolls a fresh nonce/verification/key set for a new
// handshake using a non-cryptographic PRNG: these are session-scoped
// obfuscation keys, not security-critical secrets, matching the spec's
// "obscuring" rather than confidentiality framing.
func NewSessionKeys(rng *rand.Rand) handshakeKeys {
	return handshakeKeys{
		Nonce:           rng.Uint32(),
		RequestedVerify: rng.Uint64(),
		ClientboundKey:  rng.Uint64(),
		ServerboundKey:  rng.Uint64(),
	}
}

// LogKick is a small helper matching the teacher's emoji-prefixed lifecycle
// logging convention (internal/api/websocket.go's "📱 Client connected...").
func LogKick(uuid, reason string) {
	log.Printf("⚠️ client %s kicked: %s", uuid, reason)
}
