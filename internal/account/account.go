// Package account implements the account sidecar protocol of spec.md §4.10:
// a WebSocket client connection to an external persistence service carrying
// four outbound message kinds (login-ready, logout, persist, craft-result
// broadcast) and three inbound kinds (alias-set, initial-blob, force-kick).
// The mutex-guarded connection struct with a background reconnect/read loop
// is grounded on internal/kick/service.go's Service (OAuth/token-refresh
// client with a status flag and RWMutex-guarded fields), generalized from
// HTTP+webhook to a persistent gorilla/websocket client; structured logging
// uses go.uber.org/zap per this repo's account-sidecar ambient stack choice
// (distinct from the core server's stdlib logger, since the sidecar runs as
// its own process/binary).
package account

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageKind enumerates the sidecar protocol's message types.
type MessageKind string

const (
	// Outbound (server -> sidecar).
	KindLoginReady    MessageKind = "login_ready"
	KindLogout        MessageKind = "logout"
	KindPersist       MessageKind = "persist"
	KindCraftResult   MessageKind = "craft_result"

	// Inbound (sidecar -> server).
	KindAliasSet    MessageKind = "alias_set"
	KindInitialBlob MessageKind = "initial_blob"
	KindForceKick   MessageKind = "force_kick"
)

// Envelope is the wire shape for every sidecar message: a kind tag plus a
// raw payload the caller decodes according to Kind.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// LoginReadyPayload announces a newly authenticated client to the sidecar.
type LoginReadyPayload struct {
	ClientID string `json:"client_id"`
	Identity string `json:"identity"` // opaque identity-service handle
}

// LogoutPayload announces a client's disconnection.
type LogoutPayload struct {
	ClientID string `json:"client_id"`
}

// PersistPayload carries a client's serialized inventory/progress state for
// durable storage.
type PersistPayload struct {
	ClientID string          `json:"client_id"`
	Blob     json.RawMessage `json:"blob"`
}

// CraftResultPayload broadcasts a completed craft attempt's outcome so the
// sidecar can update any cross-session leaderboard/telemetry it keeps.
type CraftResultPayload struct {
	ClientID string  `json:"client_id"`
	PetalID  int     `json:"petal_id"`
	Success  bool    `json:"success"`
	Roll     float64 `json:"roll"`
}

// AliasSetPayload is pushed by the sidecar to assign a client's display name.
type AliasSetPayload struct {
	ClientID string `json:"client_id"`
	Alias    string `json:"alias"`
}

// InitialBlobPayload delivers a client's previously persisted state on login.
type InitialBlobPayload struct {
	ClientID string          `json:"client_id"`
	Blob     json.RawMessage `json:"blob"`
}

// ForceKickPayload instructs the server to disconnect a client immediately,
// e.g. because the same identity logged in elsewhere.
type ForceKickPayload struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// Handlers dispatches the three inbound message kinds to caller logic.
type Handlers struct {
	OnAliasSet    func(AliasSetPayload)
	OnInitialBlob func(InitialBlobPayload)
	OnForceKick   func(ForceKickPayload)
}

// Client manages one long-lived WebSocket connection to the account
// persistence service, reconnecting with backoff on drop.
type Client struct {
	url      string
	log      *zap.Logger
	handlers Handlers

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	sendCh    chan Envelope
	closeCh   chan struct{}
}

// NewClient creates a sidecar client. Call Run in its own goroutine to start
// the connect/reconnect loop; it is the one background goroutine the server
// process runs for blocking I/O outside the tick loop (spec §5 design
// notes).
func NewClient(url string, logger *zap.Logger, handlers Handlers) *Client {
	return &Client{
		url:      url,
		log:      logger,
		handlers: handlers,
		sendCh:   make(chan Envelope, 256),
		closeCh:  make(chan struct{}),
	}
}

// Run connects and reconnects with exponential backoff until Close is
// called. Intended to run in its own goroutine; it never touches the ECS
// world directly, only enqueuing decoded inbound messages through handlers.
func (c *Client) Run() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Warn("account sidecar dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-c.closeCh:
				return
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		c.log.Info("account sidecar connected")
		c.setConn(conn)
		c.serve(conn)
		c.setConn(nil)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.connected = conn != nil
}

// serve runs the read loop and writer for one connection lifetime, blocking
// until the connection drops or Close is called.
func (c *Client) serve(conn *websocket.Conn) {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			c.dispatch(data)
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case <-c.closeCh:
			conn.Close()
			return
		case env := <-c.sendCh:
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("account sidecar: malformed envelope", zap.Error(err))
		return
	}

	switch env.Kind {
	case KindAliasSet:
		var p AliasSetPayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnAliasSet != nil {
			c.handlers.OnAliasSet(p)
		}
	case KindInitialBlob:
		var p InitialBlobPayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnInitialBlob != nil {
			c.handlers.OnInitialBlob(p)
		}
	case KindForceKick:
		var p ForceKickPayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnForceKick != nil {
			c.handlers.OnForceKick(p)
		}
	default:
		c.log.Warn("account sidecar: unknown message kind", zap.String("kind", string(env.Kind)))
	}
}

// send enqueues an outbound envelope, dropping it if the queue is full
// rather than blocking the caller's tick loop (spec's backpressure rule
// applied symmetrically to the sidecar link).
func (c *Client) send(kind MessageKind, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{Kind: kind, Payload: raw}
	select {
	case c.sendCh <- env:
		return nil
	default:
		return fmt.Errorf("account: sidecar send queue full, dropped %s", kind)
	}
}

// LoginReady notifies the sidecar of a newly authenticated client.
func (c *Client) LoginReady(p LoginReadyPayload) error { return c.send(KindLoginReady, p) }

// Logout notifies the sidecar of a client disconnection.
func (c *Client) Logout(p LogoutPayload) error { return c.send(KindLogout, p) }

// Persist sends a client's serialized state for durable storage.
func (c *Client) Persist(p PersistPayload) error { return c.send(KindPersist, p) }

// CraftResult broadcasts a completed craft attempt's outcome.
func (c *Client) CraftResult(p CraftResultPayload) error { return c.send(KindCraftResult, p) }

// Connected reports whether the sidecar link is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close stops the reconnect loop and closes any active connection.
func (c *Client) Close() {
	close(c.closeCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}
