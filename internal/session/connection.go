package session

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fight-club/internal/ecs"
	"fight-club/internal/observability"
	"fight-club/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Command is one decoded serverbound packet, queued for the tick loop to
// apply in arrival order (spec §5: "inputs are applied in the order
// received"). Only the fields relevant to Header are populated; the rest
// sit at their zero value.
type Command struct {
	ConnID string
	Header ServerboundHeader

	Bitmask        uint32 // HeaderInput
	Slot           int    // HeaderPetalSwitch, HeaderSquadUpdate (secondary toggle)
	PetalID        ecs.PetalID
	Rarity         ecs.Rarity
	Count          int    // HeaderPetalsCraft
	Code           string // HeaderSquadJoin
	TargetClientID string // HeaderSquadKick, HeaderSquadTransferOwnership
	Text           string // HeaderChat
	CheatName      string // HeaderDevCheat
	Bool1          bool   // HeaderSquadReady, HeaderExposeCodeUpdate, HeaderChatBlock
	PrivateX       float64
	PrivateY       float64
}

// decodeCommand parses a serverbound packet body (already decrypted) given
// its header byte.
func decodeCommand(connID string, header ServerboundHeader, body []byte) Command {
	r := wire.NewReader(body)
	cmd := Command{ConnID: connID, Header: header}

	switch header {
	case HeaderInput:
		cmd.Bitmask = r.Uint32()
	case HeaderPetalSwitch:
		cmd.Slot = int(r.Uint8())
		cmd.PetalID = ecs.PetalID(r.Varuint())
		cmd.Rarity = ecs.Rarity(r.Uint8())
	case HeaderSquadJoin:
		cmd.Code = r.FixedString(8)
	case HeaderSquadReady:
		cmd.Bool1 = r.Bool()
	case HeaderSquadUpdate:
		cmd.Slot = int(r.Uint8())
	case HeaderPrivateUpdate:
		cmd.PrivateX = float64(r.Float32())
		cmd.PrivateY = float64(r.Float32())
	case HeaderExposeCodeUpdate:
		cmd.Bool1 = r.Bool()
	case HeaderSquadKick, HeaderSquadTransferOwnership:
		cmd.TargetClientID = r.String()
	case HeaderPetalsCraft:
		cmd.PetalID = ecs.PetalID(r.Varuint())
		cmd.Rarity = ecs.Rarity(r.Uint8())
		cmd.Count = int(r.Varuint())
	case HeaderChat:
		cmd.Text = r.String()
	case HeaderChatBlock:
		cmd.TargetClientID = r.String()
		cmd.Bool1 = r.Bool()
	case HeaderDevCheat:
		cmd.CheatName = r.String()
	}
	return cmd
}

// Hub owns the full set of connected clients plus the inbound command
// channel the tick loop drains once per tick. The register/unregister/run
// shape is grounded on internal/api/websocket.go's WebSocketHub, generalized
// from a JSON broadcast hub to per-client encrypted binary frames consumed by
// a single-owner tick loop rather than pushed out on receipt.
type Hub struct {
	Sessions *Manager

	mu     sync.Mutex
	nextID uint64

	Inbound chan Command

	rng *rand.Rand
}

// NewHub creates an empty connection hub.
func NewHub() *Hub {
	return &Hub{
		Sessions: NewManager(),
		Inbound:  make(chan Command, 4096),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HandleUpgrade upgrades an HTTP request to a WebSocket, performs the
// obscured handshake, and spawns the connection's read loop. Called from the
// HTTP server's route handler (spec §4.7, §6 External interfaces).
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session: upgrade failed: %v", err)
		return
	}

	keys := NewSessionKeys(h.rng)
	frame := BuildHandshakeFrame(keys)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		conn.Close()
		return
	}

	_, helloFrame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	revealed := make([]byte, len(helloFrame))
	copy(revealed, helloFrame)
	wire.ObscureHandshake(revealed)

	hello, err := ParseClientHello(revealed)
	if err != nil || hello.EchoedVerification != keys.RequestedVerify {
		log.Printf("⚠️ session: handshake verification failed")
		conn.Close()
		return
	}

	client := NewClient(conn, keys.ClientboundKey, keys.ServerboundKey, wire.RR_SECRET8)
	client.UUID = hello.UUID
	client.Dev = hello.Dev

	h.mu.Lock()
	h.nextID++
	connID := hello.UUID
	if connID == "" {
		connID = fmt.Sprintf("anon-%d", h.nextID)
	}
	h.mu.Unlock()

	resumed, didResume := h.Sessions.Register(connID, client)
	if didResume {
		log.Printf("📱 session resumed for %s", connID)
	} else {
		log.Printf("📱 session established for %s", connID)
	}

	go h.readLoop(connID, resumed.connFor(conn))
}

// readLoop is the per-connection background goroutine: it decrypts and
// decodes every inbound frame and pushes it to h.Inbound for the tick loop,
// the one place per spec §5 where blocking socket I/O happens outside the
// fixed tick boundary.
func (h *Hub) readLoop(connID string, conn *websocket.Conn) {
	defer func() {
		h.Sessions.Unregister(connID)
		log.Printf("📱 session %s disconnected, entering grace window", connID)
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(frame) == 0 {
			continue
		}

		c := h.clientFor(connID)
		if c == nil {
			return
		}

		quickByte := frame[0]
		body := frame[1:]
		if len(body) > 0 {
			header := ServerboundHeader(body[0])
			payload := body[1:]
			c.DecryptServerbound(payload)
			if !c.CheckQuickVerification(quickByte) {
				c.RequestKick("quick verification mismatch")
				return
			}
			if !c.AllowInbound() {
				observability.RecordPacketDropped("rate_limit")
				continue
			}
			h.Inbound <- decodeCommand(connID, header, payload)
		}
	}
}

func (h *Hub) clientFor(connID string) *Client {
	var found *Client
	h.Sessions.ForEach(func(id string, c *Client) {
		if id == connID {
			found = c
		}
	})
	return found
}

// connFor swaps in the live socket for a resumed session (the underlying
// *websocket.Conn changes across a reconnect even though the Client struct
// persists).
func (c *Client) connFor(conn *websocket.Conn) *websocket.Conn {
	c.conn = conn
	return conn
}

// FlushQueue drains and writes a client's queued outbound frames over its
// socket. Called once per tick per connected client by the tick loop (spec
// §5: "writes append to the queue, the WS-writable callback drains").
func (h *Hub) FlushQueue(c *Client) error {
	frames := c.DrainQueue()
	for _, frame := range frames {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return err
		}
	}
	return nil
}
