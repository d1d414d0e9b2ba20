// Package session implements the per-client WebSocket protocol of
// spec.md §4.7: the obscured 1024-byte handshake, the rolling-keystream
// steady state with its quick-verification byte, packet header enums, and
// the per-client outgoing queue with backpressure. The connection
// lifecycle (mutex-guarded register/unregister on a Manager, a background read
// goroutine feeding a single-owner loop) is grounded on
// internal/api/websocket.go's WebSocketHub, generalized from a JSON
// broadcast hub to per-client binary encrypted frames drained once per
// tick rather than broadcast immediately.
package session

import (
	"fmt"
	"time"

	"fight-club/internal/wire"
)

// ClientboundHeader enumerates the server->client packet kinds (spec §4.7).
type ClientboundHeader uint8

const (
	HeaderUpdate ClientboundHeader = iota
	HeaderSquadDump
	HeaderAnimationUpdate
	HeaderSquadFail
	HeaderSquadLeave
	HeaderAccountResult
	HeaderCraftResult
)

// ServerboundHeader enumerates the client->server packet kinds.
type ServerboundHeader uint8

const (
	HeaderInput ServerboundHeader = iota
	HeaderPetalSwitch
	HeaderSquadJoin
	HeaderSquadReady
	HeaderSquadUpdate
	HeaderPrivateUpdate
	HeaderExposeCodeUpdate
	HeaderSquadKick
	HeaderSquadTransferOwnership
	HeaderPetalsCraft
	HeaderChat
	HeaderChatBlock
	HeaderDevCheat
)

// SquadFailReason enumerates the squad_fail frame's reason codes.
type SquadFailReason uint8

const (
	SquadFailInvalid SquadFailReason = iota
	SquadFailFull
	SquadFailKicked
	SquadFailAFK
)

// HandshakeFrameSize is the fixed size of the obscured first server->client
// packet (spec §4.7).
const HandshakeFrameSize = 1024

// MaxQueuedMessages is the backpressure threshold: exceeding it force-kicks
// the client (spec §5).
const MaxQueuedMessages = 512

// GraceWindow is how long a disconnected client's PlayerInfo survives,
// available for reconnect-resume by matching uuid (spec §5).
const GraceWindow = 60 * time.Second

// AFKTimeout is how long a client may send zero input delta before being
// squad_fail(3)-kicked (spec §5): 10 real minutes at 25 ticks/sec.
const AFKTimeout = 10 * time.Minute

// handshakeKeys are the server's half of a freshly negotiated session: the
// nonce, the requested verification value, and the clientbound/serverbound
// rolling keys. The quick-verification seed is the fixed wire.RR_SECRET8.
type handshakeKeys struct {
	Nonce             uint32
	RequestedVerify   uint64
	ClientboundKey    uint64
	ServerboundKey    uint64
}

// BuildHandshakeFrame writes the fixed 1024-byte first packet: requested
// verification (u64), nonce (u32), clientbound key (u64), serverbound key
// (u64), zero-padded to HandshakeFrameSize, then obscured in place with the
// four fixed keystream passes plus the salsa20 layer (spec §4.7).
func BuildHandshakeFrame(keys handshakeKeys) []byte {
	w := wire.NewWriter(HandshakeFrameSize)
	w.Uint64(keys.RequestedVerify)
	w.Uint32(keys.Nonce)
	w.Uint64(keys.ClientboundKey)
	w.Uint64(keys.ServerboundKey)

	frame := make([]byte, HandshakeFrameSize)
	copy(frame, w.Bytes())
	wire.ObscureHandshake(frame)
	return frame
}

// ClientHello is the decoded first client->server packet (spec §4.7).
type ClientHello struct {
	Nonce             uint64
	EchoedVerification uint64
	RivetToken        string
	UUID              string
	Dev               bool
}

// ParseClientHello decodes the client's first packet, already de-obscured
// by the caller with wire.ObscureHandshake, the same four keystream passes
// plus salsa20 layer (the handshake frame is symmetric: obscuring twice with
// the same seeds restores the plaintext).
func ParseClientHello(frame []byte) (ClientHello, error) {
	r := wire.NewReader(frame)
	hello := ClientHello{
		Nonce:              r.Uint64(),
		EchoedVerification: r.Uint64(),
	}
	hello.RivetToken = r.String()
	hello.UUID = r.String()
	hello.Dev = r.Varuint() != 0
	if r.Err() != nil {
		return ClientHello{}, fmt.Errorf("session: malformed client hello: %w", r.Err())
	}
	return hello, nil
}

// rollingState tracks both directions' rolling keys and the session's quick
// verification byte sequence.
type rollingState struct {
	clientbound uint64 // server encrypts clientbound traffic with this
	serverbound uint64 // server decrypts serverbound traffic with this
	quickVerify byte
}

// advanceOutbound hashes the clientbound key forward once, the rule applied
// after every server->client send (spec §4.7).
func (r *rollingState) advanceOutbound() {
	r.clientbound = wire.HashKey(r.clientbound)
}

// advanceInboundTwice hashes the serverbound key forward twice, the rule
// applied for every packet the server *receives*, keeping both ends in
// sync even across silent ticks where the client sends nothing.
func (r *rollingState) advanceInboundTwice() {
	r.serverbound = wire.HashKeyN(r.serverbound, 2)
}

// advanceQuickVerify hashes the quick-verification byte forward, applied
// once per received client packet.
func (r *rollingState) advanceQuickVerify() byte {
	r.quickVerify = wire.NextQuickVerification(r.quickVerify)
	return r.quickVerify
}
