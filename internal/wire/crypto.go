package wire

import (
	"encoding/binary"

	"golang.org/x/crypto/salsa20/salsa"
)

// Rolling key hash constants. These are hard-coded per the wire contract so
// that existing clients remain compatible; never derive them at runtime.
const (
	hashMultiplier uint64 = 0x9E3779B97F4A7C15
	hashXorConstant uint64 = 0xBF58476D1CE4E5B9
	hashRotate      uint   = 31
)

// HashKey advances a rolling key/verification byte one step. Applied once
// per outbound message on the sender side, and twice per inbound message on
// the receiver side (see rollingState in internal/session), so both peers track
// the same sequence even across silent ticks.
func HashKey(key uint64) uint64 {
	key ^= key >> hashRotate
	key *= hashMultiplier
	key ^= key >> 29
	key *= hashXorConstant
	key ^= key >> 32
	return key
}

// HashKeyN applies HashKey n times, used to verify rolling-key agreement in
// tests (spec §8 testable property 4).
func HashKeyN(key uint64, n int) uint64 {
	for i := 0; i < n; i++ {
		key = HashKey(key)
	}
	return key
}

// NextQuickVerification advances the one-byte quick-verification sequence
// using the same hash, truncated to a byte. Prefixed on every
// client-to-server packet (spec §4.7).
func NextQuickVerification(prev byte) byte {
	return byte(HashKey(uint64(prev)))
}

// RR_SECRET8 is the hard-coded seed for the quick-verification byte sequence.
// Preserved bit-exact per spec §9 design notes.
const RR_SECRET8 byte = 0x5A

// Keystream produces a byte stream from a rolling 64-bit key by hashing the
// key forward and extracting bytes. Used both to XOR the handshake frame
// here and, by the session package, to encrypt/decrypt steady-state packet
// bodies with the per-direction rolling key.
type Keystream struct {
	key uint64
}

// NewKeystream creates a Keystream starting from key.
func NewKeystream(key uint64) *Keystream { return &Keystream{key: key} }

func newKeystream(key uint64) *Keystream { return NewKeystream(key) }

// XOR encrypts/decrypts buf in place using 8 bytes of keystream per key
// advance, hashing the key forward after each 8-byte block.
func (k *Keystream) XOR(buf []byte) {
	for i := 0; i < len(buf); i += 8 {
		var block [8]byte
		binary.LittleEndian.PutUint64(block[:], k.key)
		end := i + 8
		if end > len(buf) {
			end = len(buf)
		}
		for j := i; j < end; j++ {
			buf[j] ^= block[j-i]
		}
		k.key = HashKey(k.key)
	}
}

// Key returns the current rolling key value.
func (k *Keystream) Key() uint64 { return k.key }

// obscureSeeds are the four hard-coded constants used, in fixed order, to
// obscure the 1024-byte handshake packet before any rolling key exists.
// Preserved bit-exact so existing clients can still derive the session keys
// (spec §9).
var obscureSeeds = [4]uint64{
	0xA5A5A5A5DEADBEEF,
	0x0123456789ABCDEF,
	0xFEEDFACECAFEBABE,
	0x1122334455667788,
}

// ObscureHandshake applies the four fixed keystream passes over the 1024-byte
// handshake frame, in the order the client expects to reverse them, then
// layers the salsa20-derived block cipher pass on top.
func ObscureHandshake(frame []byte) {
	for _, seed := range obscureSeeds {
		ks := newKeystream(seed)
		ks.XOR(frame)
	}
	obscureBlock(frame, obscureSeeds[0]^obscureSeeds[3])
}

// obscureBlock is an additional salsa20 block-cipher layer mixed into the
// handshake obscuring, giving the fixed XOR passes a real cryptographic
// primitive rather than pure hand-rolled diffusion for the bulk of the
// 1024-byte frame. Applied after the four XOR passes, so the bytes sent are
// the four-pass result further XORed with this salsa20 stream; a peer has to
// apply both layers to recover the frame.
func obscureBlock(frame []byte, seed uint64) {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], seed^obscureSeeds[0])
	binary.LittleEndian.PutUint64(key[16:24], seed^obscureSeeds[1])
	binary.LittleEndian.PutUint64(key[24:32], seed^obscureSeeds[2])

	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], obscureSeeds[3])

	var subKey [32]byte
	salsa.HSalsa20(&subKey, &nonce, &key, &salsa.Sigma)

	var counter [16]byte
	var out [64]byte
	for off := 0; off < len(frame); off += 64 {
		binary.LittleEndian.PutUint64(counter[0:8], uint64(off/64))
		salsa.Core(&out, &counter, &subKey, &salsa.Sigma)
		end := off + 64
		if end > len(frame) {
			end = len(frame)
		}
		for i := off; i < end; i++ {
			frame[i] ^= out[i-off]
		}
	}
}

// ClientboundKeys holds the pair of rolling keys established during the
// handshake: one for server->client traffic, one the server expects to use
// to verify client->server quick-verification agreement.
type ClientboundKeys struct {
	Clientbound uint64
	Serverbound uint64
	QuickVerify byte
}
