// Package identity holds the two credentials the registry runs with: the
// ledger authority key that signs asset registrations, and the EdDSA key
// used to mint operator API tokens. The two are deliberately separate —
// compromising an API token must not yield the ledger signing key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Authority is the single process-wide ledger identity permitted to create
// asset records. It is constructed once at startup and passed by reference;
// the seed is read-only after initialization and must never be logged.
type Authority struct {
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// AuthorityFromSeed builds an Authority from a 32-byte hex-encoded ed25519 seed.
func AuthorityFromSeed(seedHex string) (*Authority, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode authority seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("authority seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	return &Authority{key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

// NewAuthority generates a fresh random authority key. Intended for
// development and tests; production deployments load a configured seed.
func NewAuthority() (*Authority, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate authority key: %w", err)
	}
	return &Authority{key: key, pub: pub}, nil
}

// Sign signs a registration payload with the authority key.
func (a *Authority) Sign(payload []byte) []byte {
	return ed25519.Sign(a.key, payload)
}

// PublicKeyHex returns the hex-encoded public key carried in signed payloads.
func (a *Authority) PublicKeyHex() string {
	return hex.EncodeToString(a.pub)
}

// Address returns the ledger address of this authority, derived from the
// public key. Stable for a given key; this is the value the ledger stores
// as recorded_by.
func (a *Authority) Address() string {
	return AddressFromPublicKey(a.pub)
}

// AddressFromPublicKey derives a ledger address from an ed25519 public key:
// "SP" + base32(first 20 bytes of SHA3-256(pubkey)).
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	sum := sha3.Sum256(pub)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return "SP" + enc.EncodeToString(sum[:20])
}

// RegistrationMessage builds the canonical byte message the authority signs
// for one asset registration. Fields are length-prefixed so no two distinct
// (contract, function, args) tuples produce the same message.
func RegistrationMessage(contract, function string, args []string) []byte {
	var buf []byte
	appendField := func(s string) {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	appendField(contract)
	appendField(function)
	buf = binary.AppendUvarint(buf, uint64(len(args)))
	for _, a := range args {
		appendField(a)
	}
	return buf
}

// VerifySignature reports whether sig is a valid authority signature over
// payload by the holder of pubHex.
func VerifySignature(pubHex string, payload, sig []byte) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig)
}
