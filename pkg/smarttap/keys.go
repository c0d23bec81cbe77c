package smarttap

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
)

// TerminalKeys holds the terminal's ephemeral P-256 key pair for a single
// session. The compressed public form is precomputed because it feeds both
// the negotiate command and the HKDF info string, which must use identical
// bytes.
type TerminalKeys struct {
	Private          *ecdh.PrivateKey
	PublicCompressed []byte
}

// GenerateTerminalKeys creates a fresh ephemeral key pair. A key pair is
// used for exactly one session.
func GenerateTerminalKeys() (*TerminalKeys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating terminal key: %w", err)
	}
	return NewTerminalKeys(priv)
}

// NewTerminalKeys wraps an existing private key, computing the 33-byte
// compressed form of its public key.
func NewTerminalKeys(priv *ecdh.PrivateKey) (*TerminalKeys, error) {
	pub := priv.PublicKey().Bytes()
	// ecdh encodes P-256 public keys uncompressed: 0x04 || X || Y.
	if len(pub) != 65 || pub[0] != 0x04 {
		return nil, fmt.Errorf("unexpected public key encoding (%d bytes)", len(pub))
	}
	x := new(big.Int).SetBytes(pub[1:33])
	y := new(big.Int).SetBytes(pub[33:65])
	return &TerminalKeys{
		Private:          priv,
		PublicCompressed: elliptic.MarshalCompressed(elliptic.P256(), x, y),
	}, nil
}
