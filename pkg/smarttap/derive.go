package smarttap

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SessionContext collects everything both sides contribute to the key
// derivation. All byte fields hold the exact wire bytes exchanged during
// select and negotiate; any difference, even in encoding, yields different
// session keys on the two sides.
type SessionContext struct {
	TerminalKeys *TerminalKeys

	TerminalNonce []byte
	MobileNonce   []byte
	CollectorID   []byte
	SignedData    []byte

	// MobilePublicKey is the device's ephemeral public key as received,
	// compressed (33 bytes) or uncompressed (65 bytes).
	MobilePublicKey []byte

	SequenceNumber byte
}

// SessionKeys is the derived per-session key material: a 128-bit AES-CTR
// key and a 256-bit HMAC-SHA256 key.
type SessionKeys struct {
	Enc [16]byte
	MAC [32]byte
}

// DeriveSessionKeys runs ECDH over P-256 with the device's ephemeral key
// and expands the shared secret with HKDF-SHA256. The salt is the mobile
// public key exactly as received; the info string binds both nonces, the
// collector ID, the terminal's compressed public key and the signed
// session data.
func DeriveSessionKeys(ctx *SessionContext) (*SessionKeys, error) {
	pub, err := parseMobilePublicKey(ctx.MobilePublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyAgreement, err)
	}
	shared, err := ctx.TerminalKeys.Private.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyAgreement, err)
	}

	info := make([]byte, 0,
		len(ctx.TerminalNonce)+len(ctx.MobileNonce)+len(ctx.CollectorID)+
			len(ctx.TerminalKeys.PublicCompressed)+len(ctx.SignedData))
	info = append(info, ctx.TerminalNonce...)
	info = append(info, ctx.MobileNonce...)
	info = append(info, ctx.CollectorID...)
	info = append(info, ctx.TerminalKeys.PublicCompressed...)
	info = append(info, ctx.SignedData...)

	r := hkdf.New(sha256.New, shared, ctx.MobilePublicKey, info)
	var out [48]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return nil, fmt.Errorf("expanding session keys: %w", err)
	}

	keys := &SessionKeys{}
	copy(keys.Enc[:], out[:16])
	copy(keys.MAC[:], out[16:])
	return keys, nil
}

func parseMobilePublicKey(raw []byte) (*ecdh.PublicKey, error) {
	switch len(raw) {
	case 65:
		return ecdh.P256().NewPublicKey(raw)
	case 33:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, fmt.Errorf("invalid compressed point")
		}
		buf := make([]byte, 65)
		buf[0] = 0x04
		x.FillBytes(buf[1:33])
		y.FillBytes(buf[33:65])
		return ecdh.P256().NewPublicKey(buf)
	default:
		return nil, fmt.Errorf("public key must be 33 or 65 bytes, got %d", len(raw))
	}
}
