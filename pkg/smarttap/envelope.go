package smarttap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/ndef"
)

// Encrypted record bundle payload layout:
//
//	byte  0        compression status (2 and 3 mean compressed)
//	bytes 1..12    96-bit CTR IV
//	bytes 13..n-32 ciphertext
//	last 32 bytes  HMAC-SHA256 over IV || ciphertext
const (
	envelopeIVLen  = 12
	envelopeTagLen = sha256.Size
)

// DecryptEnvelope verifies and decrypts an encrypted record bundle. The
// authentication tag is checked, in constant time, before any decryption
// happens; a mismatch yields ErrIntegrity and no plaintext.
func DecryptEnvelope(bundle ndef.Record, keys *SessionKeys) ([]byte, error) {
	payload := bundle.Payload
	if len(payload) < 1+envelopeIVLen+envelopeTagLen {
		return nil, fmt.Errorf("%w: payload too short (%d bytes)", ErrDecryption, len(payload))
	}
	if payload[0] == 2 || payload[0] == 3 {
		return nil, ErrUnsupportedCompression
	}

	enc := payload[1:]
	iv := enc[:envelopeIVLen]
	tag := enc[len(enc)-envelopeTagLen:]
	ciphertext := enc[envelopeIVLen : len(enc)-envelopeTagLen]

	mac := hmac.New(sha256.New, keys.MAC[:])
	mac.Write(iv)
	mac.Write(ciphertext)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, ErrIntegrity
	}

	block, err := aes.NewCipher(keys.Enc[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	// CTR runs with the 96-bit IV and a 32-bit counter starting at zero.
	ctrIV := make([]byte, aes.BlockSize)
	copy(ctrIV, iv)

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, ctrIV).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}
