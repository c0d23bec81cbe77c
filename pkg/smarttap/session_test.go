package smarttap

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"testing"

	"golang.org/x/crypto/hkdf"

	"github.com/spoZebra/smart-tap/pkg/ndef"
	"github.com/spoZebra/smart-tap/pkg/tlv"
)

type staticSigner struct{ signature []byte }

func (s staticSigner) Sign(data []byte) ([]byte, error) {
	return s.signature, nil
}

// walletSim emulates the device side of the protocol: it answers SELECT,
// runs the real key agreement against the terminal's ephemeral key, and
// serves an encrypted record bundle, optionally chunked and optionally
// preceded by transient statuses.
type walletSim struct {
	t *testing.T

	nonce           []byte // mobile device nonce, returned on SELECT
	collectorID     []byte
	redemptionValue string

	transientNegotiates int // number of 92XX answers before negotiate succeeds
	chunked             bool

	priv          *ecdh.PrivateKey
	pubCompressed []byte // as sent in the dpk record

	// captured from the terminal's commands
	terminalNonce []byte
	terminalPub   []byte
	signedData    []byte

	pending []byte // remainder served on GET ADDITIONAL DATA
}

func newWalletSim(t *testing.T, collectorID []byte, value string) *walletSim {
	t.Helper()

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	wrapped, err := NewTerminalKeys(priv)
	if err != nil {
		t.Fatalf("NewTerminalKeys() error = %v", err)
	}

	return &walletSim{
		t:               t,
		nonce:           bytes.Repeat([]byte{0x77}, 32),
		collectorID:     collectorID,
		redemptionValue: value,
		priv:            priv,
		pubCompressed:   wrapped.PublicCompressed,
	}
}

func (w *walletSim) Transmit(raw []byte) ([]byte, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("command of %d bytes", len(raw))
	}
	cla, ins := raw[0], raw[1]

	var data []byte
	if len(raw) > 5 {
		lc := int(raw[4])
		if 5+lc > len(raw) {
			return nil, fmt.Errorf("Lc %d exceeds command length %d", lc, len(raw))
		}
		data = raw[5 : 5+lc]
	}

	switch {
	case cla == 0x00 && ins == 0xA4:
		return w.handleSelect()
	case cla == 0x90 && ins == 0x53:
		return w.handleNegotiate(data)
	case cla == 0x90 && ins == 0x50:
		return w.handleGetData(data)
	case cla == 0x90 && ins == 0xC0:
		return w.handleGetAdditionalData()
	default:
		return []byte{0x6D, 0x00}, nil
	}
}

func (w *walletSim) handleSelect() ([]byte, error) {
	block, err := tlv.Encode([]tlv.TagValue{{Tag: "DF6D", Value: w.nonce}})
	if err != nil {
		return nil, err
	}
	resp := []byte{0x00, 0x01, 0x00, 0x02}
	resp = append(resp, block...)
	return append(resp, 0x90, 0x00), nil
}

func (w *walletSim) handleNegotiate(data []byte) ([]byte, error) {
	if w.transientNegotiates > 0 {
		w.transientNegotiates--
		return []byte{0x92, 0x01}, nil
	}

	records, err := ndef.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("negotiate payload: %w", err)
	}
	ngr, ok := ndef.FirstOfType(records, []byte("ngr"))
	if !ok {
		return nil, errors.New("no negotiate record in command")
	}
	children, err := ngr.Records()
	if err != nil {
		return nil, err
	}
	cpr, ok := ndef.FirstOfType(children, []byte("cpr"))
	if !ok {
		return nil, errors.New("no crypto params record in command")
	}
	if len(cpr.Payload) < 32+1+33 {
		return nil, fmt.Errorf("crypto params of %d bytes", len(cpr.Payload))
	}
	w.terminalNonce = cpr.Payload[:32]
	w.terminalPub = cpr.Payload[33:66]
	w.signedData = cpr.Payload[66:]

	ses, ok := ndef.FirstOfType(children, []byte("ses"))
	if !ok || len(ses.Payload) < 10 {
		return nil, errors.New("bad session record in command")
	}

	sesOut := append(append([]byte{}, ses.Payload[:8]...), 0x02, 0x01)
	payload, err := ndef.Encode([]ndef.Record{{
		TNF:  ndef.TNFExternal,
		Type: []byte("ngr"),
		Payload: mustEncode(w.t, []ndef.Record{
			{TNF: ndef.TNFExternal, Type: []byte("ses"), Payload: sesOut},
			{TNF: ndef.TNFExternal, Type: []byte("dpk"), Payload: w.pubCompressed},
		}),
	}})
	if err != nil {
		return nil, err
	}
	return append(payload, 0x90, 0x00), nil
}

func (w *walletSim) sessionKeys() (*SessionKeys, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), w.terminalPub)
	if x == nil {
		return nil, errors.New("terminal public key did not parse")
	}
	raw := make([]byte, 65)
	raw[0] = 0x04
	x.FillBytes(raw[1:33])
	y.FillBytes(raw[33:65])
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, err
	}
	shared, err := w.priv.ECDH(pub)
	if err != nil {
		return nil, err
	}

	var info []byte
	info = append(info, w.terminalNonce...)
	info = append(info, w.nonce...)
	info = append(info, w.collectorID...)
	info = append(info, w.terminalPub...)
	info = append(info, w.signedData...)

	var out [48]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, w.pubCompressed, info), out[:]); err != nil {
		return nil, err
	}
	keys := &SessionKeys{}
	copy(keys.Enc[:], out[:16])
	copy(keys.MAC[:], out[16:])
	return keys, nil
}

func (w *walletSim) handleGetData(data []byte) ([]byte, error) {
	if _, err := ndef.Decode(data); err != nil {
		return nil, fmt.Errorf("get data payload: %w", err)
	}
	keys, err := w.sessionKeys()
	if err != nil {
		return nil, err
	}

	redemption := mustEncode(w.t, []ndef.Record{{
		TNF:     ndef.TNFExternal,
		Type:    []byte("rv"),
		ID:      []byte{0x6E},
		Payload: append([]byte{0x01}, w.redemptionValue...),
	}})
	plaintext := mustEncode(w.t, []ndef.Record{{
		TNF:  ndef.TNFExternal,
		Type: []byte("asv"),
		Payload: mustEncode(w.t, []ndef.Record{
			{TNF: ndef.TNFExternal, Type: []byte("ob"), Payload: redemption},
		}),
	}})

	iv := make([]byte, envelopeIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keys.Enc[:])
	if err != nil {
		return nil, err
	}
	ctrIV := make([]byte, aes.BlockSize)
	copy(ctrIV, iv)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, ctrIV).XORKeyStream(ciphertext, plaintext)

	mac := hmac.New(sha256.New, keys.MAC[:])
	mac.Write(iv)
	mac.Write(ciphertext)

	envelope := []byte{0x00}
	envelope = append(envelope, iv...)
	envelope = append(envelope, ciphertext...)
	envelope = append(envelope, mac.Sum(nil)...)

	payload := mustEncode(w.t, []ndef.Record{{
		TNF:  ndef.TNFExternal,
		Type: []byte("srs"),
		Payload: mustEncode(w.t, []ndef.Record{
			{TNF: ndef.TNFExternal, Type: []byte("reb"), Payload: envelope},
		}),
	}})

	if w.chunked {
		half := len(payload) / 2
		w.pending = payload[half:]
		return append(append([]byte{}, payload[:half]...), 0x91, 0x01), nil
	}
	return append(payload, 0x90, 0x00), nil
}

func (w *walletSim) handleGetAdditionalData() ([]byte, error) {
	if w.pending == nil {
		return nil, errors.New("no additional data pending")
	}
	out := append(append([]byte{}, w.pending...), 0x90, 0x00)
	w.pending = nil
	return out, nil
}

func newTestSession(t *testing.T, sim *walletSim) *Session {
	t.Helper()
	session, err := NewSession(sim, sim.collectorID, staticSigner{signature: bytes.Repeat([]byte{0x42}, 70)}, 2)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return session
}

func TestSessionRun(t *testing.T) {
	sim := newWalletSim(t, []byte{0x00, 0x01, 0x86, 0xA0}, "FLAT-WHITE")

	got, err := newTestSession(t, sim).Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "FLAT-WHITE" {
		t.Errorf("Run() = %q, want %q", got, "FLAT-WHITE")
	}
}

func TestSessionRunChunkedResponse(t *testing.T) {
	sim := newWalletSim(t, []byte{0x00, 0x01, 0x86, 0xA0}, "TWO-CHUNK-PASS")
	sim.chunked = true

	got, err := newTestSession(t, sim).Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "TWO-CHUNK-PASS" {
		t.Errorf("Run() = %q, want %q", got, "TWO-CHUNK-PASS")
	}
	if sim.pending != nil {
		t.Error("additional data was never fetched")
	}
}

func TestSessionRunRecoversFromTransientNegotiate(t *testing.T) {
	sim := newWalletSim(t, []byte{0x00, 0x01, 0x86, 0xA0}, "RETRIED")
	sim.transientNegotiates = 2

	got, err := newTestSession(t, sim).Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "RETRIED" {
		t.Errorf("Run() = %q, want %q", got, "RETRIED")
	}
}

func TestSessionRunExhaustsRetries(t *testing.T) {
	sim := newWalletSim(t, []byte{0x00, 0x01, 0x86, 0xA0}, "NEVER")
	sim.transientNegotiates = 10

	_, err := newTestSession(t, sim).Run()
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetryExhausted", err)
	}
	if errors.Is(err, ErrRetryRequested) {
		t.Errorf("Run() error %v still matches ErrRetryRequested", err)
	}
}

type failingTransmitter struct{}

func (failingTransmitter) Transmit([]byte) ([]byte, error) {
	return nil, errors.New("reader gone")
}

func TestSessionRunTransportFailure(t *testing.T) {
	session, err := NewSession(failingTransmitter{}, []byte{0x01}, staticSigner{signature: []byte{0x42}}, 0)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if _, err := session.Run(); err == nil {
		t.Error("Run() expected an error when the transport fails")
	}
}
