package smarttap

import (
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/iso7816"
	"github.com/spoZebra/smart-tap/pkg/ndef"
)

// Record types emitted by the terminal. Requests mirror the structure the
// device answers with: an outer container record wrapping session
// parameters and the step's own records.
var (
	typeCryptoParams  = []byte("cpr") // terminal nonce, auth level, public key, signature
	typeServiceQuery  = []byte("srq") // get-data request container
	typeMerchant      = []byte("mer") // collector id
	typeServiceType   = []byte("str") // requested service types
	proprietaryClass  = byte(0x90)    // CLA for all Smart Tap commands after SELECT
	liveAuthenticated = byte(0x01)    // presented auth level: live, signed
)

// SelectCommand builds the SELECT-by-AID command for the wallet applet.
func SelectCommand() *iso7816.CommandAPDU {
	return iso7816.NewCommandAPDU(0x00, iso7816.INS_SELECT, 0x04, 0x00, smartTapAID, iso7816.MaxShortLe)
}

// NegotiateCommand builds NEGOTIATE SECURE SESSIONS. The payload is a
// single negotiate record wrapping the session record (session id,
// sequence number 1, status) and the crypto params record (terminal nonce,
// auth level, compressed terminal public key, signed session data).
func NegotiateCommand(ctx *SessionContext, sessionID []byte) (*iso7816.CommandAPDU, error) {
	if len(sessionID) != 8 {
		return nil, fmt.Errorf("session id must be 8 bytes, got %d", len(sessionID))
	}

	ses := make([]byte, 0, 10)
	ses = append(ses, sessionID...)
	ses = append(ses, 0x01, 0x01)

	cpr := make([]byte, 0, len(ctx.TerminalNonce)+1+len(ctx.TerminalKeys.PublicCompressed)+len(ctx.SignedData))
	cpr = append(cpr, ctx.TerminalNonce...)
	cpr = append(cpr, liveAuthenticated)
	cpr = append(cpr, ctx.TerminalKeys.PublicCompressed...)
	cpr = append(cpr, ctx.SignedData...)

	inner, err := ndef.Encode([]ndef.Record{
		{TNF: ndef.TNFExternal, Type: typeSession, Payload: ses},
		{TNF: ndef.TNFExternal, Type: typeCryptoParams, Payload: cpr},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding negotiate payload: %w", err)
	}
	data, err := ndef.Encode([]ndef.Record{
		{TNF: ndef.TNFExternal, Type: typeNegotiateRequest, Payload: inner},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding negotiate record: %w", err)
	}

	return iso7816.NewCommandAPDU(proprietaryClass, iso7816.INS_NEGOTIATE_SECURE_SESSIONS,
		0x00, 0x00, data, iso7816.MaxShortLe), nil
}

// GetDataCommand builds GET SMART TAP DATA for the negotiated session. The
// service query wraps the session record (sequence number advanced past
// the negotiate exchange), the collector id and a request for all service
// types.
func GetDataCommand(ctx *SessionContext, sessionID []byte) (*iso7816.CommandAPDU, error) {
	if len(sessionID) != 8 {
		return nil, fmt.Errorf("session id must be 8 bytes, got %d", len(sessionID))
	}

	ses := make([]byte, 0, 10)
	ses = append(ses, sessionID...)
	ses = append(ses, ctx.SequenceNumber+1, 0x01)

	inner, err := ndef.Encode([]ndef.Record{
		{TNF: ndef.TNFExternal, Type: typeSession, Payload: ses},
		{TNF: ndef.TNFExternal, Type: typeMerchant, Payload: ctx.CollectorID},
		{TNF: ndef.TNFExternal, Type: typeServiceType, Payload: []byte{0x00}}, // all services
	})
	if err != nil {
		return nil, fmt.Errorf("encoding service query payload: %w", err)
	}
	data, err := ndef.Encode([]ndef.Record{
		{TNF: ndef.TNFExternal, Type: typeServiceQuery, Payload: inner},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding service query record: %w", err)
	}

	return iso7816.NewCommandAPDU(proprietaryClass, iso7816.INS_GET_DATA,
		0x00, 0x00, data, iso7816.MaxShortLe), nil
}

// GetAdditionalDataCommand builds GET ADDITIONAL SMART TAP DATA, issued
// while the device reports status 91XX.
func GetAdditionalDataCommand() *iso7816.CommandAPDU {
	return iso7816.NewCommandAPDU(proprietaryClass, iso7816.INS_GET_ADDITIONAL_DATA,
		0x00, 0x00, nil, iso7816.MaxShortLe)
}
