package smarttap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spoZebra/smart-tap/pkg/iso7816"
	"github.com/spoZebra/smart-tap/pkg/ndef"
)

func negotiatePayload(t *testing.T, children []ndef.Record) []byte {
	t.Helper()
	return mustEncode(t, []ndef.Record{{
		TNF:     ndef.TNFExternal,
		Type:    []byte("ngr"),
		Payload: mustEncode(t, children),
	}})
}

func TestParseNegotiateResponse(t *testing.T) {
	sessionID := bytes.Repeat([]byte{0xAB}, 8)
	devKey := bytes.Repeat([]byte{0x02}, 33)

	payload := negotiatePayload(t, []ndef.Record{
		{TNF: ndef.TNFExternal, Type: []byte("ses"), Payload: append(append([]byte{}, sessionID...), 0x02, 0x01)},
		{TNF: ndef.TNFExternal, Type: []byte("dpk"), Payload: devKey},
	})

	got, err := ParseNegotiateResponse(&iso7816.ResponseAPDU{
		Data:   payload,
		Status: iso7816.SW_NO_ERROR,
	})
	if err != nil {
		t.Fatalf("ParseNegotiateResponse() error = %v", err)
	}
	if got.SequenceNumber != 0x02 {
		t.Errorf("SequenceNumber = %d, want 2", got.SequenceNumber)
	}
	if !bytes.Equal(got.MobilePublicKey, devKey) {
		t.Errorf("MobilePublicKey = %x, want %x", got.MobilePublicKey, devKey)
	}
}

func TestParseNegotiateResponseStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  iso7816.StatusWord
		wantErr error
	}{
		{"transient", iso7816.NewStatusWord(0x92, 0x01), ErrRetryRequested},
		{"auth failed", iso7816.SW_AUTH_FAILED, ErrAuthentication},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseNegotiateResponse(&iso7816.ResponseAPDU{Status: tc.status})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ParseNegotiateResponse() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseNegotiateResponseFatalStatuses(t *testing.T) {
	// More-data is never valid for negotiate; it is fatal like any other
	// out-of-band status.
	for _, status := range []iso7816.StatusWord{
		iso7816.SW_ERR_FILE_NOT_FOUND,
		iso7816.SW_MORE_DATA,
		iso7816.NewStatusWord(0x95, 0x01),
	} {
		_, err := ParseNegotiateResponse(&iso7816.ResponseAPDU{Status: status})
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Errorf("status %04X: error = %v, want *StatusError", uint16(status), err)
			continue
		}
		if statusErr.Status != status {
			t.Errorf("StatusError.Status = %04X, want %04X", uint16(statusErr.Status), uint16(status))
		}
	}
}

func TestParseNegotiateResponseMissingRecords(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			"no negotiate record",
			mustEncode(t, []ndef.Record{
				{TNF: ndef.TNFExternal, Type: []byte("xyz"), Payload: []byte{0x00}},
			}),
		},
		{
			"no device public key",
			negotiatePayload(t, []ndef.Record{
				{TNF: ndef.TNFExternal, Type: []byte("ses"), Payload: bytes.Repeat([]byte{0x00}, 10)},
			}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseNegotiateResponse(&iso7816.ResponseAPDU{Data: tc.data, Status: iso7816.SW_NO_ERROR})
			if !errors.Is(err, ErrRecordNotFound) {
				t.Errorf("ParseNegotiateResponse() error = %v, want ErrRecordNotFound", err)
			}
		})
	}
}

func TestParseNegotiateResponseShortSessionRecord(t *testing.T) {
	payload := negotiatePayload(t, []ndef.Record{
		{TNF: ndef.TNFExternal, Type: []byte("ses"), Payload: []byte{0x01, 0x02, 0x03}},
		{TNF: ndef.TNFExternal, Type: []byte("dpk"), Payload: bytes.Repeat([]byte{0x02}, 33)},
	})

	_, err := ParseNegotiateResponse(&iso7816.ResponseAPDU{Data: payload, Status: iso7816.SW_NO_ERROR})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ParseNegotiateResponse() error = %v, want ErrMalformedResponse", err)
	}
}
