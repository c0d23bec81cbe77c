package smarttap

import (
	"crypto/rand"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/spoZebra/smart-tap/pkg/iso7816"
)

// Signer signs the terminal's session data with the collector's long-term
// key. The key itself stays outside this package: in production it lives
// in an HSM or key service, in the demo it is an in-process ECDSA key.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

const (
	terminalNonceLen = 32
	sessionIDLen     = 8
)

// Session drives one complete tap: select, negotiate, fetch, decrypt,
// extract. A Session holds single-use key material and must not be reused;
// after any failure, start a new one.
type Session struct {
	client      *iso7816.Client
	collectorID []byte
	signer      Signer
	maxRetries  int

	ctx       SessionContext
	sessionID []byte
}

// NewSession prepares a session with fresh ephemeral keys, a fresh
// terminal nonce and a fresh session id. maxRetries bounds how many extra
// attempts a transient (92XX) negotiate or fetch is given.
func NewSession(card iso7816.Transmitter, collectorID []byte, signer Signer, maxRetries int) (*Session, error) {
	keys, err := GenerateTerminalKeys()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, terminalNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating terminal nonce: %w", err)
	}
	sessionID := make([]byte, sessionIDLen)
	if _, err := rand.Read(sessionID); err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	return &Session{
		client:      iso7816.NewClient(card),
		collectorID: collectorID,
		signer:      signer,
		maxRetries:  maxRetries,
		ctx: SessionContext{
			TerminalKeys:  keys,
			TerminalNonce: nonce,
			CollectorID:   collectorID,
		},
		sessionID: sessionID,
	}, nil
}

// Run executes the full exchange and returns the pass's redemption value.
func (s *Session) Run() (string, error) {
	if err := s.selectApplet(); err != nil {
		return "", err
	}
	if err := s.signSessionData(); err != nil {
		return "", err
	}
	if err := s.negotiate(); err != nil {
		return "", err
	}
	payload, err := s.fetchData()
	if err != nil {
		return "", err
	}

	bundle, err := ExtractRecordBundle(payload)
	if err != nil {
		return "", err
	}
	keys, err := DeriveSessionKeys(&s.ctx)
	if err != nil {
		return "", err
	}
	decrypted, err := DecryptEnvelope(bundle, keys)
	if err != nil {
		return "", err
	}
	value, err := ExtractRedemptionValue(decrypted)
	if err != nil {
		return "", err
	}

	log.Debug().Msgf("session complete, redemption value of %d bytes", len(value))
	return value, nil
}

func (s *Session) selectApplet() error {
	resp, err := s.send(SelectCommand())
	if err != nil {
		return fmt.Errorf("selecting applet: %w", err)
	}
	sel, err := ParseSelectResponse(resp)
	if err != nil {
		return fmt.Errorf("selecting applet: %w", err)
	}
	log.Debug().Msgf("applet selected, versions %d..%d, nonce %d bytes",
		sel.MinimumVersion, sel.MaximumVersion, len(sel.MobileDeviceNonce))

	s.ctx.MobileNonce = sel.MobileDeviceNonce
	return nil
}

// signSessionData produces the signature the device verifies against the
// collector's registered public key: terminal nonce, mobile nonce,
// collector id and the terminal's compressed ephemeral key, in that order.
func (s *Session) signSessionData() error {
	data := make([]byte, 0,
		len(s.ctx.TerminalNonce)+len(s.ctx.MobileNonce)+len(s.collectorID)+
			len(s.ctx.TerminalKeys.PublicCompressed))
	data = append(data, s.ctx.TerminalNonce...)
	data = append(data, s.ctx.MobileNonce...)
	data = append(data, s.collectorID...)
	data = append(data, s.ctx.TerminalKeys.PublicCompressed...)

	signed, err := s.signer.Sign(data)
	if err != nil {
		return fmt.Errorf("signing session data: %w", err)
	}
	s.ctx.SignedData = signed
	return nil
}

func (s *Session) negotiate() error {
	cmd, err := NegotiateCommand(&s.ctx, s.sessionID)
	if err != nil {
		return err
	}

	neg, err := WithRetry(s.maxRetries, func() (*NegotiateResponse, error) {
		resp, err := s.send(cmd)
		if err != nil {
			return nil, err
		}
		return ParseNegotiateResponse(resp)
	})
	if err != nil {
		return fmt.Errorf("negotiating secure session: %w", err)
	}
	log.Debug().Msgf("session negotiated, sequence %d, device key %d bytes",
		neg.SequenceNumber, len(neg.MobilePublicKey))

	s.ctx.SequenceNumber = neg.SequenceNumber
	s.ctx.MobilePublicKey = neg.MobilePublicKey
	return nil
}

// fetchData issues GET SMART TAP DATA and keeps issuing GET ADDITIONAL
// DATA while the device answers 91XX, concatenating the chunk payloads in
// order. A transient status restarts the whole fetch via WithRetry.
func (s *Session) fetchData() ([]byte, error) {
	cmd, err := GetDataCommand(&s.ctx, s.sessionID)
	if err != nil {
		return nil, err
	}

	payload, err := WithRetry(s.maxRetries, func() ([]byte, error) {
		resp, err := s.send(cmd)
		if err != nil {
			return nil, err
		}
		if err := checkStatus(resp.Status); err != nil {
			return nil, err
		}

		out := append([]byte(nil), resp.Data...)
		for resp.Status.Outcome() == iso7816.OutcomeMoreData {
			resp, err = s.send(GetAdditionalDataCommand())
			if err != nil {
				return nil, err
			}
			if err := checkStatus(resp.Status); err != nil {
				return nil, err
			}
			out = append(out, resp.Data...)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching data: %w", err)
	}
	log.Debug().Msgf("data fetched, %d bytes", len(payload))
	return payload, nil
}

// send runs one logical command and collapses its trace: transport chaining
// (61XX) may split the response across transactions, so the payloads are
// joined and the final status kept.
func (s *Session) send(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	trace, err := s.client.Send(cmd)
	if err != nil {
		return nil, err
	}
	last := trace.Last()
	if last == nil || last.Response == nil {
		return nil, fmt.Errorf("no response for %s", cmd.Instruction)
	}

	var data []byte
	for _, tx := range trace {
		if tx.Response != nil {
			data = append(data, tx.Response.Data...)
		}
	}
	return &iso7816.ResponseAPDU{Data: data, Status: last.Response.Status}, nil
}
