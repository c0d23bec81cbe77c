package main

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"

	"github.com/ebfe/scard"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spoZebra/smart-tap/pkg/smarttap"
)

// Demo terminal: waits for a tap on the first PC/SC reader, runs one
// Smart Tap session and prints the redemption value of the presented pass.
//
// The collector id and the collector's long-term P-256 signing key must
// match what the pass issuer registered; without them the device answers
// the negotiate step with an authentication failure.

func main() {
	var (
		collectorID = flag.Uint("collector", 0, "collector id registered with the pass issuer")
		keyPath     = flag.String("key", "collector_key.pem", "path to the collector's EC private key (PEM)")
		reader      = flag.String("reader", "", "PC/SC reader name (default: first reader found)")
		maxRetries  = flag.Int("max-retries", 3, "extra attempts for transient (92XX) device statuses")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *collectorID == 0 {
		log.Fatal().Msg("a collector id is required (-collector)")
	}

	signer, err := loadSigner(*keyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading collector key")
	}

	ctx, card := connectToCard(*reader)
	defer func() {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			log.Warn().Err(err).Msg("disconnecting card")
		}
		if err := ctx.Release(); err != nil {
			log.Warn().Err(err).Msg("releasing context")
		}
	}()

	id := uint32(*collectorID)
	session, err := smarttap.NewSession(card,
		[]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)},
		signer, *maxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("preparing session")
	}

	value, err := session.Run()
	if err != nil {
		log.Fatal().Err(err).Msg("session failed")
	}

	fmt.Printf("Redemption value: %s\n", value)
}

// connectToCard establishes the PC/SC context and connects to the chosen
// (or first available) reader.
func connectToCard(preferred string) (*scard.Context, *scard.Card) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		log.Fatal().Err(err).Msg("establishing PC/SC context")
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Warn().Err(relErr).Msg("releasing context")
		}
		log.Fatal().Msg("no smart card reader found")
	}

	name := readers[0]
	if preferred != "" {
		name = preferred
	}
	log.Info().Str("reader", name).Msg("waiting for tap")

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(name, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Warn().Err(relErr).Msg("releasing context")
		}
		log.Fatal().Err(err).Str("reader", name).Msg("connecting to card")
	}

	return ctx, card
}

// ecdsaSigner signs session data with an in-process key. Production
// terminals would back this with an HSM or key service instead.
type ecdsaSigner struct {
	key *ecdsa.PrivateKey
}

func (s *ecdsaSigner) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

func loadSigner(path string) (smarttap.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// PKCS#8 is the other common container for EC keys.
		parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ec, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: not an EC private key", path)
		}
		key = ec
	}

	return &ecdsaSigner{key: key}, nil
}
