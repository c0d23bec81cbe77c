/*
Package smarttap implements the terminal side of the Smart Tap secure
session protocol: negotiating an ephemeral key exchange with a contactless
device, retrieving its chunked, NDEF-wrapped data payload, and recovering
the redemption value through authenticated decryption.

# Protocol flow

One tap is one session:

 1. SELECT the wallet applet. The response carries the mobile device nonce.
 2. NEGOTIATE SECURE SESSIONS: the terminal presents its ephemeral public
    key, nonce and signed session data; the device answers with a sequence
    number and its own ephemeral public key. A 92XX status here is
    retryable and the step is wrapped in the retry orchestrator.
 3. GET SMART TAP DATA (plus GET ADDITIONAL DATA while the device reports
    91XX): the reassembled payload wraps an encrypted record bundle.
 4. Both sides derive identical key material (ECDH P-256 + HKDF-SHA256) and
    the terminal verifies and decrypts the bundle (HMAC-SHA256, then
    AES-CTR), extracting the redemption value from the decrypted container.

# Security properties

Nonces and ephemeral keys are single-use: a Session must not be reused, and
after any failure a new session must start with fresh key material. The
envelope is verified before it is decrypted, and the HMAC comparison is
constant time.

The physical transport and the terminal's long-term (signing) key live
outside this package: the transport enters as an iso7816.Transmitter, the
signing capability as a Signer.
*/
package smarttap
