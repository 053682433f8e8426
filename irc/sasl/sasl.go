// Package sasl implements the three mechanisms spec.md §4.2 requires:
// PLAIN, EXTERNAL (cert-fingerprint), and SCRAM-SHA-256, plus the
// multi-step base64 AUTHENTICATE exchange that drives them.
package sasl

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// MaxPayloadLine is the threshold beyond which an AUTHENTICATE payload
// must be split across multiple lines, terminated by an empty-payload "+",
// per spec.md §4.2.
const MaxPayloadLine = 400

// ChunkPayload splits a base64 payload into MaxPayloadLine-byte AUTHENTICATE
// lines, appending the empty-payload "+" marker only when the final chunk is
// exactly MaxPayloadLine bytes long.
func ChunkPayload(payload string) []string {
	var chunks []string
	for len(payload) > MaxPayloadLine {
		chunks = append(chunks, payload[:MaxPayloadLine])
		payload = payload[MaxPayloadLine:]
	}
	chunks = append(chunks, payload)
	if len(payload) == MaxPayloadLine {
		chunks = append(chunks, "+")
	}
	return chunks
}

// Mechanism is one SASL mechanism's server-side state machine.
type Mechanism interface {
	// Name is the wire mechanism name ("PLAIN", "EXTERNAL", "SCRAM-SHA-256").
	Name() string
	// Step processes one base64-decoded client response and returns the
	// next challenge to send (possibly empty) plus whether authentication
	// has concluded, and if so with what result.
	Step(response []byte) (challenge []byte, done bool, result Result, err error)
}

// Result carries the outcome of a completed mechanism.
type Result struct {
	Success bool
	Account string
}

// AccountLookup resolves stored credentials for PLAIN/SCRAM verification.
// Implemented by the persistence layer; kept as an interface here so sasl
// has no dependency on it.
type AccountLookup interface {
	// PasswordHash returns the bcrypt hash stored for account, for PLAIN.
	PasswordHash(account string) (hash string, ok bool)
	// ScramVerifier returns the stored SCRAM parameters for account.
	ScramVerifier(account string) (storedKey, serverKey, salt []byte, iterCount int, ok bool)
	// AccountForCertFP returns the account associated with a cert fingerprint,
	// for EXTERNAL.
	AccountForCertFP(fp string) (account string, ok bool)
	// VerifyPassword checks plaintext against the bcrypt hash.
	VerifyPassword(hash, plaintext string) bool
}

// PlainMechanism implements SASL PLAIN: a single response of
// "authzid\0authcid\0password". The authzid is ignored; the authcid is the
// account whose password is checked.
type PlainMechanism struct {
	lookup AccountLookup
}

func NewPlainMechanism(lookup AccountLookup) *PlainMechanism { return &PlainMechanism{lookup: lookup} }

func (m *PlainMechanism) Name() string { return "PLAIN" }

func (m *PlainMechanism) Step(response []byte) ([]byte, bool, Result, error) {
	parts := strings.SplitN(string(response), "\x00", 3)
	if len(parts) != 3 {
		return nil, true, Result{}, errors.New("sasl: malformed PLAIN response")
	}
	account, password := parts[1], parts[2]
	hash, ok := m.lookup.PasswordHash(account)
	if !ok || !m.lookup.VerifyPassword(hash, password) {
		return nil, true, Result{Success: false}, nil
	}
	return nil, true, Result{Success: true, Account: account}, nil
}

// ExternalMechanism implements SASL EXTERNAL: authentication is entirely by
// TLS client certificate fingerprint, established out-of-band before
// AUTHENTICATE even begins.
type ExternalMechanism struct {
	lookup AccountLookup
	certFP string
}

func NewExternalMechanism(lookup AccountLookup, certFP string) *ExternalMechanism {
	return &ExternalMechanism{lookup: lookup, certFP: certFP}
}

func (m *ExternalMechanism) Name() string { return "EXTERNAL" }

func (m *ExternalMechanism) Step(_ []byte) ([]byte, bool, Result, error) {
	if m.certFP == "" {
		return nil, true, Result{Success: false}, nil
	}
	account, ok := m.lookup.AccountForCertFP(m.certFP)
	if !ok {
		return nil, true, Result{Success: false}, nil
	}
	return nil, true, Result{Success: true, Account: account}, nil
}

// scramStep is the sub-state within a SCRAM-SHA-256 exchange, represented
// explicitly on the struct per spec.md §9's "coroutine control flow"
// design note rather than as a suspended goroutine.
type scramStep int

const (
	scramAwaitingClientFirst scramStep = iota
	scramAwaitingClientFinal
	scramDone
)

// ScramMechanism implements SASL SCRAM-SHA-256 against server-stored
// stored_key/server_key/salt/iter_count — the password itself is never
// stored, per spec.md §4.2.
type ScramMechanism struct {
	lookup AccountLookup

	step              scramStep
	account           string
	clientNonce       string
	serverNonce       string
	clientFirstBare   string
	serverFirst       string
	storedKey         []byte
	serverKey         []byte
}

func NewScramMechanism(lookup AccountLookup) *ScramMechanism {
	return &ScramMechanism{lookup: lookup}
}

func (m *ScramMechanism) Name() string { return "SCRAM-SHA-256" }

func (m *ScramMechanism) Step(response []byte) ([]byte, bool, Result, error) {
	switch m.step {
	case scramAwaitingClientFirst:
		return m.handleClientFirst(response)
	case scramAwaitingClientFinal:
		return m.handleClientFinal(response)
	default:
		return nil, true, Result{}, errors.New("sasl: SCRAM step called after completion")
	}
}

func (m *ScramMechanism) handleClientFirst(response []byte) ([]byte, bool, Result, error) {
	// Expected shape: "n,,n=<account>,r=<client-nonce>"
	msg := string(response)
	gs2, rest, ok := strings.Cut(msg, "n=")
	if !ok || !strings.HasPrefix(gs2, "n,,") {
		return nil, true, Result{}, errors.New("sasl: malformed SCRAM client-first")
	}
	account, nonce, ok := strings.Cut(rest, ",r=")
	if !ok {
		return nil, true, Result{}, errors.New("sasl: malformed SCRAM client-first")
	}
	m.account = account
	m.clientNonce = nonce
	m.clientFirstBare = "n=" + rest

	storedKey, serverKey, salt, iterCount, found := m.lookup.ScramVerifier(account)
	if !found {
		// Respond as if valid to avoid account enumeration, then fail at
		// the final step since the stored key will never verify.
		storedKey, serverKey, salt, iterCount = make([]byte, 32), make([]byte, 32), []byte("nosuchaccount"), 4096
	}
	m.storedKey, m.serverKey = storedKey, serverKey

	serverNonceSuffix, err := randomNonce()
	if err != nil {
		return nil, true, Result{}, err
	}
	m.serverNonce = m.clientNonce + serverNonceSuffix

	m.serverFirst = fmt.Sprintf("r=%s,s=%s,i=%d",
		m.serverNonce, base64.StdEncoding.EncodeToString(salt), iterCount)
	m.step = scramAwaitingClientFinal
	return []byte(m.serverFirst), false, Result{}, nil
}

func (m *ScramMechanism) handleClientFinal(response []byte) ([]byte, bool, Result, error) {
	msg := string(response)
	_, proofB64, ok := strings.Cut(msg, "p=")
	if !ok {
		m.step = scramDone
		return nil, true, Result{}, errors.New("sasl: malformed SCRAM client-final")
	}
	channelBinding := "c=biws" // "n,," base64-encoded, no channel binding
	authMessage := m.clientFirstBare + "," + m.serverFirst + "," + channelBinding + ",r=" + m.serverNonce

	clientSignature := hmacSHA256(m.storedKey, []byte(authMessage))
	clientProof, err := base64.StdEncoding.DecodeString(proofB64)
	m.step = scramDone
	if err != nil {
		return nil, true, Result{Success: false}, nil
	}
	recoveredClientKey := xorBytes(clientProof, clientSignature)
	recoveredStoredKey := sha256Sum(recoveredClientKey)

	if subtle.ConstantTimeCompare(recoveredStoredKey, m.storedKey) != 1 {
		return nil, true, Result{Success: false}, nil
	}

	serverSignature := hmacSHA256(m.serverKey, []byte(authMessage))
	verifier := "v=" + base64.StdEncoding.EncodeToString(serverSignature)
	return []byte(verifier), true, Result{Success: true, Account: m.account}, nil
}

// DeriveScramVerifier computes stored_key/server_key from a plaintext
// password, for account registration. Never retains the password.
func DeriveScramVerifier(password string, salt []byte, iterCount int) (storedKey, serverKey []byte) {
	saltedPassword := pbkdf2.Key([]byte(password), salt, iterCount, sha256.Size, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey = sha256Sum(clientKey)
	serverKey = hmacSHA256(saltedPassword, []byte("Server Key"))
	return storedKey, serverKey
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func randomNonce() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// AttemptTracker enforces the max-attempts-then-disconnect policy of
// spec.md §4.2.
type AttemptTracker struct {
	max      int
	attempts int
}

func NewAttemptTracker(max int) *AttemptTracker { return &AttemptTracker{max: max} }

// RecordFailure increments the counter and reports whether the connection
// must now be dropped.
func (t *AttemptTracker) RecordFailure() (mustDisconnect bool) {
	t.attempts++
	return t.attempts >= t.max
}

// Reset clears the counter after a successful authentication.
func (t *AttemptTracker) Reset() { t.attempts = 0 }
