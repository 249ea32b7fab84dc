package chat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// SignatureHeader carries the hex HMAC computed by the chat platform.
	SignatureHeader = "X-Signature"
	// TimestampHeader carries the unix timestamp the signature covers.
	TimestampHeader = "X-Request-Timestamp"

	signatureVersion = "v0"

	// DefaultTolerance bounds clock skew and replay windows.
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature   = errors.New("chat: missing signature headers")
	ErrMalformedTimestamp = errors.New("chat: malformed request timestamp")
	ErrStaleTimestamp     = errors.New("chat: request timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("chat: signature mismatch")
)

// Verifier validates inbound webhook signatures. The platform signs
// "v0:{timestamp}:{body}" with a shared secret; we recompute and compare in
// constant time.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier builds a Verifier for the given signing secret.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("chat: signing secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}, nil
}

// VerifyRequest checks the signature headers of r against body. Callers must
// pass the raw request body exactly as received.
func (v *Verifier) VerifyRequest(r *http.Request, body []byte) error {
	return v.Verify(r.Header.Get(TimestampHeader), r.Header.Get(SignatureHeader), body)
}

// Verify validates a timestamp/signature pair for body. Staleness is checked
// before the signature so a replayed request fails with ErrStaleTimestamp
// rather than a misleading mismatch.
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformedTimestamp
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrStaleTimestamp
	}
	expected := v.Sign(timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes the versioned signature for a timestamp/body pair. Exposed so
// tests and outbound integrations can produce valid requests.
func (v *Verifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
