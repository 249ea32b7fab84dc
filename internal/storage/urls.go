package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadSignature is returned when a presigned URL fails verification.
	ErrBadSignature = errors.New("storage: bad url signature")
	// ErrURLExpired is returned when a presigned URL is past its expiry.
	ErrURLExpired = errors.New("storage: url expired")
)

// URLSigner issues and verifies retrieval URLs for stored artifacts: HMAC
// presigned URLs for time-limited access to staged objects, and plain CDN
// URLs for permanently kept ones.
type URLSigner struct {
	secret  []byte
	baseURL string
	cdnBase string
	now     func() time.Time
}

// NewURLSigner builds a signer. baseURL is the public prefix of the signed
// file endpoint; cdnBase (optional) is the prefix for permanent public URLs
// and falls back to baseURL when empty.
func NewURLSigner(secret, baseURL, cdnBase string) (*URLSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("storage: signing secret is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	cdnBase = strings.TrimRight(cdnBase, "/")
	if cdnBase == "" {
		cdnBase = baseURL
	}
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: baseURL,
		cdnBase: cdnBase,
		now:     time.Now,
	}, nil
}

// Presign returns a time-limited retrieval URL for key.
func (s *URLSigner) Presign(key string, ttl time.Duration) (string, time.Time, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	expires := s.now().Add(ttl).Unix()
	sig := s.sign(cleanKey, expires)
	u := fmt.Sprintf("%s/%s?expires=%d&sig=%s", s.baseURL, cleanKey, expires, sig)
	return u, time.Unix(expires, 0).UTC(), nil
}

// Verify checks the expires/sig query parameters against key. Expiry is
// checked before the signature so callers can tell a stale link from a forged
// one.
func (s *URLSigner) Verify(key string, query url.Values) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	expiresRaw := query.Get("expires")
	sig := query.Get("sig")
	if expiresRaw == "" || sig == "" {
		return ErrBadSignature
	}
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if s.now().Unix() > expires {
		return ErrURLExpired
	}
	expected := s.sign(cleanKey, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

// PublicURL returns the permanent CDN-style URL for key. No signature: kept
// artifacts live under the saved/ namespace and are world-readable.
func (s *URLSigner) PublicURL(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return s.cdnBase + "/" + cleanKey, nil
}

func (s *URLSigner) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
