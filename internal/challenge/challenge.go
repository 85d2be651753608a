// ABOUTME: Stateless challenge validation for WebAuthn ceremonies
// ABOUTME: HMAC tokens replace server-held ceremony state for horizontal scaling

package challenge

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"time"
)

// DefaultMaxAge bounds how long a token vouches for its challenge.
const DefaultMaxAge = 60 * time.Second

// Token is the client-held proof that a ceremony challenge was minted by this
// server. It travels to the browser alongside the ceremony options and comes
// back with the ceremony response.
type Token struct {
	Timestamp int64  `json:"timestamp"`
	HMAC      string `json:"hmac"`
}

// Validator builds and checks challenge tokens. It holds no state between
// Build and Validate; any instance configured with the same algorithm and
// secret can validate a token built by another.
type Validator struct {
	newHash func() hash.Hash
	secret  []byte
	maxAge  time.Duration

	// now is swapped out by tests
	now func() time.Time
}

// New creates a Validator for the given HMAC algorithm (sha256, sha384 or
// sha512) and secret.
func New(algo, secret string) (*Validator, error) {
	var newHash func() hash.Hash
	switch algo {
	case "sha256":
		newHash = sha256.New
	case "sha384":
		newHash = sha512.New384
	case "sha512":
		newHash = sha512.New
	default:
		return nil, fmt.Errorf("unsupported challenge HMAC algorithm %q", algo)
	}

	return &Validator{
		newHash: newHash,
		secret:  []byte(secret),
		maxAge:  DefaultMaxAge,
		now:     time.Now,
	}, nil
}

// Build signs the challenge together with the current timestamp.
func (v *Validator) Build(challenge string) Token {
	ts := v.now().Unix()
	return Token{
		Timestamp: ts,
		HMAC:      v.sign(challenge, ts),
	}
}

// Validate reports whether the token vouches for the challenge and is no
// older than the configured max age. Expired and tampered tokens are
// indistinguishable to the caller.
func (v *Validator) Validate(challenge string, tok Token) bool {
	if v.now().Unix()-tok.Timestamp > int64(v.maxAge/time.Second) {
		return false
	}
	want := v.sign(challenge, tok.Timestamp)
	return hmac.Equal([]byte(want), []byte(tok.HMAC))
}

func (v *Validator) sign(challenge string, timestamp int64) string {
	mac := hmac.New(v.newHash, v.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(challenge))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
