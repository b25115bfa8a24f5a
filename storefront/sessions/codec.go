package sessions

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// tokenDelimiter separates the four cookie fields. It can never appear
// inside a field: identities are hex, timestamps are decimal, tags are hex.
const tokenDelimiter = "||"

// Codec signs and verifies session cookie tokens.
type Codec struct {
	secret []byte
}

func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// derives a signing key from the server secret and the message itself,
// so the same secret signs unrelated messages with distinct keys
func (c *Codec) deriveKey(message string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

// computes the integrity tag over identity and expiration
func (c *Codec) tag(identity string, expiration int64) string {
	message := identity + strconv.FormatInt(expiration, 10)

	mac := hmac.New(sha256.New, c.deriveKey(message))
	mac.Write([]byte(message))

	return hex.EncodeToString(mac.Sum(nil))
}

// Issue builds a signed cookie token: identity||expiration||expiring||tag.
func (c *Codec) Issue(identity string, expiration, expiring int64) string {
	return strings.Join([]string{
		identity,
		strconv.FormatInt(expiration, 10),
		strconv.FormatInt(expiring, 10),
		c.tag(identity, expiration),
	}, tokenDelimiter)
}

// Validate parses and verifies a raw cookie token. It fails closed: any
// malformed field or tag mismatch reads as no token at all.
func (c *Codec) Validate(raw string) (identity string, expiration, expiring int64, ok bool) {
	parts := strings.Split(raw, tokenDelimiter)
	if len(parts) != 4 {
		return "", 0, 0, false
	}

	identity = parts[0]
	if identity == "" {
		return "", 0, 0, false
	}

	expiration, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}

	expiring, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}

	expected := c.tag(identity, expiration)
	if !hmac.Equal([]byte(expected), []byte(parts[3])) {
		return "", 0, 0, false
	}

	return identity, expiration, expiring, true
}

// GenerateIdentity produces a fresh identity for an anonymous visitor:
// 256 bits from a CSPRNG, digested so the exposed value is a fixed-length
// opaque string rather than the raw entropy.
func GenerateIdentity() (string, error) {
	random := make([]byte, 32)

	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to generate session identity: %w", err)
	}

	digest := sha256.Sum256(random)
	return hex.EncodeToString(digest[:]), nil
}
