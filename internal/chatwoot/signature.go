package chatwoot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook signature headers.
const (
	SignatureHeader = "X-Chatwoot-Signature"
	TimestampHeader = "X-Chatwoot-Timestamp"
)

var ErrSignature = errors.New("chatwoot: webhook signature invalid")

// SignatureVerifier checks HMAC-SHA256 webhook signatures over
// "<timestamp>.<body>". A verifier with no secret accepts everything.
type SignatureVerifier struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
}

// NewSignatureVerifier returns a verifier. maxSkew <= 0 means five minutes.
func NewSignatureVerifier(secret string, maxSkew time.Duration) *SignatureVerifier {
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &SignatureVerifier{secret: strings.TrimSpace(secret), maxSkew: maxSkew, now: time.Now}
}

// Enabled reports whether a secret is configured.
func (v *SignatureVerifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Verify validates signature for payload.
func (v *SignatureVerifier) Verify(timestamp, signature string, payload []byte) error {
	if !v.Enabled() {
		return nil
	}
	ts := strings.TrimSpace(timestamp)
	if ts == "" {
		return fmt.Errorf("%w: missing timestamp", ErrSignature)
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrSignature)
	}
	if diff := v.now().Sub(time.Unix(sec, 0)); diff > v.maxSkew || diff < -v.maxSkew {
		return fmt.Errorf("%w: timestamp skew %s exceeds limit", ErrSignature, diff)
	}
	actual := strings.ToLower(strings.TrimSpace(signature))
	actual = strings.TrimPrefix(actual, "sha256=")
	if actual == "" {
		return fmt.Errorf("%w: missing signature", ErrSignature)
	}
	if !hmac.Equal([]byte(Sign(v.secret, ts, payload)), []byte(actual)) {
		return fmt.Errorf("%w: mismatch", ErrSignature)
	}
	return nil
}

// Sign computes the hex signature for payload. Exposed for tests and tooling.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}
