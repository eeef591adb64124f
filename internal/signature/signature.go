// Package signature implements the local HMAC verification shared by the
// provider adapters: keyed-hash computation over a processor-defined signed
// string, constant-time comparison and a replay window on the embedded
// timestamp.
package signature

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how far a signed timestamp may drift from now.
const DefaultTolerance = 300 * time.Second

var errEmptySecret = errors.New("signature: empty secret")

// Compute returns the hex-encoded HMAC of payload under secret using the
// provided hash constructor (sha256.New, sha512.New, ...).
func Compute(h func() hash.Hash, secret string, payload []byte) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errEmptySecret
	}
	mac := hmac.New(h, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// StripTag removes an algorithm label joined by '=' from a signature value,
// e.g. "v1=abc" or "sha256=abc" become "abc". Values without a tag pass
// through unchanged.
func StripTag(sig string) string {
	trimmed := strings.TrimSpace(sig)
	if idx := strings.IndexByte(trimmed, '='); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// Match compares a provided signature against the expected hex digest in
// constant time. A mismatch is a false return, never an error; only a blank
// comparison input is treated as malformed.
func Match(provided, expected string) (bool, error) {
	p := strings.ToLower(StripTag(provided))
	e := strings.ToLower(strings.TrimSpace(expected))
	if p == "" || e == "" {
		return false, errors.New("signature: empty comparison input")
	}
	return hmac.Equal([]byte(p), []byte(e)), nil
}

// WithinTolerance reports whether the unix timestamp ts is within tolerance
// of now. A non-positive tolerance falls back to DefaultTolerance.
func WithinTolerance(ts int64, now time.Time, tolerance time.Duration) bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	diff := now.Sub(time.Unix(ts, 0))
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// ParseHeader splits a signature header of the shape "k1=v1<sep>k2=v2" into
// its pairs. Stripe uses "," as separator, Paddle uses ";".
func ParseHeader(header, sep string) (map[string]string, error) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return nil, errors.New("signature: missing header")
	}
	out := make(map[string]string)
	for _, part := range strings.Split(trimmed, sep) {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("signature: malformed header element %q", part)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// ParseTimestamp converts the timestamp element of a signature header.
func ParseTimestamp(value string) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("signature: invalid timestamp: %w", err)
	}
	return ts, nil
}
