package signature

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeDeterministic(t *testing.T) {
	a, err := Compute(sha256.New, "whsec_test", []byte("payload"))
	require.NoError(t, err)
	b, err := Compute(sha256.New, "whsec_test", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	other, err := Compute(sha256.New, "whsec_other", []byte("payload"))
	require.NoError(t, err)
	require.NotEqual(t, a, other)
}

func TestComputeEmptySecret(t *testing.T) {
	_, err := Compute(sha256.New, "  ", []byte("payload"))
	require.Error(t, err)
}

func TestStripTag(t *testing.T) {
	require.Equal(t, "abc", StripTag("v1=abc"))
	require.Equal(t, "abc", StripTag("sha256=abc"))
	require.Equal(t, "abc", StripTag("  abc "))
	require.Equal(t, "", StripTag("v1="))
}

func TestMatch(t *testing.T) {
	digest, err := Compute(sha256.New, "whsec_test", []byte("payload"))
	require.NoError(t, err)

	ok, err := Match("v1="+digest, digest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match(digest, digest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match("v1=deadbeef", digest)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = Match("", digest)
	require.Error(t, err)
	_, err = Match(digest, "")
	require.Error(t, err)
}

func TestMatchCaseInsensitive(t *testing.T) {
	digest, err := Compute(sha256.New, "whsec_test", []byte("payload"))
	require.NoError(t, err)
	upper := "v1=" + toUpperHex(digest)
	ok, err := Match(upper, digest)
	require.NoError(t, err)
	require.True(t, ok)
}

func toUpperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}

func TestWithinTolerance(t *testing.T) {
	now := time.Now()
	require.True(t, WithinTolerance(now.Unix(), now, 300*time.Second))
	require.True(t, WithinTolerance(now.Add(-299*time.Second).Unix(), now, 300*time.Second))
	require.False(t, WithinTolerance(now.Add(-301*time.Second).Unix(), now, 300*time.Second))
	// future timestamps are bounded too
	require.False(t, WithinTolerance(now.Add(301*time.Second).Unix(), now, 300*time.Second))
	// non-positive tolerance falls back to the default window
	require.True(t, WithinTolerance(now.Add(-200*time.Second).Unix(), now, 0))
	require.False(t, WithinTolerance(now.Add(-400*time.Second).Unix(), now, 0))
}

func TestParseHeader(t *testing.T) {
	parts, err := ParseHeader("t=1712000000,v1=abc", ",")
	require.NoError(t, err)
	require.Equal(t, "1712000000", parts["t"])
	require.Equal(t, "abc", parts["v1"])

	parts, err = ParseHeader("ts=1712000000;h1=def", ";")
	require.NoError(t, err)
	require.Equal(t, "1712000000", parts["ts"])
	require.Equal(t, "def", parts["h1"])

	_, err = ParseHeader("", ",")
	require.Error(t, err)
	_, err = ParseHeader("not-a-pair", ",")
	require.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp(" 1712000000 ")
	require.NoError(t, err)
	require.Equal(t, int64(1712000000), ts)

	_, err = ParseTimestamp("soon")
	require.Error(t, err)
}
