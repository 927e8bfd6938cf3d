// Package token reads the claims of a compact three-part bearer token
// without verifying its signature. Verification belongs to the API server;
// the claims recovered here are display data only.
package token

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
)

// Claims are the subset of token claims the client uses.
type Claims struct {
	Subject   string
	ExpiresAt *jwt.NumericDate
}

// Decode returns the claims carried by token. It never panics or errors:
// any malformed input reports ok == false.
func Decode(token string) (Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, false
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, false
	}

	var raw map[string]any
	if err := sonic.ConfigStd.Unmarshal(payload, &raw); err != nil || raw == nil {
		return Claims{}, false
	}

	var c Claims
	c.Subject = stringClaim(raw["sub"])
	if exp, ok := numericClaim(raw["exp"]); ok {
		c.ExpiresAt = jwt.NewNumericDate(time.Unix(exp, 0))
	}
	return c, true
}

// IsExpired reports whether token should be treated as expired at the
// current time. Undecodable tokens and tokens without an expiry claim are
// expired.
func IsExpired(token string) bool {
	return IsExpiredAt(token, time.Now())
}

// IsExpiredAt is IsExpired evaluated at now, with seconds granularity.
func IsExpiredAt(token string, now time.Time) bool {
	c, ok := Decode(token)
	if !ok || c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.Unix() < now.Unix()
}

// decodeSegment restores base64 padding before decoding with the URL-safe
// alphabet.
func decodeSegment(seg string) ([]byte, error) {
	if l := len(seg) % 4; l > 0 {
		seg += strings.Repeat("=", 4-l)
	}
	return base64.URLEncoding.DecodeString(seg)
}

func stringClaim(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// numericClaim accepts the JSON number forms an exp claim may take. Zero
// and non-numeric values are treated as missing.
func numericClaim(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Max(math.Min(math.Floor(f), maxClaimSeconds), -maxClaimSeconds)
	return int64(f), true
}

// maxClaimSeconds bounds exp so it converts to time.Time without overflow.
const maxClaimSeconds = 1 << 53
