package exchangeclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer produces the exchange's request signature. The canonical string is
//
//	METHOD + PATH + "?" + sortedQueryString + compactJSONBody
//
// where the query string joins k=v pairs sorted lexicographically by key with
// no percent-encoding (values must be pre-sanitized by the caller; the scheme
// is sensitive to encoding differences). The result is an HMAC-SHA256 hex
// digest under the shared secret. Signing is deterministic for identical
// inputs, which is itself part of the protocol contract.
type Signer struct {
	secret string
	now    func() int64 // Millisecond epoch clock, overridable in tests
}

// NewSigner creates a Signer for the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: secret,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Sign injects a millisecond epoch timestamp into params, builds the canonical
// string and signs it. It returns the hex signature and the timestamp that was
// injected. params is mutated (the timestamp key is set) so the caller can
// serialize exactly what was signed.
func (s *Signer) Sign(method, path string, params map[string]string, body []byte) (signature string, timestamp int64) {
	timestamp = s.now()
	params["timestamp"] = strconv.FormatInt(timestamp, 10)

	payload := method + path + "?" + CanonicalQuery(params) + string(body)

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil)), timestamp
}

// CanonicalQuery serializes params sorted lexicographically by key, joined as
// k=v pairs with '&' and no percent-encoding.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}
