package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"
)

// handshakeSkew is the maximum age of a handshake token before it is
// rejected, bounding replay of a leaked token.
const handshakeSkew = 5 * time.Minute

// canonicalHandshakeString is the exact byte sequence signed and verified:
// agent-id, a separator byte that can't appear in an agent id, and the
// timestamp, so a token issued for one agent can never verify for another.
func canonicalHandshakeString(agentID string, ts int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts))
	out := make([]byte, 0, len(agentID)+1+8)
	out = append(out, agentID...)
	out = append(out, ':')
	out = append(out, buf[:]...)
	return out
}

// SignHandshakeToken produces a time-scoped HMAC token, bound to agentID,
// that a client presents as the `token` query parameter (alongside an
// `agentId` parameter carrying the same id) when opening the WebSocket
// connection.
func SignHandshakeToken(secret, agentID string, now time.Time) string {
	ts := now.Unix()
	signed := canonicalHandshakeString(agentID, ts)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signed)
	sig := mac.Sum(nil)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(ts))
	payload := append(tsBuf[:], sig...)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// verifyHandshakeToken checks that token was signed for exactly agentID and
// is still within the skew window.
func verifyHandshakeToken(secret, agentID, token string) bool {
	if agentID == "" {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < 8 {
		return false
	}
	ts := int64(binary.BigEndian.Uint64(raw[:8]))
	issued := time.Unix(ts, 0)
	if time.Since(issued) > handshakeSkew || time.Since(issued) < -handshakeSkew {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonicalHandshakeString(agentID, ts))
	expected := mac.Sum(nil)

	return hmac.Equal(expected, raw[8:])
}
