package gateway

import (
	"testing"
	"time"
)

func TestVerifyHandshakeTokenAcceptsFreshToken(t *testing.T) {
	token := SignHandshakeToken("shared-secret", "agent-1", time.Now())
	if !verifyHandshakeToken("shared-secret", "agent-1", token) {
		t.Fatal("verifyHandshakeToken: expected a freshly signed token to verify")
	}
}

func TestVerifyHandshakeTokenRejectsWrongSecret(t *testing.T) {
	token := SignHandshakeToken("shared-secret", "agent-1", time.Now())
	if verifyHandshakeToken("other-secret", "agent-1", token) {
		t.Fatal("verifyHandshakeToken: expected rejection under a different secret")
	}
}

func TestVerifyHandshakeTokenRejectsWrongAgentID(t *testing.T) {
	token := SignHandshakeToken("shared-secret", "agent-1", time.Now())
	if verifyHandshakeToken("shared-secret", "agent-2", token) {
		t.Fatal("verifyHandshakeToken: expected rejection when the token was signed for a different agent")
	}
}

func TestVerifyHandshakeTokenRejectsEmptyAgentID(t *testing.T) {
	token := SignHandshakeToken("shared-secret", "agent-1", time.Now())
	if verifyHandshakeToken("shared-secret", "", token) {
		t.Fatal("verifyHandshakeToken: expected rejection without an agent id to check")
	}
}

func TestVerifyHandshakeTokenRejectsExpired(t *testing.T) {
	token := SignHandshakeToken("shared-secret", "agent-1", time.Now().Add(-time.Hour))
	if verifyHandshakeToken("shared-secret", "agent-1", token) {
		t.Fatal("verifyHandshakeToken: expected rejection of a token issued over an hour ago")
	}
}

func TestVerifyHandshakeTokenRejectsMalformed(t *testing.T) {
	if verifyHandshakeToken("shared-secret", "agent-1", "not-base64!!") {
		t.Fatal("verifyHandshakeToken: expected rejection of a malformed token")
	}
	if verifyHandshakeToken("shared-secret", "agent-1", "") {
		t.Fatal("verifyHandshakeToken: expected rejection of an empty token")
	}
}

func TestVerifyHandshakeTokenRejectsTamperedSignature(t *testing.T) {
	token := SignHandshakeToken("shared-secret", "agent-1", time.Now())
	// The last character of the unpadded encoding carries only two bits of
	// the payload, so alter the one before it, whose six bits all count.
	i := len(token) - 2
	c := "A"
	if token[i] == 'A' {
		c = "B"
	}
	tampered := token[:i] + c + token[i+1:]
	if verifyHandshakeToken("shared-secret", "agent-1", tampered) {
		t.Fatal("verifyHandshakeToken: expected rejection of a tampered token")
	}
}
