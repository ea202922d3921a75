package token

import (
	"errors"
	"testing"
	"time"

	"github.com/ent0n29/voicecard/internal/apperrors"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewIssuerRequiresSecrets(t *testing.T) {
	cases := []struct {
		key, secret string
		missing     int
	}{
		{"", "", 2},
		{"key", "", 1},
		{"", "secret", 1},
	}
	for _, tc := range cases {
		_, err := NewIssuer(tc.key, tc.secret)
		var cfgErr *apperrors.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("NewIssuer(%q,%q) error = %v, want ConfigurationError", tc.key, tc.secret, err)
		}
		if len(cfgErr.Missing) != tc.missing {
			t.Fatalf("Missing = %v, want %d entries", cfgErr.Missing, tc.missing)
		}
	}
}

func TestIssueEmbedsFixedGrantAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer("APIkey", "s3cret")
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	iss = iss.WithClock(fixedClock(now))

	cred, err := iss.Issue(Participant{ID: "voice_assistant_user_42", DisplayName: "Card Recipient"}, "room_1", ParticipantGrant("room_1"))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if cred.Token == "" {
		t.Fatalf("Token is empty")
	}
	if got := cred.ExpiresAt.Sub(cred.IssuedAt); got != TTL {
		t.Fatalf("ttl = %v, want %v", got, TTL)
	}

	claims, err := iss.Verify(cred.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if *claims.Video != ParticipantGrant("room_1") {
		t.Fatalf("grant = %+v, want %+v", *claims.Video, ParticipantGrant("room_1"))
	}
	if claims.Subject != "voice_assistant_user_42" || claims.Name != "Card Recipient" {
		t.Fatalf("unexpected identity claims: sub=%q name=%q", claims.Subject, claims.Name)
	}
	if claims.Issuer != "APIkey" {
		t.Fatalf("iss = %q, want %q", claims.Issuer, "APIkey")
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Fatalf("exp-iat = %v, want 15m", got)
	}
}

func TestIssueFillsEmptyGrantRoom(t *testing.T) {
	iss, _ := NewIssuer("k", "s")
	cred, err := iss.Issue(Participant{ID: "u"}, "room_9", ParticipantGrant(""))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := iss.Verify(cred.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Video.Room != "room_9" {
		t.Fatalf("grant room = %q, want room_9", claims.Video.Room)
	}
}

func TestIssueRejectsRoomMismatch(t *testing.T) {
	iss, _ := NewIssuer("k", "s")
	_, err := iss.Issue(Participant{ID: "u"}, "room_a", ParticipantGrant("room_b"))
	if !errors.Is(err, ErrRoomMismatch) {
		t.Fatalf("Issue() error = %v, want ErrRoomMismatch", err)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, _ := NewIssuer("k", "s")
	cred, err := iss.WithClock(fixedClock(issuedAt)).Issue(Participant{ID: "u"}, "r", ParticipantGrant("r"))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	late := iss.WithClock(fixedClock(issuedAt.Add(TTL + time.Minute)))
	if _, err := late.Verify(cred.Token); err == nil {
		t.Fatalf("Verify() after expiry succeeded, want error")
	}

	other, _ := NewIssuer("k", "different")
	if _, err := other.WithClock(fixedClock(issuedAt)).Verify(cred.Token); err == nil {
		t.Fatalf("Verify() with wrong secret succeeded, want error")
	}
}
