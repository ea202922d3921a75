// Package token issues signed access credentials for the realtime session
// service. Tokens are HS256 JWTs signed with the pre-shared API secret and
// carry a room-scoped capability grant under the "video" claim.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ent0n29/voicecard/internal/apperrors"
)

// TTL is the lifetime of participant credentials.
const TTL = 15 * time.Minute

var ErrRoomMismatch = errors.New("grant room does not match requested room")

// CapabilityGrant is the set of permissions embedded in a credential.
type CapabilityGrant struct {
	Room                 string `json:"room,omitempty"`
	RoomJoin             bool   `json:"roomJoin,omitempty"`
	RoomAdmin            bool   `json:"roomAdmin,omitempty"`
	CanPublish           bool   `json:"canPublish,omitempty"`
	CanPublishData       bool   `json:"canPublishData,omitempty"`
	CanSubscribe         bool   `json:"canSubscribe,omitempty"`
	CanUpdateOwnMetadata bool   `json:"canUpdateOwnMetadata,omitempty"`
}

// ParticipantGrant is the fixed policy every client credential carries.
// It is intentionally not configurable per caller.
func ParticipantGrant(room string) CapabilityGrant {
	return CapabilityGrant{
		Room:                 room,
		RoomJoin:             true,
		CanPublish:           true,
		CanPublishData:       true,
		CanSubscribe:         true,
		CanUpdateOwnMetadata: true,
	}
}

// Participant identifies who a credential is issued to.
type Participant struct {
	ID          string
	DisplayName string
}

// Credential is a signed token plus the timestamps embedded in it.
type Credential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT body.
type Claims struct {
	jwt.RegisteredClaims
	Name  string           `json:"name,omitempty"`
	Video *CapabilityGrant `json:"video,omitempty"`
}

// Issuer signs credentials. It holds no state about issued tokens.
type Issuer struct {
	apiKey    string
	apiSecret []byte
	now       func() time.Time
}

// NewIssuer fails with a ConfigurationError if either secret is blank.
func NewIssuer(apiKey, apiSecret string) (*Issuer, error) {
	var missing []string
	if apiKey == "" {
		missing = append(missing, "LIVEKIT_API_KEY")
	}
	if apiSecret == "" {
		missing = append(missing, "LIVEKIT_API_SECRET")
	}
	if len(missing) > 0 {
		return nil, apperrors.MissingConfig(missing...)
	}
	return &Issuer{apiKey: apiKey, apiSecret: []byte(apiSecret), now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

// Issue signs a participant credential scoped to roomID. The grant's room
// is set to roomID when empty and must otherwise match it.
func (i *Issuer) Issue(p Participant, roomID string, grant CapabilityGrant) (Credential, error) {
	if p.ID == "" {
		return Credential{}, errors.New("participant identity is required")
	}
	if roomID == "" {
		return Credential{}, errors.New("room is required")
	}
	if grant.Room == "" {
		grant.Room = roomID
	}
	if grant.Room != roomID {
		return Credential{}, fmt.Errorf("%w: %q != %q", ErrRoomMismatch, grant.Room, roomID)
	}
	return i.sign(p.ID, p.DisplayName, grant, TTL)
}

func (i *Issuer) sign(identity, name string, grant CapabilityGrant, ttl time.Duration) (Credential, error) {
	// JWT timestamps have second precision.
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			ID:        identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name:  name,
		Video: &grant,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.apiSecret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign token: %w", err)
	}
	return Credential{Token: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks the signature, issuer and time window of a token and
// returns its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.apiSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Video == nil {
		return nil, errors.New("verify token: missing grant")
	}
	return &claims, nil
}
