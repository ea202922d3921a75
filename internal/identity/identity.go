// Package identity generates the participant and room names used for one
// provisioned session.
package identity

import (
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

const (
	DefaultParticipantPrefix = "voice_assistant_user_"
	DefaultRoomPrefix        = "voice_assistant_room_"

	// RandomSuffixBound is the exclusive upper bound of RandomGenerator suffixes.
	RandomSuffixBound = 10_000
)

// SessionIdentity names the participant and the room of one session.
type SessionIdentity struct {
	ParticipantID string
	RoomID        string
}

// Generator produces a fresh SessionIdentity. Implementations never fail.
type Generator interface {
	Generate() SessionIdentity
}

// RandomGenerator appends a random number in [0, RandomSuffixBound) to each
// prefix. Two sessions may collide; callers accept that for short-lived rooms.
type RandomGenerator struct {
	ParticipantPrefix string
	RoomPrefix        string
	// Intn defaults to math/rand/v2.IntN.
	Intn func(n int) int
}

func NewRandomGenerator(participantPrefix, roomPrefix string) *RandomGenerator {
	return &RandomGenerator{
		ParticipantPrefix: orDefault(participantPrefix, DefaultParticipantPrefix),
		RoomPrefix:        orDefault(roomPrefix, DefaultRoomPrefix),
	}
}

func (g *RandomGenerator) Generate() SessionIdentity {
	intn := g.Intn
	if intn == nil {
		intn = rand.IntN
	}
	return SessionIdentity{
		ParticipantID: g.ParticipantPrefix + strconv.Itoa(intn(RandomSuffixBound)),
		RoomID:        g.RoomPrefix + strconv.Itoa(intn(RandomSuffixBound)),
	}
}

// UUIDGenerator suffixes each prefix with a random 128-bit UUID.
type UUIDGenerator struct {
	ParticipantPrefix string
	RoomPrefix        string
}

func NewUUIDGenerator(participantPrefix, roomPrefix string) *UUIDGenerator {
	return &UUIDGenerator{
		ParticipantPrefix: orDefault(participantPrefix, DefaultParticipantPrefix),
		RoomPrefix:        orDefault(roomPrefix, DefaultRoomPrefix),
	}
}

func (g *UUIDGenerator) Generate() SessionIdentity {
	return SessionIdentity{
		ParticipantID: g.ParticipantPrefix + uuid.NewString(),
		RoomID:        g.RoomPrefix + uuid.NewString(),
	}
}

// New picks a generator by mode ("random" or "uuid"). Unknown modes fall
// back to random.
func New(mode, participantPrefix, roomPrefix string) Generator {
	if mode == "uuid" {
		return NewUUIDGenerator(participantPrefix, roomPrefix)
	}
	return NewRandomGenerator(participantPrefix, roomPrefix)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
