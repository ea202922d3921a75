// Package dispatch asks the agent orchestration service to attach a named
// agent to a room before any participant joins it.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/ent0n29/voicecard/internal/apperrors"
)

// Record is the orchestration service's view of one dispatch.
type Record struct {
	ID        string
	AgentName string
	Room      string
	Metadata  string
	CreatedAt time.Time
}

// Dispatcher attaches agents to rooms. Cancel is the compensating action
// for a dispatch whose participant never received a credential.
type Dispatcher interface {
	Dispatch(ctx context.Context, roomID, agentName, metadata string) (Record, error)
	Cancel(ctx context.Context, roomID, dispatchID string) error
}

// validate runs before any network call: a dispatched agent with bad
// metadata cannot be cheaply recalled.
func validate(roomID, agentName, metadata string) error {
	switch {
	case strings.TrimSpace(roomID) == "":
		return &apperrors.PayloadError{Field: "room"}
	case strings.TrimSpace(agentName) == "":
		return &apperrors.PayloadError{Field: "agentName"}
	case strings.TrimSpace(metadata) == "":
		return &apperrors.PayloadError{Field: "metadata"}
	}
	return nil
}
