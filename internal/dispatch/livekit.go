package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"

	"github.com/ent0n29/voicecard/internal/apperrors"
	"github.com/ent0n29/voicecard/internal/reliability"
)

// LiveKitClient dispatches agents through the session service's
// AgentDispatchService.
type LiveKitClient struct {
	svc *lksdk.AgentDispatchClient
	now func() time.Time
}

// NewLiveKitClient accepts the session-service URL as configured for
// clients (ws:// or wss://).
func NewLiveKitClient(serverURL, apiKey, apiSecret string) (*LiveKitClient, error) {
	base, err := HTTPBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
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
	return &LiveKitClient{
		svc: lksdk.NewAgentDispatchServiceClient(base, apiKey, apiSecret),
		now: time.Now,
	}, nil
}

// HTTPBaseURL maps ws to http and wss to https, leaving http(s) untouched.
func HTTPBaseURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", &apperrors.ConfigurationError{Message: fmt.Sprintf("invalid LIVEKIT_URL: %v", err)}
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", &apperrors.ConfigurationError{Message: fmt.Sprintf("invalid LIVEKIT_URL scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return "", &apperrors.ConfigurationError{Message: "invalid LIVEKIT_URL: missing host"}
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c *LiveKitClient) Dispatch(ctx context.Context, roomID, agentName, metadata string) (Record, error) {
	if err := validate(roomID, agentName, metadata); err != nil {
		return Record{}, err
	}
	res, err := c.svc.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		Room:      roomID,
		AgentName: agentName,
		Metadata:  metadata,
	})
	if err != nil {
		return Record{}, unavailable("CreateDispatch", err)
	}

	rec := Record{
		ID:        res.GetId(),
		AgentName: res.GetAgentName(),
		Room:      res.GetRoom(),
		Metadata:  res.GetMetadata(),
		CreatedAt: c.now().UTC(),
	}
	if rec.Room == "" {
		rec.Room = roomID
	}
	if rec.AgentName == "" {
		rec.AgentName = agentName
	}
	return rec, nil
}

func (c *LiveKitClient) Cancel(ctx context.Context, roomID, dispatchID string) error {
	if strings.TrimSpace(dispatchID) == "" {
		return &apperrors.PayloadError{Field: "dispatchId"}
	}
	_, err := c.svc.DeleteDispatch(ctx, &livekit.DeleteAgentDispatchRequest{
		DispatchId: dispatchID,
		Room:       roomID,
	})
	if err != nil {
		return unavailable("DeleteDispatch", err)
	}
	return nil
}

func unavailable(method string, err error) error {
	out := &apperrors.DispatchUnavailable{
		Retryable: reliability.IsRetryableError(err),
		Cause:     fmt.Errorf("%s: %w", method, err),
	}
	var twerr twirp.Error
	if errors.As(err, &twerr) {
		out.Status = twirp.ServerHTTPStatusFromErrorCode(twerr.Code())
		out.Retryable = out.Retryable || reliability.IsRetryableHTTPStatus(out.Status)
	}
	return out
}
