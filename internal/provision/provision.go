// Package provision turns a card payload into connection details for one
// realtime session: it names the session, dispatches the agent into the
// room and signs the participant credential for that same room.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/voicecard/internal/apperrors"
	"github.com/ent0n29/voicecard/internal/card"
	"github.com/ent0n29/voicecard/internal/config"
	"github.com/ent0n29/voicecard/internal/dispatch"
	"github.com/ent0n29/voicecard/internal/identity"
	"github.com/ent0n29/voicecard/internal/logging"
	"github.com/ent0n29/voicecard/internal/observability"
	"github.com/ent0n29/voicecard/internal/policy"
	"github.com/ent0n29/voicecard/internal/token"
)

const cancelTimeout = 5 * time.Second

// ConnectionDetails is everything a client needs to open the session.
type ConnectionDetails struct {
	ServerURL        string `json:"serverUrl"`
	RoomName         string `json:"roomName"`
	ParticipantName  string `json:"participantName"`
	ParticipantToken string `json:"participantToken"`
}

// TokenIssuer signs participant credentials.
type TokenIssuer interface {
	Issue(p token.Participant, roomID string, grant token.CapabilityGrant) (token.Credential, error)
}

type Options struct {
	ServerURL string
	APIKey    string
	APISecret string

	AgentName          string
	DisplayName        string
	DispatchTimeout    time.Duration
	CompensateDispatch bool

	Identities identity.Generator
	Dispatcher dispatch.Dispatcher
	Issuer     TokenIssuer
	Metrics    *observability.Metrics
	Logger     *logrus.Logger
}

// Service is stateless between calls; concurrent Provision calls are
// independent and are not deduplicated.
type Service struct {
	opts Options
	// setupErr is returned from every Provision call when the
	// dependencies could not be built from configuration.
	setupErr error
}

func New(opts Options) *Service {
	if opts.AgentName == "" {
		opts.AgentName = "inbound-agent"
	}
	if opts.DisplayName == "" {
		opts.DisplayName = "Card Recipient"
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	if opts.Identities == nil {
		opts.Identities = identity.NewRandomGenerator("", "")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{opts: opts}
}

// NewFromConfig wires the token issuer and the orchestration client from
// cfg. A deployment missing secrets still gets a Service; every call then
// fails with the ConfigurationError.
func NewFromConfig(cfg config.Config, metrics *observability.Metrics, log *logrus.Logger) *Service {
	opts := Options{
		ServerURL:          cfg.LiveKitURL,
		APIKey:             cfg.LiveKitAPIKey,
		APISecret:          cfg.LiveKitAPISecret,
		AgentName:          cfg.AgentName,
		DisplayName:        cfg.ParticipantDisplayName,
		DispatchTimeout:    cfg.DispatchTimeout,
		CompensateDispatch: cfg.CompensateDispatch,
		Identities:         identity.New(cfg.IdentityMode, cfg.ParticipantPrefix, cfg.RoomPrefix),
		Metrics:            metrics,
		Logger:             log,
	}
	s := New(opts)
	if missing := cfg.MissingProvisioningKeys(); len(missing) > 0 {
		s.setupErr = apperrors.MissingConfig(missing...)
		return s
	}

	issuer, err := token.NewIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	if err != nil {
		s.setupErr = err
		return s
	}
	var dispatcher dispatch.Dispatcher
	if cfg.DispatchMode == "mock" {
		dispatcher = dispatch.NewMockDispatcher()
		s.opts.Logger.Warn("agent dispatch is mocked; no agent will join provisioned rooms")
	} else {
		client, err := dispatch.NewLiveKitClient(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
		if err != nil {
			s.setupErr = err
			return s
		}
		dispatcher = client
	}
	s.opts.Issuer = issuer
	s.opts.Dispatcher = dispatcher
	return s
}

// Ready reports the configuration error that blocks provisioning, if any.
func (s *Service) Ready() error {
	if s.setupErr != nil {
		return s.setupErr
	}
	var missing []string
	if s.opts.ServerURL == "" {
		missing = append(missing, "LIVEKIT_URL")
	}
	if s.opts.APIKey == "" {
		missing = append(missing, "LIVEKIT_API_KEY")
	}
	if s.opts.APISecret == "" {
		missing = append(missing, "LIVEKIT_API_SECRET")
	}
	if len(missing) > 0 {
		return apperrors.MissingConfig(missing...)
	}
	if s.opts.Dispatcher == nil || s.opts.Issuer == nil {
		return &apperrors.ConfigurationError{Message: "session service clients are not configured"}
	}
	return nil
}

// Provision runs the provisioning sequence. Each step short-circuits the
// rest. A dispatch that succeeded is not undone when signing fails unless
// CompensateDispatch is set.
func (s *Service) Provision(ctx context.Context, payload *card.Payload) (ConnectionDetails, error) {
	start := time.Now()
	var attempt observability.Attempt
	details, err := s.provision(ctx, payload, &attempt)
	attempt.Outcome = outcomeOf(err)
	attempt.Total = time.Since(start)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveProvision(attempt)
	}
	return details, err
}

func (s *Service) provision(ctx context.Context, payload *card.Payload, attempt *observability.Attempt) (ConnectionDetails, error) {
	if err := s.Ready(); err != nil {
		s.opts.Logger.WithError(err).Error("provisioning refused: configuration incomplete")
		return ConnectionDetails{}, err
	}
	metadata, err := card.EncodeMetadata(payload)
	if err != nil {
		return ConnectionDetails{}, err
	}

	id := s.opts.Identities.Generate()
	entry := s.opts.Logger.WithFields(logrus.Fields{"room": id.RoomID, "participant": id.ParticipantID})

	dispatchCtx, cancel := context.WithTimeout(ctx, s.opts.DispatchTimeout)
	dispatchStart := time.Now()
	rec, err := s.opts.Dispatcher.Dispatch(dispatchCtx, id.RoomID, s.opts.AgentName, metadata)
	cancel()
	attempt.Dispatch = time.Since(dispatchStart)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveDispatchLatency(attempt.Dispatch)
	}
	if err != nil {
		var du *apperrors.DispatchUnavailable
		if errors.As(err, &du) && s.opts.Metrics != nil {
			s.opts.Metrics.ProviderErrors.WithLabelValues("dispatch", fmt.Sprintf("%d", du.Status)).Inc()
		}
		entry.WithError(err).Error("agent dispatch failed")
		return ConnectionDetails{}, fmt.Errorf("dispatch agent: %w", err)
	}
	entry.WithFields(policy.CardLogFields(payload)).
		WithFields(logrus.Fields{"dispatch_id": rec.ID, "agent": rec.AgentName}).
		Info("agent dispatched")

	signStart := time.Now()
	cred, err := s.opts.Issuer.Issue(
		token.Participant{ID: id.ParticipantID, DisplayName: s.opts.DisplayName},
		id.RoomID,
		token.ParticipantGrant(id.RoomID),
	)
	attempt.Sign = time.Since(signStart)
	if err != nil {
		entry.WithError(err).Error("issue participant token failed")
		if s.opts.CompensateDispatch {
			attempt.Compensated = s.compensate(ctx, id.RoomID, rec.ID)
		}
		return ConnectionDetails{}, fmt.Errorf("issue participant token: %w", err)
	}
	entry.WithField("token", policy.MaskToken(cred.Token)).Debug("participant token issued")

	return ConnectionDetails{
		ServerURL:        s.opts.ServerURL,
		RoomName:         id.RoomID,
		ParticipantName:  id.ParticipantID,
		ParticipantToken: cred.Token,
	}, nil
}

func (s *Service) compensate(ctx context.Context, roomID, dispatchID string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	entry := s.opts.Logger.WithFields(logrus.Fields{"room": roomID, "dispatch_id": dispatchID})
	if err := s.opts.Dispatcher.Cancel(ctx, roomID, dispatchID); err != nil {
		entry.WithError(err).Warn("cancel orphaned dispatch failed")
		return false
	}
	entry.Info("orphaned dispatch cancelled")
	return true
}

func outcomeOf(err error) string {
	var (
		cfgErr     *apperrors.ConfigurationError
		payloadErr *apperrors.PayloadError
		du         *apperrors.DispatchUnavailable
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &payloadErr):
		return "payload_error"
	case errors.As(err, &du):
		return "dispatch_unavailable"
	default:
		return "internal_error"
	}
}
