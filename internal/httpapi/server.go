package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/voicecard/internal/apperrors"
	"github.com/ent0n29/voicecard/internal/card"
	"github.com/ent0n29/voicecard/internal/config"
	"github.com/ent0n29/voicecard/internal/logging"
	"github.com/ent0n29/voicecard/internal/observability"
	"github.com/ent0n29/voicecard/internal/provision"
)

type Provisioner interface {
	Provision(ctx context.Context, payload *card.Payload) (provision.ConnectionDetails, error)
	Ready() error
}

type Server struct {
	cfg         config.Config
	provisioner Provisioner
	cards       card.Store
	metrics     *observability.Metrics
	log         *logrus.Logger
	now         func() time.Time
}

func New(cfg config.Config, provisioner Provisioner, cards card.Store, metrics *observability.Metrics, log *logrus.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		cfg:         cfg,
		provisioner: provisioner,
		cards:       cards,
		metrics:     metrics,
		log:         log,
		now:         time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/connection-details", s.handleConnectionDetails)
	r.Get("/api/cards/{id}", s.handleGetCard)
	r.Get("/api/client-config", s.handleClientConfig)
	r.Get("/api/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"card_store_mode": s.cardStoreMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":          "ready",
		"card_store_mode": s.cardStoreMode(),
	}
	if s.provisioner == nil {
		body["status"] = "not_ready"
		body["error"] = "provisioning not configured"
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	if err := s.provisioner.Ready(); err != nil {
		body["status"] = "not_ready"
		body["error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	respondJSON(w, http.StatusOK, body)
}

// connectionDetailsRequest is the provisioning request body. The user
// fields are accepted for compatibility and not used.
type connectionDetailsRequest struct {
	UserName string        `json:"userName"`
	AgentID  string        `json:"agentId"`
	UserID   string        `json:"userId"`
	CardData *card.Payload `json:"cardData"`
}

func (s *Server) handleConnectionDetails(w http.ResponseWriter, r *http.Request) {
	var req connectionDetailsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.respondProvisionError(w, &apperrors.PayloadError{Message: "invalid request body: " + err.Error(), Cause: err})
		return
	}
	if req.UserName != "" || req.AgentID != "" || req.UserID != "" {
		s.log.WithFields(logrus.Fields{
			"user_name": req.UserName,
			"agent_id":  req.AgentID,
			"user_id":   req.UserID,
		}).Debug("ignoring caller identity fields")
	}
	if s.provisioner == nil {
		s.respondProvisionError(w, &apperrors.ConfigurationError{Message: "provisioning not configured"})
		return
	}

	details, err := s.provisioner.Provision(r.Context(), req.CardData)
	if err != nil {
		s.respondProvisionError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, details)
}

func (s *Server) respondProvisionError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("connection details request failed")
	s.respondFailure(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		s.respondFailure(w, http.StatusBadRequest, "missing card id")
		return
	}
	if s.cards == nil {
		s.respondFailure(w, http.StatusInternalServerError, "card store not configured")
		return
	}

	p, err := s.cards.Get(r.Context(), id)
	switch {
	case errors.Is(err, card.ErrNotFound):
		s.observeCardLookup("not_found")
		s.respondFailure(w, http.StatusNotFound, "card not found")
		return
	case err != nil:
		s.observeCardLookup("error")
		s.log.WithError(err).WithField("card_id", id).Error("card lookup failed")
		s.respondFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.observeCardLookup("found")
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleClientConfig(w http.ResponseWriter, _ *http.Request) {
	if missing := s.cfg.MissingDocStoreKeys(); len(missing) > 0 {
		err := apperrors.MissingConfig(missing...)
		s.log.WithError(err).Error("client config requested but document store is not configured")
		s.respondFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, s.cfg.DocStore)
}

func (s *Server) observeCardLookup(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.CardLookups.WithLabelValues(result).Inc()
}

func (s *Server) cardStoreMode() string {
	switch s.cards.(type) {
	case nil:
		return "disabled"
	case *card.PostgresStore:
		return "postgres"
	default:
		return "in-memory"
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		// io.ErrUnexpectedEOF is a truncated document, not an empty one.
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) respondFailure(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{
		Error:     message,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}
