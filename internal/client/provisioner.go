package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/voicecard/internal/card"
	"github.com/ent0n29/voicecard/internal/provision"
)

var ErrCardNotFound = errors.New("card not found")

// HTTPProvisioner calls the provisioning endpoint of a voicecard server.
type HTTPProvisioner struct {
	baseURL string
	client  *http.Client

	UserName string
	AgentID  string
	UserID   string
}

func NewHTTPProvisioner(baseURL string) *HTTPProvisioner {
	return &HTTPProvisioner{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
		UserName: "Card Recipient",
	}
}

type connectionDetailsRequest struct {
	UserName string        `json:"userName,omitempty"`
	AgentID  string        `json:"agentId,omitempty"`
	UserID   string        `json:"userId,omitempty"`
	CardData *card.Payload `json:"cardData"`
}

type errorBody struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func (p *HTTPProvisioner) Provision(ctx context.Context, payload card.Payload) (provision.ConnectionDetails, error) {
	body, err := json.Marshal(connectionDetailsRequest{
		UserName: p.UserName,
		AgentID:  p.AgentID,
		UserID:   p.UserID,
		CardData: &payload,
	})
	if err != nil {
		return provision.ConnectionDetails{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/connection-details", bytes.NewReader(body))
	if err != nil {
		return provision.ConnectionDetails{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return provision.ConnectionDetails{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return provision.ConnectionDetails{}, decodeError(res)
	}
	var details provision.ConnectionDetails
	if err := json.NewDecoder(res.Body).Decode(&details); err != nil {
		return provision.ConnectionDetails{}, fmt.Errorf("decode connection details: %w", err)
	}
	if details.ServerURL == "" || details.ParticipantToken == "" {
		return provision.ConnectionDetails{}, errors.New("connection details incomplete")
	}
	return details, nil
}

// FetchCard loads a card document through the server.
func (p *HTTPProvisioner) FetchCard(ctx context.Context, id string) (card.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/cards/"+url.PathEscape(id), nil)
	if err != nil {
		return card.Payload{}, fmt.Errorf("create request: %w", err)
	}
	res, err := p.client.Do(req)
	if err != nil {
		return card.Payload{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return card.Payload{}, ErrCardNotFound
	default:
		return card.Payload{}, decodeError(res)
	}
	var out card.Payload
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return card.Payload{}, fmt.Errorf("decode card: %w", err)
	}
	return out, nil
}

func decodeError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return fmt.Errorf("server status %d: %s", res.StatusCode, eb.Error)
	}
	return fmt.Errorf("server status %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
}
