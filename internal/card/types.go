package card

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/voicecard/internal/apperrors"
)

var ErrNotFound = errors.New("card not found")

// Payload is the card content handed to the dispatched agent.
type Payload struct {
	SenderName       string `json:"senderName"`
	RecipientName    string `json:"recipientName"`
	Message          string `json:"message"`
	TemplateImageURL string `json:"templateImageUrl"`
}

// Validate reports the first required field that is blank or not valid
// UTF-8. JSON encoding would otherwise replace bad bytes and the agent
// would see a different message.
func (p *Payload) Validate() error {
	if p == nil {
		return apperrors.MissingField("cardData")
	}
	for _, f := range []struct{ name, value string }{
		{"cardData.senderName", p.SenderName},
		{"cardData.recipientName", p.RecipientName},
		{"cardData.message", p.Message},
		{"cardData.templateImageUrl", p.TemplateImageURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &apperrors.PayloadError{Field: f.name}
		}
		if !utf8.ValidString(f.value) {
			return &apperrors.PayloadError{Field: f.name, Message: f.name + " is not valid UTF-8"}
		}
	}
	return nil
}

// Store looks up card documents by collection id. Put upserts; the service
// only writes through it when seeding at startup.
type Store interface {
	Get(ctx context.Context, id string) (Payload, error)
	Put(ctx context.Context, id string, p Payload) error
	Close() error
}
