package policy

import (
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/voicecard/internal/card"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card numbers before phones: a card number also matches the phone pattern.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// CardLogFields returns structured log fields for a card payload with free
// text passed through RedactPII. The message body is never logged verbatim.
func CardLogFields(p *card.Payload) logrus.Fields {
	if p == nil {
		return logrus.Fields{"card": "<nil>"}
	}
	sender, _ := RedactPII(p.SenderName)
	recipient, _ := RedactPII(p.RecipientName)
	_, messageHasPII := RedactPII(p.Message)
	return logrus.Fields{
		"card_sender":       sender,
		"card_recipient":    recipient,
		"card_message_len":  len(p.Message),
		"card_message_pii":  messageHasPII,
		"card_template_url": p.TemplateImageURL,
	}
}

// MaskToken keeps only enough of a credential to correlate log lines.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
