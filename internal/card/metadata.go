package card

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ent0n29/voicecard/internal/apperrors"
)

// EncodeMetadata serializes a validated payload into the opaque dispatch
// metadata string. DecodeMetadata is its exact inverse.
func EncodeMetadata(p *Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Card messages routinely contain '<' and '&'; keep them readable for the agent.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", &apperrors.PayloadError{Message: "encode card metadata", Cause: err}
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DecodeMetadata is used on the agent side to recover the card payload.
func DecodeMetadata(metadata string) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(metadata)))
	dec.DisallowUnknownFields()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return Payload{}, &apperrors.PayloadError{Message: fmt.Sprintf("decode card metadata: %v", err), Cause: err}
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}
