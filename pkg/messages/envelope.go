// Package messages defines the payloads exchanged between vesselwatch agents
package messages

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope carries metadata common to every message
type Envelope struct {
	MessageID     string `json:"message_id"`
	CorrelationID string `json:"correlation_id,omitempty"`

	Source     string `json:"source"`      // agent id
	SourceType string `json:"source_type"` // agent type

	Timestamp time.Time `json:"timestamp"`

	// HMAC-SHA256 of the message marshalled with an empty signature
	Signature string `json:"signature,omitempty"`
}

// NewEnvelope creates an envelope with a fresh message id
func NewEnvelope(source, sourceType string) Envelope {
	return Envelope{
		MessageID:  uuid.New().String(),
		Source:     source,
		SourceType: sourceType,
		Timestamp:  time.Now().UTC(),
	}
}

// WithCorrelation sets the correlation id
func (e Envelope) WithCorrelation(correlationID string) Envelope {
	e.CorrelationID = correlationID
	return e
}

// Sign sets the HMAC signature of payload
func (e *Envelope) Sign(payload []byte, secret []byte) {
	e.Signature = sign(payload, secret)
}

// VerifySignature checks the HMAC signature of payload
func (e *Envelope) VerifySignature(payload []byte, secret []byte) bool {
	return hmac.Equal([]byte(e.Signature), []byte(sign(payload, secret)))
}

func sign(payload, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Message is implemented by every payload type
type Message interface {
	GetEnvelope() Envelope
	SetEnvelope(Envelope)
	Subject() string
}

// MarshalWithSignature signs msg with secret and returns its JSON form.
// An empty secret leaves the message unsigned.
func MarshalWithSignature(msg Message, secret []byte) ([]byte, error) {
	env := msg.GetEnvelope()
	env.Signature = ""
	msg.SetEnvelope(env)

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(secret) == 0 {
		return data, nil
	}

	env.Sign(data, secret)
	msg.SetEnvelope(env)

	return json.Marshal(msg)
}

// UnmarshalVerified decodes data into msg and checks its signature when a
// secret is configured.
func UnmarshalVerified(data []byte, msg Message, secret []byte) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if len(secret) == 0 {
		return nil
	}

	env := msg.GetEnvelope()
	sig := env.Signature
	env.Signature = ""
	msg.SetEnvelope(env)

	unsigned, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	env.Signature = sig
	msg.SetEnvelope(env)
	if !env.VerifySignature(unsigned, secret) {
		return fmt.Errorf("invalid signature on message %s", env.MessageID)
	}
	return nil
}
