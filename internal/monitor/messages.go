package monitor

import (
	"encoding/json"

	"slidenet/internal/trainer"
)

// Envelope wraps every broadcast message with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProgressPayload is the wire form of trainer.Progress.
type ProgressPayload struct {
	Iter     int     `json:"iter"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

const (
	// TypeProgress is broadcast once per training iteration.
	TypeProgress = "train:progress"
	// TypeDone is broadcast once a training run completes.
	TypeDone = "train:done"
)

// NewEnvelope marshals payload and wraps it in an Envelope of the given type.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// ProgressPayloadFrom converts a trainer.Progress into its wire form.
func ProgressPayloadFrom(p trainer.Progress) ProgressPayload {
	return ProgressPayload{Iter: p.Iter, Loss: p.Loss, Accuracy: p.Accuracy}
}
