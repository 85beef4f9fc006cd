package monitor

import (
	"log"

	"slidenet/internal/trainer"
)

// Bridge adapts a trainer.Progress callback into broadcasts over a Hub. Pass
// bridge.OnProgress directly as the progress callback to trainer.Run.
type Bridge struct {
	hub *Hub
}

// NewBridge returns a Bridge that broadcasts over hub.
func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

// OnProgress marshals p and broadcasts it to every connected client.
func (b *Bridge) OnProgress(p trainer.Progress) {
	msg, err := NewEnvelope(TypeProgress, ProgressPayloadFrom(p))
	if err != nil {
		log.Printf("monitor: error marshaling progress: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}

// OnDone broadcasts a completion marker.
func (b *Bridge) OnDone() {
	msg, err := NewEnvelope(TypeDone, nil)
	if err != nil {
		log.Printf("monitor: error marshaling done marker: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}
