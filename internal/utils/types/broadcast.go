package types

import "encoding/json"

// BroadcastPayload is a gateway frame queued for delivery by a worker. Data
// is already encoded; the first room becomes the frame's roomId.
type BroadcastPayload struct {
	Event string          `json:"event"`
	Rooms []string        `json:"rooms"`
	Data  json.RawMessage `json:"data"`
}
