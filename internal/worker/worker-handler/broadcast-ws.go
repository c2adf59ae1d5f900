package worker_handler

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/utils/types"
)

func (wh *WorkerHandler) HandleBroadcastEvent(raw json.RawMessage) error {
	var payload types.BroadcastPayload

	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid broadcast payload: %w", err)
	}
	if payload.Event == "" || len(payload.Rooms) == 0 {
		return errors.New("broadcast payload needs an event and at least one room")
	}

	// nobody online is not a failure
	sent := wh.Ws.Broadcast(payload.Event, payload.Data, payload.Rooms...)
	log.Debug().Str("event", payload.Event).Int("rooms", len(payload.Rooms)).Int("sent", sent).Msg("worker: broadcast delivered")
	return nil
}
