package syncclient

import (
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
	"github.com/quocdatk18/appchat-sub000/internal/timeline"
)

// apply routes one inbound frame into the views, the presence map or a
// waiting request.
func (s *Session) apply(frame chat_dto.WSOutgoingFrame) error {
	switch frame.Event {
	case chat_dto.EventAck:
		var ack chat_dto.AckData
		if err := json.Unmarshal(frame.Data, &ack); err != nil {
			return err
		}
		s.resolve(ack)

	case chat_dto.EventMessageReceived:
		var msg chat_dto.MessageResponse
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return err
		}
		s.views.Reconcile(msg.ToEntity())

	case chat_dto.EventMessageRecalled:
		var data chat_dto.MessageRecalledData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return err
		}
		s.views.ApplyMutation(timeline.RecallMutation(data))

	case chat_dto.EventMessageDeletedForAll:
		var data chat_dto.MessageDeletedForAllData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return err
		}
		s.views.ApplyMutation(timeline.DeleteForAllMutation(data))

	case chat_dto.EventMessageDeleted:
		var data chat_dto.MessageDeletedData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return err
		}
		s.views.ApplyMutation(timeline.DeleteForUserMutation(data))

	case chat_dto.EventMessageSeen:
		var data chat_dto.MessageSeenData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return err
		}
		s.views.ApplyMutation(timeline.SeenMutation(data))

	case chat_dto.EventUserStatus:
		var data chat_dto.UserStatusData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return err
		}
		p := Presence{Online: data.IsOnline}
		if data.LastSeen != nil {
			t := time.UnixMilli(*data.LastSeen).UTC()
			p.LastSeen = &t
		}
		s.presenceMu.Lock()
		s.presence[data.UserID] = p
		s.presenceMu.Unlock()
	}
	return nil
}

func (s *Session) resolve(ack chat_dto.AckData) {
	s.pendingMu.Lock()
	ch, ok := s.pending[ack.OpID]
	s.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- ack:
	default:
	}
}
