package websocket

import (
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
)

type OutgoingMessage = chat_dto.WSOutgoingMessage

const (
	conversationRoomPrefix = "conversation:"
	personalRoomPrefix     = "user:"
)

func ConversationRoom(conversationID string) string {
	return conversationRoomPrefix + conversationID
}

// PersonalRoom addresses every connection of one user regardless of which
// conversations they joined.
func PersonalRoom(userID string) string {
	return personalRoomPrefix + userID
}

func isConversationRoom(roomID string) bool {
	return len(roomID) > len(conversationRoomPrefix) && roomID[:len(conversationRoomPrefix)] == conversationRoomPrefix
}

func NewEvent(event, roomID string, data any) OutgoingMessage {
	return OutgoingMessage{
		Event:     event,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

func encodeFrame(msg OutgoingMessage) ([]byte, error) {
	return json.Marshal(msg)
}
