package chat_dto

import "encoding/json"

// Outbound event names.
const (
	EventMessageReceived      = "messageReceived"
	EventMessageRecalled      = "messageRecalled"
	EventMessageDeleted       = "messageDeleted"
	EventMessageDeletedForAll = "messageDeletedForAll"
	EventMessageSeen          = "messageSeen"
	EventUserStatus           = "userStatus"
	EventAck                  = "ack"
)

const (
	AckOK        = "ok"
	AckError     = "error"
	AckIgnored   = "ignored"
	AckDuplicate = "duplicate"
)

type WSOutgoingMessage struct {
	Event     string `json:"event"`
	RoomID    string `json:"roomId,omitempty"`
	OpID      string `json:"opId,omitempty"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// WSOutgoingFrame is WSOutgoingMessage as a client decodes it.
type WSOutgoingFrame struct {
	Event     string          `json:"event"`
	RoomID    string          `json:"roomId,omitempty"`
	OpID      string          `json:"opId,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type AckFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type AckData struct {
	OpID           string           `json:"opId"`
	Status         string           `json:"status"`
	Error          *AckFailure      `json:"error,omitempty"`
	MessageID      string           `json:"messageId,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
	LocalID        string           `json:"localId,omitempty"`
	Message        *MessageResponse `json:"message,omitempty"`
}

type MessageSeenData struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MessageDeletedData struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MessageRecalledData struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	RecallAt       int64  `json:"recallAt"`
}

type MessageDeletedForAllData struct {
	MessageID       string `json:"messageId"`
	ConversationID  string `json:"conversationId"`
	DeletedForAllBy string `json:"deletedForAllBy"`
	DeletedForAllAt int64  `json:"deletedForAllAt"`
}

type UserStatusData struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	LastSeen *int64 `json:"lastSeen,omitempty"`
}
