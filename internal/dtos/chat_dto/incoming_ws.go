package chat_dto

import "encoding/json"

// Inbound event names.
const (
	EventRegister            = "register"
	EventJoinConversation    = "joinConversation"
	EventSendMessage         = "sendMessage"
	EventSeenMessage         = "seenMessage"
	EventRecallMessage       = "recallMessage"
	EventDeleteMessage       = "deleteMessage"
	EventDeleteMessageForAll = "deleteMessageForAll"
)

// WSIncomingMessage is the envelope of every client frame. OpID is optional;
// when present the gateway answers with an ack carrying the same id.
type WSIncomingMessage struct {
	Event string          `json:"event"`
	OpID  string          `json:"opId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RegisterData struct {
	UserID string `json:"userId"`
}

type JoinConversationData struct {
	ConversationID string `json:"conversationId"`
}

// SendMessageData addresses either an existing conversation or a peer. A peer
// resolves to the direct conversation between the two users.
type SendMessageData struct {
	ConversationID string `json:"conversationId,omitempty"`
	ToUserID       string `json:"toUserId,omitempty"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
	MediaURL       string `json:"mediaUrl,omitempty"`
	Mimetype       string `json:"mimetype,omitempty"`
	OriginalName   string `json:"originalName,omitempty"`
	LocalID        string `json:"localId,omitempty"`
}

type SeenMessageData struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// MessageMutationData is shared by recall, delete and delete-for-all.
type MessageMutationData struct {
	MessageID string `json:"messageId"`
}
