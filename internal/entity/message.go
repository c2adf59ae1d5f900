package entity

import (
	"slices"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypeVideo MessageType = "video"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeVideo:
		return true
	}
	return false
}

// MessageStatus is the content lifecycle of a message. Recalled and
// DeletedForAll are terminal and only reachable from Active.
type MessageStatus string

const (
	MessageActive        MessageStatus = "active"
	MessageRecalled      MessageStatus = "recalled"
	MessageDeletedForAll MessageStatus = "deleted_for_all"
)

func (s MessageStatus) Terminal() bool {
	return s == MessageRecalled || s == MessageDeletedForAll
}

type Message struct {
	ID              string        `bson:"_id"`
	ConversationID  string        `bson:"conversationId"`
	Seq             int64         `bson:"seq"`
	SenderID        string        `bson:"senderId"`
	Content         string        `bson:"content"`
	Type            MessageType   `bson:"type"`
	MediaURL        string        `bson:"mediaUrl,omitempty"`
	Mimetype        string        `bson:"mimetype,omitempty"`
	OriginalName    string        `bson:"originalName,omitempty"`
	Status          MessageStatus `bson:"status"`
	RecallAt        *time.Time    `bson:"recallAt,omitempty"`
	DeletedForAllAt *time.Time    `bson:"deletedForAllAt,omitempty"`
	DeletedForAllBy string        `bson:"deletedForAllBy,omitempty"`
	DeletedBy       []string      `bson:"deletedBy"`
	SeenBy          []string      `bson:"seenBy"`
	CreatedAt       time.Time     `bson:"createdAt"`
}

// MessagePayload is what a sender supplies; everything else is assigned on create.
type MessagePayload struct {
	Content      string
	Type         MessageType
	MediaURL     string
	Mimetype     string
	OriginalName string
}

// MessageView is a message joined with its sender's public profile.
type MessageView struct {
	*Message
	Sender PublicProfile
}

func (m *Message) HiddenFor(userID string) bool {
	return slices.Contains(m.DeletedBy, userID)
}

func (m *Message) SeenByUser(userID string) bool {
	return slices.Contains(m.SeenBy, userID)
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.DeletedBy = slices.Clone(m.DeletedBy)
	c.SeenBy = slices.Clone(m.SeenBy)
	if m.RecallAt != nil {
		t := *m.RecallAt
		c.RecallAt = &t
	}
	if m.DeletedForAllAt != nil {
		t := *m.DeletedForAllAt
		c.DeletedForAllAt = &t
	}
	return &c
}
