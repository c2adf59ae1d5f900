package chat_dto

import (
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
)

type ProfileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func NewProfileResponse(p entity.PublicProfile) ProfileResponse {
	return ProfileResponse{ID: p.ID, Username: p.Username, Avatar: p.Avatar}
}

type MessageResponse struct {
	ID              string           `json:"id"`
	ConversationID  string           `json:"conversationId"`
	Seq             int64            `json:"seq"`
	SenderID        string           `json:"senderId"`
	Sender          *ProfileResponse `json:"sender,omitempty"`
	Content         string           `json:"content"`
	Type            string           `json:"type"`
	MediaURL        string           `json:"mediaUrl,omitempty"`
	Mimetype        string           `json:"mimetype,omitempty"`
	OriginalName    string           `json:"originalName,omitempty"`
	Status          string           `json:"status"`
	Recalled        bool             `json:"recalled"`
	RecallAt        *time.Time       `json:"recallAt,omitempty"`
	DeletedForAll   bool             `json:"deletedForAll"`
	DeletedForAllAt *time.Time       `json:"deletedForAllAt,omitempty"`
	DeletedForAllBy string           `json:"deletedForAllBy,omitempty"`
	DeletedBy       []string         `json:"deletedBy"`
	SeenBy          []string         `json:"seenBy"`
	CreatedAt       time.Time        `json:"createdAt"`
}

func NewMessageResponse(msg *entity.Message, sender *entity.PublicProfile) *MessageResponse {
	resp := &MessageResponse{
		ID:              msg.ID,
		ConversationID:  msg.ConversationID,
		Seq:             msg.Seq,
		SenderID:        msg.SenderID,
		Content:         msg.Content,
		Type:            string(msg.Type),
		MediaURL:        msg.MediaURL,
		Mimetype:        msg.Mimetype,
		OriginalName:    msg.OriginalName,
		Status:          string(msg.Status),
		Recalled:        msg.Status == entity.MessageRecalled,
		RecallAt:        msg.RecallAt,
		DeletedForAll:   msg.Status == entity.MessageDeletedForAll,
		DeletedForAllAt: msg.DeletedForAllAt,
		DeletedForAllBy: msg.DeletedForAllBy,
		DeletedBy:       msg.DeletedBy,
		SeenBy:          msg.SeenBy,
		CreatedAt:       msg.CreatedAt,
	}
	if resp.DeletedBy == nil {
		resp.DeletedBy = []string{}
	}
	if resp.SeenBy == nil {
		resp.SeenBy = []string{}
	}
	if sender != nil {
		profile := NewProfileResponse(*sender)
		resp.Sender = &profile
	}
	return resp
}

func NewMessageViewResponse(view *entity.MessageView) *MessageResponse {
	return NewMessageResponse(view.Message, &view.Sender)
}

// ToEntity rebuilds the domain message on the receiving side of the wire.
func (m *MessageResponse) ToEntity() *entity.Message {
	status := entity.MessageStatus(m.Status)
	if status == "" {
		switch {
		case m.Recalled:
			status = entity.MessageRecalled
		case m.DeletedForAll:
			status = entity.MessageDeletedForAll
		default:
			status = entity.MessageActive
		}
	}
	msg := &entity.Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Seq:             m.Seq,
		SenderID:        m.SenderID,
		Content:         m.Content,
		Type:            entity.MessageType(m.Type),
		MediaURL:        m.MediaURL,
		Mimetype:        m.Mimetype,
		OriginalName:    m.OriginalName,
		Status:          status,
		RecallAt:        m.RecallAt,
		DeletedForAllAt: m.DeletedForAllAt,
		DeletedForAllBy: m.DeletedForAllBy,
		DeletedBy:       m.DeletedBy,
		SeenBy:          m.SeenBy,
		CreatedAt:       m.CreatedAt,
	}
	return msg.Clone()
}

type ConversationResponse struct {
	ID                  string            `json:"id"`
	IsGroup             bool              `json:"isGroup"`
	Name                string            `json:"name,omitempty"`
	Avatar              string            `json:"avatar,omitempty"`
	Members             []string          `json:"members"`
	CreatedBy           string            `json:"createdBy"`
	LastMessage         string            `json:"lastMessage"`
	LastMessageType     string            `json:"lastMessageType,omitempty"`
	LastMessageSenderID string            `json:"lastMessageSenderId,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	Peer                *ProfileResponse  `json:"peer,omitempty"`
	MemberPreview       []ProfileResponse `json:"memberPreview,omitempty"`
	IsPinned            bool              `json:"isPinned"`
	IsMuted             bool              `json:"isMuted"`
	UnreadCount         int64             `json:"unreadCount"`
	LastReadAt          *time.Time        `json:"lastReadAt,omitempty"`
}

func NewConversationResponse(conv *entity.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:                  conv.ID,
		IsGroup:             conv.IsGroup,
		Name:                conv.Name,
		Avatar:              conv.Avatar,
		Members:             conv.Members,
		CreatedBy:           conv.CreatedBy,
		LastMessage:         conv.LastMessage,
		LastMessageType:     string(conv.LastMessageType),
		LastMessageSenderID: conv.LastMessageSenderID,
		CreatedAt:           conv.CreatedAt,
		UpdatedAt:           conv.UpdatedAt,
	}
}

func NewConversationSummaryResponse(summary entity.ConversationSummary) *ConversationResponse {
	resp := NewConversationResponse(summary.Conversation)
	if summary.Peer != nil {
		peer := NewProfileResponse(*summary.Peer)
		resp.Peer = &peer
	}
	for _, p := range summary.MemberPreview {
		resp.MemberPreview = append(resp.MemberPreview, NewProfileResponse(p))
	}
	if o := summary.Overlay; o != nil {
		resp.IsPinned = o.IsPinned
		resp.IsMuted = o.IsMuted
		resp.UnreadCount = o.UnreadCount
		resp.LastReadAt = o.LastReadAt
	}
	return resp
}

type SettingsResponse struct {
	ConversationID string `json:"conversationId"`
	IsPinned       bool   `json:"isPinned"`
	IsMuted        bool   `json:"isMuted"`
}

type UserStatusResponse struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func NewUserStatusResponse(status *entity.UserStatus) *UserStatusResponse {
	return &UserStatusResponse{UserID: status.UserID, IsOnline: status.IsOnline, LastSeen: status.LastSeen}
}
