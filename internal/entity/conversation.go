package entity

import (
	"slices"
	"strings"
	"time"
)

type Conversation struct {
	ID                  string      `bson:"_id"`
	IsGroup             bool        `bson:"isGroup"`
	Name                string      `bson:"name"`
	Members             []string    `bson:"members"`
	CreatedBy           string      `bson:"createdBy"`
	Avatar              string      `bson:"avatar,omitempty"`
	PairKey             string      `bson:"pairKey,omitempty"`
	LastMessage         string      `bson:"lastMessage"`
	LastMessageType     MessageType `bson:"lastMessageType,omitempty"`
	LastMessageSenderID string      `bson:"lastMessageSenderId,omitempty"`
	Seq                 int64       `bson:"seq"` // sequence number of the latest message
	CreatedAt           time.Time   `bson:"createdAt"`
	UpdatedAt           time.Time   `bson:"updatedAt"`
}

// DirectPairKey normalizes an unordered pair so {a,b} and {b,a} share one key.
func DirectPairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func (c *Conversation) IsMember(userID string) bool {
	return slices.Contains(c.Members, userID)
}

// IsAdmin is the single authorization rule for admin-only operations.
func (c *Conversation) IsAdmin(userID string) bool {
	return userID != "" && c.CreatedBy == userID
}

// Peer returns the other member of a direct conversation.
func (c *Conversation) Peer(userID string) string {
	if c.IsGroup {
		return ""
	}
	for _, m := range c.Members {
		if m != userID {
			return m
		}
	}
	return ""
}

func (c *Conversation) OtherMembers(userID string) []string {
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	return out
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Members = slices.Clone(c.Members)
	return &cp
}

// UserConversation is one member's private view of a shared conversation.
// HiddenThroughSeq is the conversation Seq at the last hide; messages at or
// below it stay out of this member's history.
type UserConversation struct {
	UserID           string     `bson:"userId"`
	ConversationID   string     `bson:"conversationId"`
	IsDeleted        bool       `bson:"isDeleted"`
	LastDeletedAt    *time.Time `bson:"lastDeletedAt,omitempty"`
	HiddenThroughSeq int64      `bson:"hiddenThroughSeq"`
	IsPinned         bool       `bson:"isPinned"`
	IsMuted          bool       `bson:"isMuted"`
	UnreadCount      int64      `bson:"unreadCount"`
	LastReadAt       *time.Time `bson:"lastReadAt,omitempty"`
}

func (u *UserConversation) Clone() *UserConversation {
	if u == nil {
		return nil
	}
	cp := *u
	if u.LastDeletedAt != nil {
		t := *u.LastDeletedAt
		cp.LastDeletedAt = &t
	}
	if u.LastReadAt != nil {
		t := *u.LastReadAt
		cp.LastReadAt = &t
	}
	return &cp
}

type ConversationSummary struct {
	Conversation  *Conversation
	Overlay       *UserConversation
	Peer          *PublicProfile
	MemberPreview []PublicProfile
}

// Matches reports a case-insensitive substring hit on the group name or any
// member username in the summary.
func (s ConversationSummary) Matches(query string, usernames map[string]string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if s.Conversation.IsGroup && strings.Contains(strings.ToLower(s.Conversation.Name), q) {
		return true
	}
	for _, m := range s.Conversation.Members {
		if strings.Contains(strings.ToLower(usernames[m]), q) {
			return true
		}
	}
	return false
}
