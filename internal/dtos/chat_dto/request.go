package chat_dto

// CreateConversationRequest opens a direct conversation when IsGroup is false
// (MemberIDs holds the peer) or creates a group otherwise.
type CreateConversationRequest struct {
	IsGroup   bool     `json:"isGroup"`
	Name      string   `json:"name" validate:"max=100"`
	MemberIDs []string `json:"memberIds" validate:"required,min=1,dive,required"`
}

type MembersRequest struct {
	MemberIDs []string `json:"memberIds" validate:"required,min=1,dive,required"`
}

type ConversationSettingsRequest struct {
	IsPinned *bool `json:"isPinned"`
	IsMuted  *bool `json:"isMuted"`
}

type UpdateStatusRequest struct {
	IsOnline *bool `json:"isOnline" validate:"required"`
}

type SearchConversationsRequest struct {
	Query string `validate:"required,min=1,max=100"`
}
