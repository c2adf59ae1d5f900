package timeline

import (
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/dtos/chat_dto"
)

type MutationKind string

const (
	MutationRecall        MutationKind = "recall"
	MutationDeleteForAll  MutationKind = "delete_for_all"
	MutationDeleteForUser MutationKind = "delete_for_user"
	MutationSeen          MutationKind = "seen"
)

// Mutation is a lifecycle event for one message. UserID is the actor for
// delete-for-all and the affected viewer for delete-for-user and seen.
type Mutation struct {
	Kind           MutationKind
	ConversationID string
	MessageID      string
	UserID         string
	At             time.Time
}

func RecallMutation(data chat_dto.MessageRecalledData) Mutation {
	return Mutation{
		Kind:           MutationRecall,
		ConversationID: data.ConversationID,
		MessageID:      data.MessageID,
		At:             time.UnixMilli(data.RecallAt).UTC(),
	}
}

func DeleteForAllMutation(data chat_dto.MessageDeletedForAllData) Mutation {
	return Mutation{
		Kind:           MutationDeleteForAll,
		ConversationID: data.ConversationID,
		MessageID:      data.MessageID,
		UserID:         data.DeletedForAllBy,
		At:             time.UnixMilli(data.DeletedForAllAt).UTC(),
	}
}

func DeleteForUserMutation(data chat_dto.MessageDeletedData) Mutation {
	return Mutation{
		Kind:           MutationDeleteForUser,
		ConversationID: data.ConversationID,
		MessageID:      data.MessageID,
		UserID:         data.UserID,
	}
}

func SeenMutation(data chat_dto.MessageSeenData) Mutation {
	return Mutation{
		Kind:           MutationSeen,
		ConversationID: data.ConversationID,
		MessageID:      data.MessageID,
		UserID:         data.UserID,
	}
}
