package conversation_repo

import (
	"context"
	"errors"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	conversationCollection = "conversations"
	overlayCollection      = "user_conversations"
)

type ConversationRepo struct {
	conversations *mongo.Collection
	overlays      *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		conversations: db.Collection(conversationCollection),
		overlays:      db.Collection(overlayCollection),
	}
}

// EnsureIndexes creates the pair uniqueness constraint and the overlay key.
func (r *ConversationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"pairKey": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "members", Value: 1}, {Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = r.overlays.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "conversationId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *ConversationRepo) FindDirect(ctx context.Context, pairKey string) (*entity.Conversation, *app_error.AppError) {
	var conv entity.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"pairKey": pairKey, "isGroup": false}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NotFound("conversation not found", "pair-key")
		}
		return nil, app_error.TransientStore("query direct conversation", err)
	}
	return &conv, nil
}

func (r *ConversationRepo) Insert(ctx context.Context, conv *entity.Conversation) *app_error.AppError {
	if _, err := r.conversations.InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return app_error.Conflict("duplicate conversation", "pair-key")
		}
		return app_error.TransientStore("create conversation", err)
	}
	return nil
}

func (r *ConversationRepo) FindByID(ctx context.Context, conversationID string) (*entity.Conversation, *app_error.AppError) {
	var conv entity.Conversation
	if err := r.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NotFound("conversation not found", "conversation-id")
		}
		log.Error().Err(err).Str("conversationID", conversationID).Msg("failed to fetch conversation")
		return nil, app_error.TransientStore("fetch conversation", err)
	}
	return &conv, nil
}

func (r *ConversationRepo) FindByMember(ctx context.Context, userID string) ([]*entity.Conversation, *app_error.AppError) {
	cur, err := r.conversations.Find(ctx, bson.M{"members": userID}, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, app_error.TransientStore("list conversations", err)
	}
	defer cur.Close(ctx)

	var convs []*entity.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, app_error.TransientStore("decode conversations", err)
	}
	return convs, nil
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID, content string, msgType entity.MessageType, senderID string, at time.Time) *app_error.AppError {
	res, err := r.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{
		"lastMessage":         content,
		"lastMessageType":     msgType,
		"lastMessageSenderId": senderID,
		"updatedAt":           at,
	}})
	if err != nil {
		return app_error.TransientStore("update last message", err)
	}
	if res.MatchedCount == 0 {
		return app_error.NotFound("conversation not found", "conversation-id")
	}
	return nil
}

func (r *ConversationRepo) AddMembers(ctx context.Context, conversationID string, memberIDs []string, at time.Time) (*entity.Conversation, *app_error.AppError) {
	return r.updateMembers(ctx, conversationID, bson.M{
		"$addToSet": bson.M{"members": bson.M{"$each": memberIDs}},
		"$set":      bson.M{"updatedAt": at},
	})
}

func (r *ConversationRepo) RemoveMembers(ctx context.Context, conversationID string, memberIDs []string, at time.Time) (*entity.Conversation, *app_error.AppError) {
	return r.updateMembers(ctx, conversationID, bson.M{
		"$pullAll": bson.M{"members": memberIDs},
		"$set":     bson.M{"updatedAt": at},
	})
}

func (r *ConversationRepo) updateMembers(ctx context.Context, conversationID string, update bson.M) (*entity.Conversation, *app_error.AppError) {
	var conv entity.Conversation
	err := r.conversations.FindOneAndUpdate(ctx, bson.M{"_id": conversationID, "isGroup": true}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NotFound("group conversation not found", "conversation-id")
		}
		return nil, app_error.TransientStore("update members", err)
	}
	return &conv, nil
}

func overlayFilter(userID, conversationID string) bson.M {
	return bson.M{"userId": userID, "conversationId": conversationID}
}

func (r *ConversationRepo) FindOverlay(ctx context.Context, userID, conversationID string) (*entity.UserConversation, *app_error.AppError) {
	var overlay entity.UserConversation
	if err := r.overlays.FindOne(ctx, overlayFilter(userID, conversationID)).Decode(&overlay); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &entity.UserConversation{UserID: userID, ConversationID: conversationID}, nil
		}
		return nil, app_error.TransientStore("fetch conversation overlay", err)
	}
	return &overlay, nil
}

func (r *ConversationRepo) FindOverlays(ctx context.Context, userID string) (map[string]*entity.UserConversation, *app_error.AppError) {
	cur, err := r.overlays.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, app_error.TransientStore("list conversation overlays", err)
	}
	defer cur.Close(ctx)

	var overlays []*entity.UserConversation
	if err := cur.All(ctx, &overlays); err != nil {
		return nil, app_error.TransientStore("decode conversation overlays", err)
	}

	out := make(map[string]*entity.UserConversation, len(overlays))
	for _, o := range overlays {
		out[o.ConversationID] = o
	}
	return out, nil
}

func (r *ConversationRepo) NextSeq(ctx context.Context, conversationID string) (int64, *app_error.AppError) {
	var conv entity.Conversation
	err := r.conversations.FindOneAndUpdate(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"seq": 1}),
	).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, app_error.NotFound("conversation not found", "conversation-id")
		}
		return 0, app_error.TransientStore("reserve message sequence", err)
	}
	return conv.Seq, nil
}

func (r *ConversationRepo) HideForUser(ctx context.Context, userID, conversationID string, at time.Time) *app_error.AppError {
	conv, appErr := r.FindByID(ctx, conversationID)
	if appErr != nil {
		return appErr
	}
	_, err := r.overlays.UpdateOne(ctx, overlayFilter(userID, conversationID), bson.M{
		"$set": bson.M{"isDeleted": true, "lastDeletedAt": at, "hiddenThroughSeq": conv.Seq, "unreadCount": 0},
	}, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return app_error.TransientStore("hide conversation", err)
	}
	return nil
}

func (r *ConversationRepo) RestoreForUser(ctx context.Context, userID, conversationID string) *app_error.AppError {
	filter := overlayFilter(userID, conversationID)
	filter["isDeleted"] = true
	if _, err := r.overlays.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"isDeleted": false}}); err != nil {
		return app_error.TransientStore("restore conversation", err)
	}
	return nil
}

func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID string, userIDs []string) *app_error.AppError {
	if len(userIDs) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(userIDs))
	for _, userID := range userIDs {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(overlayFilter(userID, conversationID)).
			SetUpdate(bson.M{
				"$inc": bson.M{"unreadCount": 1},
				"$set": bson.M{"isDeleted": false},
			}).
			SetUpsert(true))
	}

	if _, err := r.overlays.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return app_error.TransientStore("increment unread count", err)
	}
	return nil
}

func (r *ConversationRepo) MarkRead(ctx context.Context, userID, conversationID string, at time.Time) *app_error.AppError {
	_, err := r.overlays.UpdateOne(ctx, overlayFilter(userID, conversationID), bson.M{
		"$set": bson.M{"unreadCount": 0, "lastReadAt": at},
	}, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return app_error.TransientStore("mark conversation read", err)
	}
	return nil
}

func (r *ConversationRepo) SetOverlayFlags(ctx context.Context, userID, conversationID string, pinned, muted *bool) (*entity.UserConversation, *app_error.AppError) {
	set := bson.M{}
	if pinned != nil {
		set["isPinned"] = *pinned
	}
	if muted != nil {
		set["isMuted"] = *muted
	}
	if len(set) == 0 {
		return r.FindOverlay(ctx, userID, conversationID)
	}

	var overlay entity.UserConversation
	err := r.overlays.FindOneAndUpdate(ctx, overlayFilter(userID, conversationID), bson.M{"$set": set},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&overlay)
	if err != nil {
		return nil, app_error.TransientStore("update conversation settings", err)
	}
	return &overlay, nil
}
