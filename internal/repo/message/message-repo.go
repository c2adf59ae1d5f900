package message_repo

import (
	"context"
	"errors"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const messageCollection = "messages"

type MessageRepo struct {
	messages *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{messages: db.Collection(messageCollection)}
}

func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "seq", Value: 1}}},
	})
	return err
}

func (r *MessageRepo) Insert(ctx context.Context, msg *entity.Message) *app_error.AppError {
	if msg.DeletedBy == nil {
		msg.DeletedBy = []string{}
	}
	if msg.SeenBy == nil {
		msg.SeenBy = []string{}
	}
	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return app_error.TransientStore("create message", err)
	}
	return nil
}

func (r *MessageRepo) FindByID(ctx context.Context, messageID string) (*entity.Message, *app_error.AppError) {
	var msg entity.Message
	if err := r.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NotFound("message not found", "message-id")
		}
		return nil, app_error.TransientStore("fetch message", err)
	}
	return &msg, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID, viewerID string, afterSeq int64) ([]*entity.Message, *app_error.AppError) {
	filter := bson.M{
		"conversationId": conversationID,
		"deletedBy":      bson.M{"$ne": viewerID},
	}
	if afterSeq > 0 {
		filter["seq"] = bson.M{"$gt": afterSeq}
	}

	cur, err := r.messages.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}}))
	if err != nil {
		return nil, app_error.TransientStore("list messages", err)
	}
	defer cur.Close(ctx)

	messages := []*entity.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, app_error.TransientStore("decode messages", err)
	}
	return messages, nil
}

func (r *MessageRepo) Transition(ctx context.Context, messageID string, to entity.MessageStatus, actorID string, at time.Time) (*entity.Message, *app_error.AppError) {
	set := bson.M{"status": to}
	switch to {
	case entity.MessageRecalled:
		set["recallAt"] = at
	case entity.MessageDeletedForAll:
		set["deletedForAllAt"] = at
		set["deletedForAllBy"] = actorID
	default:
		return nil, app_error.Validation("unsupported message status", "status")
	}

	// the status guard makes the terminal transition a compare-and-set
	var msg entity.Message
	err := r.messages.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "status": entity.MessageActive},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&msg)
	if err == nil {
		return &msg, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, app_error.TransientStore("update message status", err)
	}

	if _, findErr := r.FindByID(ctx, messageID); findErr != nil {
		return nil, findErr
	}
	return nil, app_error.Conflict("message is no longer active", "status")
}

func (r *MessageRepo) AddDeletedBy(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	return r.addToSet(ctx, messageID, "deletedBy", userID)
}

func (r *MessageRepo) AddSeenBy(ctx context.Context, messageID, userID string) (*entity.Message, *app_error.AppError) {
	return r.addToSet(ctx, messageID, "seenBy", userID)
}

func (r *MessageRepo) addToSet(ctx context.Context, messageID, field, userID string) (*entity.Message, *app_error.AppError) {
	var msg entity.Message
	err := r.messages.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID},
		bson.M{"$addToSet": bson.M{field: userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NotFound("message not found", "message-id")
		}
		return nil, app_error.TransientStore("update message "+field, err)
	}
	return &msg, nil
}
