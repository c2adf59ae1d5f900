package user_repo

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

const userCollection = "users"

type UserRepo struct {
	users *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{users: db.Collection(userCollection)}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}})
	return err
}

func (r *UserRepo) SaveUser(ctx context.Context, user *entity.User) *app_error.AppError {
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace().SetUpsert(true))
	if err != nil {
		return app_error.TransientStore("save user", err)
	}
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, userID string) (*entity.User, *app_error.AppError) {
	var user entity.User
	if err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NotFound("cannot find user", "user-id")
		}
		return nil, app_error.TransientStore("fetch user", err)
	}
	return &user, nil
}

func (r *UserRepo) FindByIDs(ctx context.Context, userIDs []string) (map[string]*entity.User, *app_error.AppError) {
	out := make(map[string]*entity.User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, app_error.TransientStore("list users", err)
	}
	defer cur.Close(ctx)

	var users []*entity.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, app_error.TransientStore("decode users", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepo) UpdatePresence(ctx context.Context, userID string, online bool, lastSeen *time.Time) *app_error.AppError {
	set := bson.M{"isOnline": online}
	if lastSeen != nil {
		set["lastSeen"] = *lastSeen
	}
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return app_error.TransientStore("update presence", err)
	}
	return nil
}
