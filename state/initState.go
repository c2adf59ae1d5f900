package state

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/quocdatk18/appchat-sub000/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type AppState struct {
	Ctx       context.Context
	Cancel    context.CancelFunc
	Mongo     *mongo.Client
	Redis     *redis.Client
	PublicKey *rsa.PublicKey
}

// InitAppState opens the shared clients. Mongo is skipped for the memory
// store and the public key for header auth.
func InitAppState(ctx context.Context, cancel context.CancelFunc, conf *config.AppConfig) (*AppState, error) {
	app := &AppState{Ctx: ctx, Cancel: cancel}

	if conf.App.Store == "mongo" {
		mongoClient, err := InitMongo(ctx, conf.DATABASE.Mongo.Url, conf.App.Name)
		if err != nil {
			return nil, err
		}
		app.Mongo = mongoClient
	}

	rdb, err := InitRedis(conf.DATABASE.Redis.Addr, conf.DATABASE.Redis.Password, conf.DATABASE.Redis.DB)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Redis = rdb

	if conf.Auth.Mode == "jwt" {
		publicKey, err := InitPublicKey(conf.Auth.PublicKeyPath)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.PublicKey = publicKey
	}

	return app, nil
}

func (a *AppState) MongoDatabase(name string) *mongo.Database {
	if a.Mongo == nil {
		return nil
	}
	return a.Mongo.Database(name)
}

func (a *AppState) Close() {
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		log.Info().Msg("Closing MongoDB client...")
		defer cancel()
		if err := a.Mongo.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect MongoDB client")
		}
	}

	if a.Redis != nil {
		log.Info().Msg("Closing Redis client...")
		if err := a.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis client")
		}
	}
}
