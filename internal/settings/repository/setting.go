package repository

import (
	"context"
	"errors"
	"fmt"
	"slotbook/pkg/config"
	"slotbook/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Settings"
)

var ErrNotFound = errors.New("setting not found")

type mongoSettingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) error
}

func NewMongoSettingRepository(cfg *config.Config) SettingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSettingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSettingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSettingRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var setting model.Setting
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&setting)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find setting: %w", err)
	}

	return &setting, nil
}

func (r *mongoSettingRepository) Set(ctx context.Context, key, value string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	return nil
}

// SetIfAbsent seeds a default without clobbering an operator-set value.
func (r *mongoSettingRepository) SetIfAbsent(ctx context.Context, key, value string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to seed setting: %w", err)
	}

	return nil
}
