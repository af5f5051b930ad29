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
	CollectionName = "Users"
)

var ErrNotFound = errors.New("user not found")

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoUserRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

// Upsert stores the user's current profile. Repeated bookings keep the record
// fresh without a separate registration step.
func (r *mongoUserRepository) Upsert(ctx context.Context, user *model.User) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"username": user.Username,
		"name":     user.Name,
	}
	if user.Phone != "" {
		set["phone"] = user.Phone
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}
