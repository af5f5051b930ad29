package repository

import (
	"context"
	"errors"
	"fmt"
	slotserrors "slotbook/internal/slots/errors"
	"slotbook/pkg/config"
	mongotx "slotbook/pkg/db/mongo"
	"slotbook/pkg/model"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type SlotRepository interface {
	EnsureIndexes(ctx context.Context) error
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindByDateTime(ctx context.Context, date, timeOfDay string) (*model.Slot, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Slot, error)
	Count(ctx context.Context) (int64, error)
	Claim(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	DeleteFree(ctx context.Context, id string) error
	FreeDates(ctx context.Context, fromDate string) ([]string, error)
	FreeTimes(ctx context.Context, date string) ([]string, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics, so
// it is returned unchanged with a no-op cancel.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

// EnsureIndexes creates the unique (date, time) index that makes duplicate
// slot creation fail at the storage layer regardless of request interleaving.
func (r *mongoSlotRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "date", Value: 1},
			{Key: "time", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create slot indexes: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.Taken = false
	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return slotserrors.ErrDuplicateSlot
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByDateTime(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"date": date, "time": timeOfDay}

	var slot model.Slot
	err := r.collection.FindOne(ctx, filter).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}

	return count, nil
}

// Claim atomically flips a free slot to taken. The filter carries the
// taken=false predicate so two racing claims can never both match; the loser
// gets ErrSlotUnavailable.
func (r *mongoSlotRepository) Claim(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "taken": false}
	update := bson.M{"$set": bson.M{"taken": true}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to claim slot: %w", err)
	}

	if result.MatchedCount == 0 {
		return slotserrors.ErrSlotUnavailable
	}

	return nil
}

// Release marks a slot free again. Idempotent: releasing a free slot is a
// no-op, not an error.
func (r *mongoSlotRepository) Release(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"taken": false}},
	)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	return nil
}

// DeleteFree removes a slot only while it is free. A taken slot belongs to an
// active booking and must be unlocked first.
func (r *mongoSlotRepository) DeleteFree(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "taken": false})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	if result.DeletedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if err != nil {
			return fmt.Errorf("failed to check slot existence: %w", err)
		}
		if count > 0 {
			return slotserrors.ErrSlotTaken
		}
		return slotserrors.ErrNotFound
	}

	return nil
}

func (r *mongoSlotRepository) FreeDates(ctx context.Context, fromDate string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"taken": false, "date": bson.M{"$gte": fromDate}}

	raw, err := r.collection.Distinct(ctx, "date", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list free dates: %w", err)
	}

	dates := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			dates = append(dates, s)
		}
	}
	sort.Strings(dates)

	return dates, nil
}

func (r *mongoSlotRepository) FreeTimes(ctx context.Context, date string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"taken": false, "date": date}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list free times: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.TimeOfDay)
	}

	return times, nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
