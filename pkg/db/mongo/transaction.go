package mongo

import (
	"context"
	"fmt"
	apperrors "slotbook/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// TransactionFunc runs inside an open session. The reservation protocol
// (claim slot, upsert user, insert booking) is the primary user; every
// repository call inside fn must take sessCtx, not the outer context.
type TransactionFunc func(sessCtx mongo.SessionContext) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type transactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &transactionManager{client: client}
}

// ExecuteTransaction runs fn inside a Mongo transaction and aborts on any
// error. AppErrors pass through unwrapped so a lost slot claim reaches the
// caller as CONFLICT rather than a generic transaction failure.
func (m *transactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	if err == nil {
		return nil
	}

	if apperrors.IsAppError(err) {
		return err
	}
	return fmt.Errorf("transaction failed: %w", err)
}
