package database

import (
	"context"

	"github.com/uptrace/bun"
)

type txKey struct{}

// TxRunner scopes composite writes to a single atomic transaction. The
// transaction travels through the context so that any repository invoked
// inside fn participates in it via DB(ctx).
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	DB(ctx context.Context) bun.IDB
}

// RunInTx executes fn inside one writer transaction. The transaction
// commits only when fn returns nil; any error or panic rolls it back.
func (c *Connections) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		// Already inside a transaction; join it rather than nesting.
		_ = tx
		return fn(ctx)
	}
	return c.Writer.RunInTx(ctx, nil, func(txCtx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(txCtx, txKey{}, tx))
	})
}

// DB returns the ambient transaction when ctx carries one, otherwise the
// writer connection.
func (c *Connections) DB(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return c.Writer
}
