// Package dbctx bundles a request/operation context with an optional
// in-flight transaction, so repos and store operations can be composed
// inside or outside an open commit's transaction interchangeably.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func New(ctx context.Context, tx *gorm.DB) Context {
	return Context{Ctx: ctx, Tx: tx}
}

// DB returns the in-flight transaction if present, otherwise the base
// connection, always scoped with the context's deadline/cancellation.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	tx := c.Tx
	if tx == nil {
		tx = base
	}
	return tx.WithContext(c.Ctx)
}
